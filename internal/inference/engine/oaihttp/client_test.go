package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func sseResponse(lines ...string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(strings.Join(lines, "\n"))),
	}
}

func TestGenerateText(t *testing.T) {
	cfg := engine.Config{BaseURL: "http://upstream/v1", APIKey: "k", Timeout: 2 * time.Second}

	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v1/chat/completions" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if req.Header.Get("Authorization") != "Bearer k" {
				t.Fatalf("auth=%q", req.Header.Get("Authorization"))
			}
			var in chatCompletionRequest
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			if in.Stream {
				t.Fatalf("did not expect stream=true")
			}
			if in.Temperature != 0.3 {
				t.Fatalf("temperature=%v", in.Temperature)
			}
			b := []byte(`{"choices":[{"message":{"content":"A short title"}}]}`)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(bytes.NewReader(b)),
			}, nil
		}),
	}

	e, err := NewWithHTTPClient(cfg, client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	out, err := e.GenerateText(context.Background(), "gpt-3.5-turbo", []engine.Message{
		{Role: "user", Content: "summarize"},
	}, engine.GenerateOptions{Temperature: 0.3})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "A short title" {
		t.Fatalf("out=%q", out)
	}
}

func TestStreamText(t *testing.T) {
	cfg := engine.Config{BaseURL: "http://upstream", StreamTimeout: 2 * time.Second}

	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/chat/completions" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if !strings.Contains(req.Header.Get("Accept"), "text/event-stream") {
				t.Fatalf("accept=%q", req.Header.Get("Accept"))
			}
			return sseResponse(
				`data: {"choices":[{"delta":{"content":"hel"}}]}`,
				"",
				`data: {"choices":[{"delta":{"content":"lo"}}]}`,
				"",
				"data: [DONE]",
				"",
				"",
			), nil
		}),
	}

	e, err := NewWithHTTPClient(cfg, client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}

	var deltas []string
	full, err := e.StreamText(context.Background(), "sonar-small-chat", []engine.Message{
		{Role: "user", Content: "hi"},
	}, engine.GenerateOptions{}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamText: %v", err)
	}
	if full != "hello" {
		t.Fatalf("full=%q", full)
	}
	if strings.Join(deltas, "|") != "hel|lo" {
		t.Fatalf("deltas=%q", deltas)
	}
}

func TestStreamTextSinkErrorStopsStream(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return sseResponse(
				`data: {"choices":[{"delta":{"content":"a"}}]}`,
				"",
				`data: {"choices":[{"delta":{"content":"b"}}]}`,
				"",
			), nil
		}),
	}
	e, err := NewWithHTTPClient(engine.Config{BaseURL: "http://upstream"}, client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}

	gone := errors.New("client gone")
	full, err := e.StreamText(context.Background(), "m", []engine.Message{{Role: "user", Content: "x"}}, engine.GenerateOptions{}, func(string) error {
		return gone
	})
	if !errors.Is(err, gone) || !engine.IsSinkError(err) {
		t.Fatalf("err=%v", err)
	}
	if full != "a" {
		t.Fatalf("full=%q", full)
	}
}

func TestStreamTextUpstreamStatus(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(strings.NewReader(`{"error":"rate"}`)),
			}, nil
		}),
	}
	e, err := NewWithHTTPClient(engine.Config{BaseURL: "http://upstream"}, client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	_, err = e.StreamText(context.Background(), "m", []engine.Message{{Role: "user", Content: "x"}}, engine.GenerateOptions{}, nil)
	var he *engine.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("err=%v", err)
	}
}

func TestStreamTextErrorChunk(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return sseResponse(
				`data: {"choices":[{"delta":{"content":"par"}}]}`,
				"",
				`data: {"error":{"message":"overloaded"}}`,
				"",
			), nil
		}),
	}
	e, err := NewWithHTTPClient(engine.Config{BaseURL: "http://upstream"}, client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	full, err := e.StreamText(context.Background(), "m", []engine.Message{{Role: "user", Content: "x"}}, engine.GenerateOptions{}, func(string) error { return nil })
	var se *engine.StreamError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v", err)
	}
	if full != "par" {
		t.Fatalf("full=%q", full)
	}
}
