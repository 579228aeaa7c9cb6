package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestStreamTextCollectsTextDeltas(t *testing.T) {
	body := strings.Join([]string{
		"event: message_start",
		`data: {"type":"message_start","message":{"id":"msg_1"}}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
		"",
		"event: ping",
		`data: {"type":"ping"}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`,
		"",
		"event: message_stop",
		`data: {"type":"message_stop"}`,
		"",
	}, "\n")

	var sent messagesRequest
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/messages", req.URL.Path)
		assert.Equal(t, "secret", req.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, req.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
	})}

	e, err := NewWithHTTPClient(engine.Config{BaseURL: "http://upstream", APIKey: "secret"}, client)
	require.NoError(t, err)

	var deltas []string
	full, err := e.StreamText(context.Background(), "claude-3-haiku-20240307", []engine.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "again"},
	}, engine.GenerateOptions{Temperature: 0.8}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)

	assert.True(t, sent.Stream)
	assert.Equal(t, "be brief", sent.System)
	assert.Len(t, sent.Messages, 3)
	assert.Equal(t, defaultMaxTokens, sent.MaxTokens)
}

func TestStreamTextErrorEvent(t *testing.T) {
	body := "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
	})}
	e, err := NewWithHTTPClient(engine.Config{BaseURL: "http://upstream"}, client)
	require.NoError(t, err)

	_, err = e.StreamText(context.Background(), "m", []engine.Message{{Role: "user", Content: "x"}}, engine.GenerateOptions{}, nil)
	var se *engine.StreamError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Payload, "overloaded_error")
}

func TestBuildRequestClampsTemperature(t *testing.T) {
	req, err := buildRequest("m", []engine.Message{{Role: "user", Content: "x"}}, engine.GenerateOptions{Temperature: 1.7}, true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, req.Temperature)

	_, err = buildRequest("m", []engine.Message{{Role: "system", Content: "only system"}}, engine.GenerateOptions{}, true)
	assert.ErrorIs(t, err, engine.ErrNoMessages)
}
