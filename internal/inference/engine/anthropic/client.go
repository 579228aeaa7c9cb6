// Package anthropic streams from the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
)

const (
	messagesPath     = "/v1/messages"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

type Engine struct {
	baseURL       string
	apiKey        string
	timeout       time.Duration
	streamTimeout time.Duration
	httpClient    *http.Client
}

var _ engine.Engine = (*Engine)(nil)

func New(cfg engine.Config) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("anthropic: base_url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		timeout:       timeout,
		streamTimeout: cfg.StreamTimeout,
		httpClient:    engine.NewHTTPClient(),
	}, nil
}

func NewWithHTTPClient(cfg engine.Config, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// buildRequest lifts system messages into the top-level system field and
// clamps temperature to the [0, 1] range the Messages API accepts.
func buildRequest(model string, messages []engine.Message, opts engine.GenerateOptions, stream bool) (messagesRequest, error) {
	var (
		system []string
		msgs   []message
	)
	for _, m := range messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch role {
		case "system":
			system = append(system, m.Content)
		case "user", "assistant":
			msgs = append(msgs, message{Role: role, Content: m.Content})
		}
	}
	if len(msgs) == 0 {
		return messagesRequest{}, engine.ErrNoMessages
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := opts.Temperature
	if temp > 1 {
		temp = 1
	}
	if temp < 0 {
		temp = 0
	}
	return messagesRequest{
		Model:       model,
		System:      strings.Join(system, "\n"),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temp,
		Stream:      stream,
	}, nil
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	reqBody, err := buildRequest(model, messages, opts, false)
	if err != nil {
		return "", err
	}

	ctx2, cancel := engine.WithOptionalTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.post(ctx2, reqBody, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode messages response: %w", err)
	}
	var b strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("empty upstream completion")
	}
	return b.String(), nil
}

func (e *Engine) StreamText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions, onDelta func(delta string) error) (string, error) {
	reqBody, err := buildRequest(model, messages, opts, true)
	if err != nil {
		return "", err
	}

	ctx2, cancel := engine.WithOptionalTimeout(ctx, e.streamTimeout)
	defer cancel()

	resp, err := e.post(ctx2, reqBody, "text/event-stream")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	err = engine.ReadSSE(resp.Body, func(_ string, data string) error {
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil
		}
		switch ev.Type {
		case "error":
			payload := data
			if ev.Error != nil {
				payload = ev.Error.Type + ": " + ev.Error.Message
			}
			return &engine.StreamError{Payload: payload}
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				return nil
			}
			full.WriteString(ev.Delta.Text)
			if onDelta != nil {
				if err := onDelta(ev.Delta.Text); err != nil {
					return &engine.SinkError{Err: err}
				}
			}
		}
		return nil
	})
	return full.String(), err
}

func (e *Engine) post(ctx context.Context, body messagesRequest, accept string) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+messagesPath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, &engine.HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}
