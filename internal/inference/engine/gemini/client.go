// Package gemini streams from the Google Generative Language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
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
		return nil, errors.New("gemini: base_url required")
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

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func buildRequest(messages []engine.Message, opts engine.GenerateOptions) (geminiRequest, error) {
	var (
		contents []geminiContent
		system   []geminiPart
	)
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			system = append(system, geminiPart{Text: m.Content})
		case "assistant", "model":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(contents) == 0 {
		return geminiRequest{}, engine.ErrNoMessages
	}
	gr := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}
	if len(system) > 0 {
		gr.SystemInstruction = &geminiContent{Parts: system}
	}
	return gr, nil
}

func (r geminiResponse) text() string {
	var b strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		// Only the first candidate is requested.
		break
	}
	return b.String()
}

func (e *Engine) endpoint(model, method string, sse bool) string {
	q := url.Values{}
	if sse {
		q.Set("alt", "sse")
	}
	if e.apiKey != "" {
		q.Set("key", e.apiKey)
	}
	u := fmt.Sprintf("%s/models/%s:%s", e.baseURL, url.PathEscape(model), method)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	body, err := buildRequest(messages, opts)
	if err != nil {
		return "", err
	}

	ctx2, cancel := engine.WithOptionalTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.post(ctx2, e.endpoint(model, "generateContent", false), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	text := out.text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty candidates in gemini response")
	}
	return text, nil
}

func (e *Engine) StreamText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions, onDelta func(delta string) error) (string, error) {
	body, err := buildRequest(messages, opts)
	if err != nil {
		return "", err
	}

	ctx2, cancel := engine.WithOptionalTimeout(ctx, e.streamTimeout)
	defer cancel()

	resp, err := e.post(ctx2, e.endpoint(model, "streamGenerateContent", true), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	err = engine.ReadSSE(resp.Body, func(_ string, data string) error {
		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil {
			return &engine.StreamError{Payload: fmt.Sprintf("%s: %s", chunk.Error.Status, chunk.Error.Message)}
		}
		delta := chunk.text()
		if delta == "" {
			return nil
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return &engine.SinkError{Err: err}
			}
		}
		return nil
	})
	return full.String(), err
}

func (e *Engine) post(ctx context.Context, u string, body geminiRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, &engine.HTTPError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}
