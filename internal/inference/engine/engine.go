package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type Message struct {
	Role    string
	Content string
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Engine is the generation capability of one vendor family.
//
// StreamText calls onDelta for every fragment in the order the upstream
// produced it. A non-nil error from onDelta stops the stream and is returned
// wrapped; the returned text always equals the concatenation of the fragments
// delivered so far.
type Engine interface {
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (string, error)
	StreamText(ctx context.Context, model string, messages []Message, opts GenerateOptions, onDelta func(delta string) error) (full string, err error)
}

// Config is the per-vendor connection config shared by the HTTP engines.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

var ErrNoMessages = errors.New("no messages")

// NewHTTPClient returns a client tuned for long-lived streaming responses.
// Request deadlines come from the caller's context, not the client.
func NewHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr}
}

// WithOptionalTimeout derives a bounded context when d > 0.
func WithOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
