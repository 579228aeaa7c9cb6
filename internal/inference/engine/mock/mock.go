// Package mock is a scriptable in-process engine for development and tests.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
)

type Engine struct {
	// Fragments, when set, are streamed verbatim. Otherwise the engine echoes
	// the last user message in chunks of ChunkSize bytes.
	Fragments []string
	ChunkSize int
	// Err is returned after FailAfter fragments have been delivered.
	Err       error
	FailAfter int
	// Delay is slept before each fragment.
	Delay time.Duration

	mu    sync.Mutex
	calls []Call
}

type Call struct {
	Model    string
	Messages []engine.Message
	Opts     engine.GenerateOptions
}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{ChunkSize: 16}
}

// Calls returns the requests seen so far.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

func (e *Engine) record(model string, messages []engine.Message, opts engine.GenerateOptions) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Model: model, Messages: append([]engine.Message(nil), messages...), Opts: opts})
	e.mu.Unlock()
}

func (e *Engine) script(messages []engine.Message) []string {
	if e.Fragments != nil {
		return e.Fragments
	}
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			user = messages[i].Content
			break
		}
	}
	full := "mock: ok"
	if strings.TrimSpace(user) != "" {
		full = fmt.Sprintf("mock: %s", user)
	}
	size := e.ChunkSize
	if size <= 0 {
		size = 16
	}
	var out []string
	for i := 0; i < len(full); i += size {
		end := i + size
		if end > len(full) {
			end = len(full)
		}
		out = append(out, full[i:end])
	}
	return out
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	e.record(model, messages, opts)
	if e.Err != nil && e.FailAfter == 0 {
		return "", e.Err
	}
	return strings.Join(e.script(messages), ""), nil
}

func (e *Engine) StreamText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions, onDelta func(delta string) error) (string, error) {
	e.record(model, messages, opts)

	var full strings.Builder
	for i, frag := range e.script(messages) {
		if e.Err != nil && i == e.FailAfter {
			return full.String(), e.Err
		}
		if e.Delay > 0 {
			t := time.NewTimer(e.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return full.String(), ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		full.WriteString(frag)
		if onDelta != nil {
			if err := onDelta(frag); err != nil {
				return full.String(), &engine.SinkError{Err: err}
			}
		}
	}
	if e.Err != nil {
		return full.String(), e.Err
	}
	return full.String(), nil
}
