package orchestrator

import (
	"context"
	"strings"
	"sync"
)

const EventKindStream = "stream"

// Event is one message on the outbound stream. ChatID is only set on the
// terminal event.
type Event struct {
	Kind    string `json:"event"`
	Data    string `json:"data"`
	IsFinal bool   `json:"is_final"`
	ChatID  string `json:"chat_id,omitempty"`
}

// Sink delivers events to the caller in order. An error means the caller is
// gone and no further events can be delivered.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Collector buffers the whole stream; it backs the non-streaming endpoint.
type Collector struct {
	mu     sync.Mutex
	events []Event
	text   strings.Builder
}

func (c *Collector) Send(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	c.text.WriteString(ev.Data)
	return nil
}

func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text.String()
}
