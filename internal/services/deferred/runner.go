// Package deferred runs best-effort background work that must outlive the
// request that scheduled it.
package deferred

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/chatgateway-backend/internal/observability"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

var ErrClosed = errors.New("deferred runner is draining")

type Task func(ctx context.Context) error

type Runner interface {
	// Submit schedules fn on a context detached from any request and bounded
	// by the runner's task timeout. Failures are logged, never returned.
	Submit(name string, fn Task) error
	// Drain stops accepting work and waits for scheduled tasks or ctx.
	Drain(ctx context.Context) error
}

type Option func(*runner)

// WithMetrics counts finished tasks by name and status.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *runner) { r.metrics = m }
}

type runner struct {
	log     *logger.Logger
	metrics *observability.Metrics
	sem     *semaphore.Weighted
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(baseLog *logger.Logger, workers int, timeout time.Duration, opts ...Option) Runner {
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base, cancel := context.WithCancel(context.Background())
	r := &runner{
		log:     baseLog.With("service", "DeferredRunner"),
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
		base:    base,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *runner) Submit(name string, fn Task) error {
	if fn == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("deferred task rejected", "task", name, "error", ErrClosed)
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(r.base, 1); err != nil {
			r.log.Warn("deferred task dropped", "task", name, "error", err)
			return
		}
		defer r.sem.Release(1)
		r.run(name, fn)
	}()
	return nil
}

func (r *runner) run(name string, fn Task) {
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
				r.log.Error("deferred task panicked", "task", name, "panic", p, "stack", string(debug.Stack()))
			}
		}()
		return fn(ctx)
	}()
	if err != nil {
		r.log.Warn("deferred task failed", "task", name, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		r.metrics.IncDeferredTask(name, "failed")
		return
	}
	r.metrics.IncDeferredTask(name, "ok")
	r.log.Debug("deferred task done", "task", name, "duration_ms", time.Since(start).Milliseconds())
}

func (r *runner) Drain(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		// Abandon what is still queued or running.
		r.cancel()
		return ctx.Err()
	}
}

// Inline runs tasks synchronously on the caller's goroutine. Tests use it
// to make deferred side effects observable without sleeping.
type Inline struct {
	Timeout time.Duration
}

func (i Inline) Submit(_ string, fn Task) error {
	if fn == nil {
		return nil
	}
	ctx := context.Background()
	if i.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}
	_ = fn(ctx)
	return nil
}

func (Inline) Drain(context.Context) error { return nil }
