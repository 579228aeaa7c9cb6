package aggregates

import (
	"time"

	domainagg "github.com/yungbote/chatgateway-backend/internal/domain/aggregates"
	"github.com/yungbote/chatgateway-backend/internal/observability"
)

// Hooks captures aggregate-level write outcomes.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type observabilityHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks creates aggregate hooks backed by observability metrics.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &observabilityHooks{metrics: metrics}
}

func (h *observabilityHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(name, status, dur)
}

func (h *observabilityHooks) IncConflict(name string) { h.metrics.IncAggregateConflict(name) }
func (h *observabilityHooks) IncRetry(name string)    { h.metrics.IncAggregateRetry(name) }

func observeWrite(h Hooks, op string, err error, dur time.Duration) {
	status := "success"
	if err != nil {
		status = string(domainagg.CodeOf(err))
		if status == "" {
			status = "failure"
		}
		switch domainagg.CodeOf(err) {
		case domainagg.CodeConflict:
			h.IncConflict(op)
		case domainagg.CodeRetryable:
			h.IncRetry(op)
		}
	}
	h.ObserveOperation(op, status, dur)
}
