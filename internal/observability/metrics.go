package observability

import (
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Metrics holds the gateway's Prometheus series. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	streams        *CounterVec
	streamDuration *HistogramVec
	streamsOpen    *Gauge
	tokens         *CounterVec
	cost           *CounterVec

	payments      *CounterVec
	deferredTasks *CounterVec

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("chatgw_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"chatgw_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 120},
		),
		apiInflight: NewGauge("chatgw_api_inflight_requests", "In-flight API requests."),

		streams: NewCounterVec("chatgw_streams_total", "Finished generation streams by model and terminal state.", []string{"model", "state"}),
		streamDuration: NewHistogramVec(
			"chatgw_stream_duration_seconds",
			"Generation stream duration in seconds by model.",
			[]string{"model"},
			[]float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		),
		streamsOpen: NewGauge("chatgw_streams_open", "Generation streams currently open."),
		tokens:      NewCounterVec("chatgw_tokens_total", "Metered tokens by model and direction.", []string{"model", "direction"}),
		cost:        NewCounterVec("chatgw_cost_usd_total", "Metered upstream cost in USD by model.", []string{"model"}),

		payments:      NewCounterVec("chatgw_payment_verifications_total", "Payment verifications by outcome.", []string{"outcome"}),
		deferredTasks: NewCounterVec("chatgw_deferred_tasks_total", "Deferred tasks by name and status.", []string{"task", "status"}),

		aggregateOps: NewCounterVec("chatgw_aggregate_operations_total", "Aggregate writes by operation and status.", []string{"operation", "status"}),
		aggregateLatency: NewHistogramVec(
			"chatgw_aggregate_operation_duration_seconds",
			"Aggregate write latency in seconds by operation.",
			[]string{"operation"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		),
		aggregateConflicts: NewCounterVec("chatgw_aggregate_conflicts_total", "Aggregate writes rejected by a uniqueness conflict.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("chatgw_aggregate_retryable_total", "Aggregate writes that failed with a retryable error.", []string{"operation"}),
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streamsOpen.Inc()
}

// ObserveStream records a finished stream. Token and cost series only move
// for streams that were metered.
func (m *Metrics) ObserveStream(model, state string, dur time.Duration, inputTokens, outputTokens int, cost decimal.Decimal) {
	if m == nil {
		return
	}
	m.streamsOpen.Dec()
	m.streams.Inc(model, state)
	m.streamDuration.Observe(dur.Seconds(), model)
	if inputTokens > 0 {
		m.tokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.tokens.Add(float64(outputTokens), model, "output")
	}
	if cost.IsPositive() {
		m.cost.Add(cost.InexactFloat64(), model)
	}
}

func (m *Metrics) IncPayment(outcome string) {
	if m == nil {
		return
	}
	m.payments.Inc(outcome)
}

func (m *Metrics) IncDeferredTask(task, status string) {
	if m == nil {
		return
	}
	m.deferredTasks.Inc(task, status)
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(op, status)
	m.aggregateLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, s := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.streams, m.streamDuration, m.streamsOpen, m.tokens, m.cost,
		m.payments, m.deferredTasks,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
	} {
		if err := s.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}
