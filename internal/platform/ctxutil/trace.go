package ctxutil

import "context"

type traceDataKey struct{}

// TraceData correlates one inbound request across logs and spans.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) (TraceData, bool) {
	td, ok := ctx.Value(traceDataKey{}).(TraceData)
	return td, ok
}

// RequestID returns the request id, or "" outside a request.
func RequestID(ctx context.Context) string {
	td, _ := GetTraceData(ctx)
	return td.RequestID
}
