package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// WithTraceID returns ctx carrying the log trace id
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// GetTraceID returns the log trace id of ctx, or ""
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey{}).(string); ok {
		return id
	}
	return ""
}

// SpanTraceID makes sure a pipeline run has a trace id before it starts logging. A
// request trace id is kept; otherwise the active span's trace id is used, and outside
// any span a fresh uuid.
func SpanTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	if id := TraceIDFromContext(ctx); id != "" {
		return WithTraceID(ctx, id)
	}
	return WithTraceID(ctx, uuid.NewString())
}
