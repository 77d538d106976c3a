package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// OtelTraceID returns the trace id of the span stored in ctx, if any.
func OtelTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
