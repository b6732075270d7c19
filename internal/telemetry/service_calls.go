package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceStorageCall creates a span for an image store operation.
// backend is "s3" or "local"; operation is put_object, delete_object, or check_access.
func TraceStorageCall(ctx context.Context, backend, operation, key string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("storage").Start(ctx, backend+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.backend", backend),
			attribute.String("storage.operation", operation),
		),
	)
	if key != "" {
		span.SetAttributes(attribute.String("storage.key", key))
	}
	return ctx, span
}

// TraceCacheCall creates a span for a Redis operation such as get, setex, or incr
func TraceCacheCall(ctx context.Context, operation string) (context.Context, trace.Span) {
	return otel.Tracer("cache").Start(ctx, "cache."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("cache.operation", operation)),
	)
}
