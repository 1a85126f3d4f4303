package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "rhythm-ls"

// StartOperationSpan starts a span for a language service operation on a file.
func StartOperationSpan(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rhythm."+op,
		trace.WithAttributes(
			attribute.String("rhythm.operation", op),
			attribute.String("rhythm.path", path),
		),
	)
}

// StartPositionSpan starts a span for a cursor-based query.
func StartPositionSpan(ctx context.Context, op, path string, line, character int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rhythm."+op,
		trace.WithAttributes(
			attribute.String("rhythm.operation", op),
			attribute.String("rhythm.path", path),
			attribute.Int("rhythm.line", line),
			attribute.Int("rhythm.character", character),
		),
	)
}

// StartCompileSpan starts a span for an external compiler invocation.
func StartCompileSpan(ctx context.Context, bytes int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rhythm.compile",
		trace.WithAttributes(attribute.Int("rhythm.content_bytes", bytes)),
	)
}
