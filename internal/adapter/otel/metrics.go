package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "rhythm-ls"

// Metrics holds the language service metric instruments.
type Metrics struct {
	Operations        metric.Int64Counter
	OperationFailures metric.Int64Counter
	OperationDuration metric.Float64Histogram
	CacheUpdates      metric.Int64Counter
	CacheEvictions    metric.Int64Counter
	Diagnostics       metric.Int64Counter
	CompileCacheHits  metric.Int64Counter
	CompileCacheMiss  metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Operations, err = meter.Int64Counter("rhythm.operations",
		metric.WithDescription("Number of language service operations"))
	if err != nil {
		return nil, err
	}

	m.OperationFailures, err = meter.Int64Counter("rhythm.operations.failed",
		metric.WithDescription("Number of operations that degraded to an empty result"))
	if err != nil {
		return nil, err
	}

	m.OperationDuration, err = meter.Float64Histogram("rhythm.operation.duration_seconds",
		metric.WithDescription("Operation duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CacheUpdates, err = meter.Int64Counter("rhythm.cache.updates",
		metric.WithDescription("Number of file cache writes"))
	if err != nil {
		return nil, err
	}

	m.CacheEvictions, err = meter.Int64Counter("rhythm.cache.evictions",
		metric.WithDescription("Number of file cache evictions"))
	if err != nil {
		return nil, err
	}

	m.Diagnostics, err = meter.Int64Counter("rhythm.diagnostics",
		metric.WithDescription("Number of diagnostics reported, by source"))
	if err != nil {
		return nil, err
	}

	m.CompileCacheHits, err = meter.Int64Counter("rhythm.compile_cache.hits",
		metric.WithDescription("Compile results served from cache"))
	if err != nil {
		return nil, err
	}

	m.CompileCacheMiss, err = meter.Int64Counter("rhythm.compile_cache.misses",
		metric.WithDescription("Compile results computed by the compiler"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordOperation counts one operation and its duration. A nil receiver is a no-op.
func (m *Metrics) RecordOperation(ctx context.Context, op string, start time.Time, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", op))
	m.Operations.Add(ctx, 1, attrs)
	m.OperationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if failed {
		m.OperationFailures.Add(ctx, 1, attrs)
	}
}

// RecordDiagnostics counts diagnostics per source. A nil receiver is a no-op.
func (m *Metrics) RecordDiagnostics(ctx context.Context, source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Diagnostics.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}
