package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records causegraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordAppend records a ledger append attempt and its error status.
	RecordAppend(ctx context.Context, source string, err error)

	// RecordKnot records a join barrier over the given number of sources.
	RecordKnot(ctx context.Context, sourceCount int)

	// RecordApprovalResolution records a terminal approval outcome and
	// how long the requester was suspended.
	RecordApprovalResolution(ctx context.Context, status string, duration time.Duration)

	// RecordProjection records a cone projection and its compression ratio.
	RecordProjection(ctx context.Context, source string, coneSize int, compressionRatio float64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	appends           metric.Int64Counter
	appendRejections  metric.Int64Counter
	knots             metric.Int64Counter
	approvalOutcomes  metric.Int64Counter
	approvalLatency   metric.Float64Histogram
	coneSize          metric.Int64Histogram
	compressionRatios metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("causegraph")

	appends, err := meter.Int64Counter("causegraph.ledger.appends",
		metric.WithDescription("Number of ledger append attempts"),
	)
	if err != nil {
		return nil, err
	}

	appendRejections, err := meter.Int64Counter("causegraph.ledger.append_rejections",
		metric.WithDescription("Number of appends rejected (cycle or duplicate)"),
	)
	if err != nil {
		return nil, err
	}

	knots, err := meter.Int64Counter("causegraph.ledger.knots",
		metric.WithDescription("Number of join barriers appended"),
	)
	if err != nil {
		return nil, err
	}

	approvalOutcomes, err := meter.Int64Counter("causegraph.approval.outcomes",
		metric.WithDescription("Number of approval requests by terminal status"),
	)
	if err != nil {
		return nil, err
	}

	approvalLatency, err := meter.Float64Histogram("causegraph.approval.latency_ms",
		metric.WithDescription("Approval resolution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	coneSize, err := meter.Int64Histogram("causegraph.cone.size",
		metric.WithDescription("Causal cone size in events"),
	)
	if err != nil {
		return nil, err
	}

	compressionRatios, err := meter.Float64Histogram("causegraph.cone.compression_ratio",
		metric.WithDescription("Fraction of the ledger excluded from a projected cone"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		appends:           appends,
		appendRejections:  appendRejections,
		knots:             knots,
		approvalOutcomes:  approvalOutcomes,
		approvalLatency:   approvalLatency,
		coneSize:          coneSize,
		compressionRatios: compressionRatios,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordAppend records a ledger append attempt.
func (m *otelMetrics) RecordAppend(ctx context.Context, source string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("source", source),
	}
	m.appends.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.appendRejections.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordKnot records a join barrier.
func (m *otelMetrics) RecordKnot(ctx context.Context, sourceCount int) {
	m.knots.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("source_count", sourceCount),
	))
}

// RecordApprovalResolution records a terminal approval outcome.
func (m *otelMetrics) RecordApprovalResolution(ctx context.Context, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
	}
	m.approvalOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.approvalLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordProjection records a cone projection.
func (m *otelMetrics) RecordProjection(ctx context.Context, source string, coneSize int, compressionRatio float64) {
	attrs := []attribute.KeyValue{
		attribute.String("source", source),
	}
	m.coneSize.Record(ctx, int64(coneSize), metric.WithAttributes(attrs...))
	m.compressionRatios.Record(ctx, compressionRatio, metric.WithAttributes(attrs...))
}
