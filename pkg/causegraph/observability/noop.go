package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordAppend does nothing.
func (NoopMetrics) RecordAppend(_ context.Context, _ string, _ error) {}

// RecordKnot does nothing.
func (NoopMetrics) RecordKnot(_ context.Context, _ int) {}

// RecordApprovalResolution does nothing.
func (NoopMetrics) RecordApprovalResolution(_ context.Context, _ string, _ time.Duration) {}

// RecordProjection does nothing.
func (NoopMetrics) RecordProjection(_ context.Context, _ string, _ int, _ float64) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartApprovalSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartApprovalSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartProjectionSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartProjectionSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
