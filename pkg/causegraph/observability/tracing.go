package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the causegraph tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("causegraph")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartApprovalSpan starts a span covering an approval request from
	// registration to terminal resolution.
	StartApprovalSpan(ctx context.Context, requestID, source string) (context.Context, trace.Span)

	// StartProjectionSpan starts a span for a causal-cone projection.
	StartProjectionSpan(ctx context.Context, source string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartApprovalSpan starts a span for an approval request.
func (m *otelSpanManager) StartApprovalSpan(ctx context.Context, requestID, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "causegraph.approval",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("request.source", source),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartProjectionSpan starts a span for a cone projection.
func (m *otelSpanManager) StartProjectionSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "causegraph.projection",
		trace.WithAttributes(
			attribute.String("cone.source", source),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, recording err if non-nil.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
