package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	// Save the original provider
	originalProvider := otel.GetTracerProvider()

	// Set test provider
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("causegraph")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartApprovalSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartApprovalSpan(ctx, "yld-123", "agent-1")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "causegraph.approval", s.Name)

		var requestID, source string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "request.id":
				requestID = attr.Value.AsString()
			case "request.source":
				source = attr.Value.AsString()
			}
		}
		assert.Equal(t, "yld-123", requestID)
		assert.Equal(t, "agent-1", source)
	})

	t.Run("returns context with span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := sm.StartApprovalSpan(ctx, "yld-456", "agent-2")

		// Context should carry the span
		assert.NotEqual(t, ctx, newCtx)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
	})
}

func TestStartProjectionSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	ctx := context.Background()
	_, span := sm.StartProjectionSpan(ctx, "alice")
	require.NotNil(t, span)

	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	assert.Equal(t, "causegraph.projection", s.Name)

	var source string
	for _, attr := range s.Attributes {
		if attr.Key == "cone.source" {
			source = attr.Value.AsString()
		}
	}
	assert.Equal(t, "alice", source)
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartApprovalSpan(ctx, "yld-1", "agent")

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		assert.Equal(t, codes.Ok, spans[0].Status.Code)
		assert.Equal(t, "", spans[0].Status.Description)
	})

	t.Run("sets Error status and records error", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := sm.StartApprovalSpan(ctx, "yld-2", "agent")
		testErr := errors.New("graph contains a cycle")

		sm.EndSpanWithError(span, testErr)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "graph contains a cycle", s.Status.Description)

		// Check that error was recorded as an event
		require.NotEmpty(t, s.Events)
		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "Expected exception event")
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := sm.StartApprovalSpan(ctx, "yld-1", "agent")

		sm.AddSpanEvent(ctx, "approval_recorded",
			attribute.String("approver", "alice"),
			attribute.Int64("approved", 1),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		require.NotEmpty(t, s.Events)

		var found bool
		for _, event := range s.Events {
			if event.Name == "approval_recorded" {
				found = true
				var approver string
				var approved int64
				for _, attr := range event.Attributes {
					switch attr.Key {
					case "approver":
						approver = attr.Value.AsString()
					case "approved":
						approved = attr.Value.AsInt64()
					}
				}
				assert.Equal(t, "alice", approver)
				assert.Equal(t, int64(1), approved)
			}
		}
		assert.True(t, found, "Expected to find approval_recorded event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(ctx, "test_event")
		})
	})
}

func TestSpanManager_ChildSpans(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	ctx := context.Background()
	ctx, parent := sm.StartApprovalSpan(ctx, "yld-parent", "agent")

	_, child := sm.StartProjectionSpan(ctx, "agent")
	child.End()

	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	var childData *tracetest.SpanStub
	for i := range spans {
		if spans[i].Name == "causegraph.projection" {
			childData = &spans[i]
			break
		}
	}
	require.NotNil(t, childData)

	// Verify parent-child relationship
	assert.True(t, childData.Parent.IsValid())
}
