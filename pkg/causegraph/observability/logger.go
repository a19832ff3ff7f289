// Package observability provides production-grade observability features
// for causegraph: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds ledger context to a logger.
// Returns a new logger with ledger_id and source fields.
func EnrichLogger(logger *slog.Logger, ledgerID, source string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("ledger_id", ledgerID),
		slog.String("source", source),
	)
}

// LogAppend logs a successful ledger append.
func LogAppend(logger *slog.Logger, eventID, source string, dependencyCount int) {
	if logger == nil {
		return
	}
	logger.Debug("event appended",
		slog.String("event_id", eventID),
		slog.String("source", source),
		slog.Int("dependency_count", dependencyCount),
	)
}

// LogAppendRejected logs a rejected append (cycle or duplicate).
func LogAppendRejected(logger *slog.Logger, eventID, source string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("append rejected",
		slog.String("event_id", eventID),
		slog.String("source", source),
		slog.String("error", err.Error()),
	)
}

// LogKnot logs a join barrier append.
func LogKnot(logger *slog.Logger, knotID string, sourceCount int) {
	if logger == nil {
		return
	}
	logger.Info("knot appended",
		slog.String("event_id", knotID),
		slog.Int("source_count", sourceCount),
	)
}

// LogApprovalRequested logs registration of an approval request.
func LogApprovalRequested(logger *slog.Logger, requestID, source, strategy string, required int) {
	if logger == nil {
		return
	}
	logger.Info("approval requested",
		slog.String("request_id", requestID),
		slog.String("source", source),
		slog.String("strategy", strategy),
		slog.Int("required", required),
	)
}

// LogApprovalResolved logs the terminal outcome of an approval request.
func LogApprovalResolved(logger *slog.Logger, requestID, status string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("approval resolved",
		slog.String("request_id", requestID),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogProjection logs a causal-cone projection.
func LogProjection(logger *slog.Logger, source string, coneSize, total int) {
	if logger == nil {
		return
	}
	logger.Debug("context projected",
		slog.String("source", source),
		slog.Int("cone_size", coneSize),
		slog.Int("total_events", total),
	)
}

// LogJournalError logs a journal mirror failure (non-fatal).
func LogJournalError(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal append failed",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
