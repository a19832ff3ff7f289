package causegraph

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/causegraph/pkg/causegraph/approval"
	"github.com/randalmurphal/causegraph/pkg/causegraph/config"
	"github.com/randalmurphal/causegraph/pkg/causegraph/event"
	"github.com/randalmurphal/causegraph/pkg/causegraph/journal"
	"github.com/randalmurphal/causegraph/pkg/causegraph/observability"
	"github.com/randalmurphal/causegraph/pkg/causegraph/turn"
)

// Runtime is the programmatic surface producers, approvers, and
// context-assembly callers share: one ledger, one approval handler, and the
// ambient plumbing (journal mirror, metrics, tracing) wired together.
//
// Producers call Append and SubmitYield; approvers call Approve and Reject;
// agents call ProjectContext before acting. Export adapters read SpanTree.
type Runtime[T any] struct {
	ledger  *Ledger[T]
	handler *approval.Handler[T]

	journal   journal.Store
	journalID string

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	clock           atomic.Int64
	defaultTimeout  time.Duration
	defaultStrategy approval.Strategy
	handlerOpts     []approval.HandlerOption[T]
}

// RuntimeOption configures a Runtime.
type RuntimeOption[T any] func(*Runtime[T])

// WithRuntimeLogger sets the runtime's logger (default slog.Default()).
func WithRuntimeLogger[T any](logger *slog.Logger) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithJournal mirrors every successful append into store under ledgerID.
// Mirroring is best-effort: journal failures are logged and never block
// the ledger.
func WithJournal[T any](store journal.Store, ledgerID string) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		r.journal = store
		r.journalID = ledgerID
	}
}

// WithMetrics sets the metrics recorder (default NoopMetrics).
func WithMetrics[T any](metrics observability.MetricsRecorder) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

// WithSpanManager sets the span manager (default NoopSpanManager).
func WithSpanManager[T any](spans observability.SpanManager) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		if spans != nil {
			r.spans = spans
		}
	}
}

// WithDefaultTimeout sets the default approval deadline.
// Zero means requests block until resolved.
func WithDefaultTimeout[T any](d time.Duration) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		r.defaultTimeout = d
	}
}

// WithDefaultStrategy sets the default consensus strategy (default All).
func WithDefaultStrategy[T any](s approval.Strategy) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		r.defaultStrategy = s
	}
}

// WithHandlerOptions passes options through to the approval handler
// (callbacks in particular).
func WithHandlerOptions[T any](opts ...approval.HandlerOption[T]) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		r.handlerOpts = append(r.handlerOpts, opts...)
	}
}

// WithSettings applies runtime settings loaded from configuration.
// The journal store, if any, must still be supplied via WithJournal.
func WithSettings[T any](s config.Settings) RuntimeOption[T] {
	return func(r *Runtime[T]) {
		r.defaultTimeout = s.ApprovalTimeout
		switch s.ApprovalStrategy {
		case "any":
			r.defaultStrategy = approval.Any
		case "majority":
			r.defaultStrategy = approval.Majority
		default:
			r.defaultStrategy = approval.All
		}
		if s.LedgerID != "" {
			r.journalID = s.LedgerID
		}
	}
}

// NewRuntime creates a runtime with an empty ledger.
func NewRuntime[T any](opts ...RuntimeOption[T]) *Runtime[T] {
	r := &Runtime[T]{
		logger:          slog.Default(),
		metrics:         observability.NoopMetrics{},
		spans:           observability.NoopSpanManager{},
		journalID:       "default",
		defaultStrategy: approval.All,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.ledger = NewLedger[T]().WithLogger(r.logger)
	r.handler = approval.NewHandler(
		append([]approval.HandlerOption[T]{approval.WithLogger[T](r.logger)}, r.handlerOpts...)...,
	)
	return r
}

// Ledger returns the underlying ledger for direct queries.
func (r *Runtime[T]) Ledger() *Ledger[T] {
	return r.ledger
}

// Handler returns the underlying approval handler.
func (r *Runtime[T]) Handler() *approval.Handler[T] {
	return r.handler
}

// tick returns the next logical timestamp.
func (r *Runtime[T]) tick() int64 {
	return r.clock.Add(1)
}

// Append records a new event for source with the given dependencies and
// returns its ID. The event carries the runtime's logical clock.
func (r *Runtime[T]) Append(ctx context.Context, content T, source string, dependsOn ...string) (string, error) {
	evt := event.New(content, source, event.WithTimestamp(r.tick()))

	err := r.ledger.Append(evt, dependsOn...)
	r.metrics.RecordAppend(ctx, source, err)
	if err != nil {
		return "", err
	}

	r.mirror(evt, dependsOn, evt.Content)
	return evt.ID, nil
}

// AppendTurn records a constructed turn (any kind) with the given
// dependencies. Yield turns appended this way are NOT registered for
// approval; use SubmitYield for the blocking governance path.
//
// The ledger stores the turn's embedded event; the journal record's
// payload carries the full turn, so kind, fingerprints, and confidence
// remain recoverable from the audit trail.
func (r *Runtime[T]) AppendTurn(ctx context.Context, t turn.Turn[T], dependsOn ...string) error {
	err := r.ledger.Append(t.Event, dependsOn...)
	r.metrics.RecordAppend(ctx, t.Source, err)
	if err != nil {
		return err
	}
	r.mirror(t.Event, dependsOn, t)
	return nil
}

// Join appends a knot barrier over the named sources. See Ledger.Join.
func (r *Runtime[T]) Join(ctx context.Context, sources ...string) (event.Event[T], error) {
	knot, err := r.ledger.Join(sources...)
	if err != nil {
		return event.Event[T]{}, err
	}

	r.metrics.RecordKnot(ctx, len(sources))
	observability.LogKnot(r.logger, knot.ID, len(sources))
	r.mirror(knot, r.ledger.Graph().Dependencies(knot.ID), knot.Content)
	return knot, nil
}

// YieldOption configures a SubmitYield call.
type YieldOption func(*yieldConfig)

type yieldConfig struct {
	dependsOn   []string
	turnOpts    []turn.Option
	requestOpts []approval.RequestOption
	hasTimeout  bool
	hasStrategy bool
}

// WithDependencies declares the yield turn's causal dependencies.
func WithDependencies(ids ...string) YieldOption {
	return func(cfg *yieldConfig) {
		cfg.dependsOn = append(cfg.dependsOn, ids...)
	}
}

// WithTurnOptions passes options through to turn construction
// (state fingerprints, confidence, entropy cost).
func WithTurnOptions(opts ...turn.Option) YieldOption {
	return func(cfg *yieldConfig) {
		cfg.turnOpts = append(cfg.turnOpts, opts...)
	}
}

// WithYieldTimeout overrides the runtime's default approval deadline.
func WithYieldTimeout(d time.Duration) YieldOption {
	return func(cfg *yieldConfig) {
		cfg.requestOpts = append(cfg.requestOpts, approval.WithTimeout(d))
		cfg.hasTimeout = true
	}
}

// WithYieldStrategy overrides the runtime's default consensus strategy.
func WithYieldStrategy(s approval.Strategy) YieldOption {
	return func(cfg *yieldConfig) {
		cfg.requestOpts = append(cfg.requestOpts, approval.WithStrategy(s))
		cfg.hasStrategy = true
	}
}

// SubmitYield appends a yield turn to the ledger, registers it with the
// approval handler, and suspends the caller until resolution. This is the
// only blocking operation on the runtime.
//
// The returned resolution carries the terminal status and the turn with
// whatever approvals accumulated. The ledger append happens regardless of
// the eventual outcome: the proposal itself is part of causal history.
// The ledger stores the yield's embedded event; the journal record's
// payload carries the full yield turn (reason, required approvers,
// approvals at submission time).
func (r *Runtime[T]) SubmitYield(ctx context.Context, content T, source, reason string, requiredApprovers []string, opts ...YieldOption) (approval.Resolution[T], error) {
	cfg := &yieldConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	turnOpts := append(cfg.turnOpts, turn.WithEventOptions(event.WithTimestamp(r.tick())))
	yt := turn.NewYield(content, source, reason, requiredApprovers, turnOpts...)

	if err := r.ledger.Append(yt.Event, cfg.dependsOn...); err != nil {
		r.metrics.RecordAppend(ctx, source, err)
		return approval.Resolution[T]{Status: approval.Pending, Turn: yt}, err
	}
	r.metrics.RecordAppend(ctx, source, nil)
	r.mirror(yt.Event, cfg.dependsOn, yt)

	requestOpts := cfg.requestOpts
	if !cfg.hasTimeout && r.defaultTimeout > 0 {
		requestOpts = append(requestOpts, approval.WithTimeout(r.defaultTimeout))
	}
	if !cfg.hasStrategy {
		requestOpts = append(requestOpts, approval.WithStrategy(r.defaultStrategy))
	}

	ctx, span := r.spans.StartApprovalSpan(ctx, yt.ID, source)
	done := observability.TimedOperation()

	res, err := r.handler.RequestApproval(ctx, yt, requestOpts...)
	durationMs := done()

	r.spans.EndSpanWithError(span, err)
	r.metrics.RecordApprovalResolution(ctx, res.Status.String(), time.Duration(durationMs*float64(time.Millisecond)))
	observability.LogApprovalResolved(r.logger, yt.ID, res.Status.String(), durationMs)
	return res, err
}

// Approve delegates to the approval handler. See approval.Handler.Approve.
func (r *Runtime[T]) Approve(requestID, approver string) (bool, error) {
	return r.handler.Approve(requestID, approver)
}

// Reject delegates to the approval handler. See approval.Handler.Reject.
func (r *Runtime[T]) Reject(requestID, rejector, reason string) bool {
	return r.handler.Reject(requestID, rejector, reason)
}

// ListPending returns all live approval requests.
func (r *Runtime[T]) ListPending() []turn.YieldTurn[T] {
	return r.handler.ListPending()
}

// IsPending reports whether the request ID is awaiting resolution.
func (r *Runtime[T]) IsPending(requestID string) bool {
	return r.handler.IsPending(requestID)
}

// Cone returns a fresh causal cone over the ledger's current state. The
// caller keeps a stable view until it calls Refresh.
func (r *Runtime[T]) Cone() *CausalCone[T] {
	return NewCausalCone(r.ledger)
}

// ProjectContext returns source's minimal causal context from a fresh
// snapshot. Agents wanting a stable view across several queries should hold
// their own Cone instead.
func (r *Runtime[T]) ProjectContext(ctx context.Context, source string) []event.Event[T] {
	_, span := r.spans.StartProjectionSpan(ctx, source)
	cone := r.Cone()
	events := cone.ProjectContext(source)
	r.spans.EndSpanWithError(span, nil)

	r.metrics.RecordProjection(ctx, source, len(events), cone.CompressionRatio(source))
	observability.LogProjection(r.logger, source, len(events), r.ledger.Len())
	return events
}

// ConeSize returns the size of source's causal cone in a fresh snapshot.
func (r *Runtime[T]) ConeSize(source string) int {
	return r.Cone().ConeSize(source)
}

// CompressionRatio returns source's compression ratio in a fresh snapshot.
func (r *Runtime[T]) CompressionRatio(source string) float64 {
	return r.Cone().CompressionRatio(source)
}

// SpanTree returns the linearized event sequence and the direct-dependency
// map: enough for an export adapter to reconstruct a parent/child span tree
// (root = no dependencies; parent = first dependency).
func (r *Runtime[T]) SpanTree() ([]event.Event[T], map[string][]string, error) {
	events, err := r.ledger.Linearize()
	if err != nil {
		return nil, nil, err
	}
	return events, r.ledger.Graph().Edges(), nil
}

// mirror writes a best-effort journal record for a successful append.
// payload is what the record carries: the bare content for plain events,
// the full turn for turn appends so kind, fingerprints, and governance
// detail survive in the audit trail.
func (r *Runtime[T]) mirror(evt event.Event[T], dependsOn []string, payload any) {
	if r.journal == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		observability.LogJournalError(r.logger, evt.ID, err)
		data = nil
	}

	rec := journal.Record{
		EventID:    evt.ID,
		Source:     evt.Source,
		Timestamp:  evt.Timestamp,
		DependsOn:  dependsOn,
		Payload:    data,
		AppendedAt: time.Now().UTC(),
	}
	if err := r.journal.Append(r.journalID, rec); err != nil {
		observability.LogJournalError(r.logger, evt.ID, err)
	}
}
