// Package approval implements the governed-action coordinator: it holds
// in-flight yield requests, suspends requesters until a consensus strategy
// is satisfied, a rejection arrives, or a deadline elapses, and lets any
// number of approvers act against the shared request table concurrently.
//
// Each pending request owns an independent suspension primitive (a closed-on
// -resolution channel), so unrelated requests never contend. Approvals on the
// same request serialize on a per-request mutex; the accumulated approver set
// can never lose an update.
//
// Design Influences:
//   - Temporal human-task signals (external actors resolving a blocked flow)
//   - Go channel+select as the blocking-with-timeout primitive (no polling)
package approval

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/causegraph/pkg/causegraph/turn"
)

// Status is the terminal outcome of an approval request.
type Status int

// Request states. Pending is never returned from RequestApproval; it is the
// live-table state before resolution.
const (
	Pending Status = iota
	Approved
	Rejected
	TimedOut
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ErrDuplicateRequest indicates a request ID is already pending.
var ErrDuplicateRequest = errors.New("approval request already pending")

// Resolution is the final outcome of a request: the terminal status, the
// turn with whatever approvals accumulated before resolution, and rejection
// detail when the status is Rejected.
type Resolution[T any] struct {
	Status   Status
	Turn     turn.YieldTurn[T]
	Rejector string
	Reason   string
}

// pendingApproval is one live entry in the request table. Its mutex guards
// the turn value and status; done closes exactly once, on resolution.
type pendingApproval[T any] struct {
	mu       sync.Mutex
	turn     turn.YieldTurn[T]
	strategy Strategy
	status   Status
	rejector string
	reason   string
	done     chan struct{}
}

// resolveLocked moves the request to a terminal status and releases the
// waiter. Callers must hold p.mu. No-op if already resolved.
func (p *pendingApproval[T]) resolveLocked(status Status) {
	if p.status != Pending {
		return
	}
	p.status = status
	close(p.done)
}

// Handler manages in-flight approval requests. It is safe for concurrent
// use by many approvers and many simultaneous requesters.
type Handler[T any] struct {
	mu      sync.Mutex
	pending map[string]*pendingApproval[T]

	logger     *slog.Logger
	onApproved []func(turn.YieldTurn[T])
	onRejected []func(turn.YieldTurn[T], string, string)
	onTimeout  []func(turn.YieldTurn[T])
}

// HandlerOption configures a Handler.
type HandlerOption[T any] func(*Handler[T])

// WithLogger sets the handler's logger.
func WithLogger[T any](logger *slog.Logger) HandlerOption[T] {
	return func(h *Handler[T]) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// OnApproved registers a callback invoked when a request resolves Approved.
// Callback panics are isolated and logged; they never affect resolution.
func OnApproved[T any](fn func(turn.YieldTurn[T])) HandlerOption[T] {
	return func(h *Handler[T]) {
		h.onApproved = append(h.onApproved, fn)
	}
}

// OnRejected registers a callback invoked with the turn, rejector, and
// reason when a request resolves Rejected.
func OnRejected[T any](fn func(turn.YieldTurn[T], string, string)) HandlerOption[T] {
	return func(h *Handler[T]) {
		h.onRejected = append(h.onRejected, fn)
	}
}

// OnTimeout registers a callback invoked when a request times out.
func OnTimeout[T any](fn func(turn.YieldTurn[T])) HandlerOption[T] {
	return func(h *Handler[T]) {
		h.onTimeout = append(h.onTimeout, fn)
	}
}

// NewHandler creates an approval handler.
func NewHandler[T any](opts ...HandlerOption[T]) *Handler[T] {
	h := &Handler[T]{
		pending: make(map[string]*pendingApproval[T]),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RequestOption configures a single approval request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	timeout  time.Duration
	strategy Strategy
}

// WithTimeout sets a deadline for the request. Zero or negative means no
// deadline: the request blocks until approved or rejected.
func WithTimeout(d time.Duration) RequestOption {
	return func(cfg *requestConfig) {
		cfg.timeout = d
	}
}

// WithStrategy selects the consensus strategy. Default: All.
func WithStrategy(s Strategy) RequestOption {
	return func(cfg *requestConfig) {
		cfg.strategy = s
	}
}

// RequestApproval registers yt as a pending request and suspends the caller
// until the strategy predicate holds (Approved), any rejection arrives
// (Rejected, a strategy-independent veto), or the optional deadline elapses
// (TimedOut). This is the only blocking operation in the package.
//
// If the strategy already holds at submission (e.g. an empty required set),
// the request resolves Approved immediately without entering the table.
//
// Context cancellation resolves the request as TimedOut and returns the
// context error alongside the resolution.
func (h *Handler[T]) RequestApproval(ctx context.Context, yt turn.YieldTurn[T], opts ...RequestOption) (Resolution[T], error) {
	cfg := &requestConfig{strategy: All}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.strategy.satisfied(yt.ApprovalCount(), yt.RequiredCount()) {
		h.logger.Debug("approval request pre-satisfied",
			slog.String("request_id", yt.ID),
			slog.String("strategy", cfg.strategy.String()),
		)
		res := Resolution[T]{Status: Approved, Turn: yt}
		h.notify(res)
		return res, nil
	}

	p := &pendingApproval[T]{
		turn:     yt,
		strategy: cfg.strategy,
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if _, exists := h.pending[yt.ID]; exists {
		h.mu.Unlock()
		return Resolution[T]{Status: Pending, Turn: yt}, ErrDuplicateRequest
	}
	h.pending[yt.ID] = p
	h.mu.Unlock()

	h.logger.Debug("approval requested",
		slog.String("request_id", yt.ID),
		slog.String("source", yt.Source),
		slog.String("strategy", cfg.strategy.String()),
		slog.Int("required", yt.RequiredCount()),
	)

	var timeoutCh <-chan time.Time
	if cfg.timeout > 0 {
		timer := time.NewTimer(cfg.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var ctxErr error
	select {
	case <-p.done:
		// Resolved by an approver or rejector.
	case <-timeoutCh:
		p.mu.Lock()
		p.resolveLocked(TimedOut)
		p.mu.Unlock()
	case <-ctx.Done():
		ctxErr = ctx.Err()
		p.mu.Lock()
		p.resolveLocked(TimedOut)
		p.mu.Unlock()
	}

	h.mu.Lock()
	delete(h.pending, yt.ID)
	h.mu.Unlock()

	p.mu.Lock()
	res := Resolution[T]{
		Status:   p.status,
		Turn:     p.turn,
		Rejector: p.rejector,
		Reason:   p.reason,
	}
	p.mu.Unlock()

	h.logger.Debug("approval resolved",
		slog.String("request_id", yt.ID),
		slog.String("status", res.Status.String()),
	)
	h.notify(res)
	return res, ctxErr
}

// Approve folds an approval into the pending request with the given ID and
// wakes the waiter if the strategy predicate now holds.
//
// Returns (false, nil) for unknown or already-resolved IDs: a late approval
// is a no-op. Returns (false, *turn.InvalidApproverError) if approver is not
// in the turn's required set; the accumulated set is unchanged.
func (h *Handler[T]) Approve(id, approver string) (bool, error) {
	h.mu.Lock()
	p, exists := h.pending[id]
	h.mu.Unlock()
	if !exists {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != Pending {
		return false, nil
	}

	updated, err := p.turn.Approve(approver)
	if err != nil {
		return false, err
	}
	p.turn = updated

	h.logger.Debug("approval recorded",
		slog.String("request_id", id),
		slog.String("approver", approver),
		slog.Int("approved", updated.ApprovalCount()),
		slog.Int("required", updated.RequiredCount()),
	)

	if p.strategy.satisfied(updated.ApprovalCount(), updated.RequiredCount()) {
		p.resolveLocked(Approved)
	}
	return true, nil
}

// Reject vetoes the pending request with the given ID and unconditionally
// wakes the waiter. Rejection is terminal regardless of accumulated
// approvals or strategy. Returns false for unknown or already-resolved IDs.
func (h *Handler[T]) Reject(id, rejector, reason string) bool {
	h.mu.Lock()
	p, exists := h.pending[id]
	h.mu.Unlock()
	if !exists {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != Pending {
		return false
	}

	p.rejector = rejector
	p.reason = reason
	p.resolveLocked(Rejected)

	h.logger.Debug("approval rejected",
		slog.String("request_id", id),
		slog.String("rejector", rejector),
	)
	return true
}

// IsPending reports whether the request ID is in the live table.
func (h *Handler[T]) IsPending(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, exists := h.pending[id]
	return exists
}

// ListPending returns the current turn value of every live request.
func (h *Handler[T]) ListPending() []turn.YieldTurn[T] {
	h.mu.Lock()
	entries := make([]*pendingApproval[T], 0, len(h.pending))
	for _, p := range h.pending {
		entries = append(entries, p)
	}
	h.mu.Unlock()

	out := make([]turn.YieldTurn[T], 0, len(entries))
	for _, p := range entries {
		p.mu.Lock()
		out = append(out, p.turn)
		p.mu.Unlock()
	}
	return out
}

// notify runs the registered callbacks for a resolution. A misbehaving
// callback cannot affect resolution: panics are recovered and logged.
func (h *Handler[T]) notify(res Resolution[T]) {
	run := func(fn func()) {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("approval callback panicked",
					slog.String("request_id", res.Turn.ID),
					slog.Any("panic", r),
				)
			}
		}()
		fn()
	}

	switch res.Status {
	case Approved:
		for _, fn := range h.onApproved {
			run(func() { fn(res.Turn) })
		}
	case Rejected:
		for _, fn := range h.onRejected {
			run(func() { fn(res.Turn, res.Rejector, res.Reason) })
		}
	case TimedOut:
		for _, fn := range h.onTimeout {
			run(func() { fn(res.Turn) })
		}
	}
}
