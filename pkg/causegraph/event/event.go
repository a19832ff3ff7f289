// Package event defines the immutable event record at the base of the
// causegraph model.
//
// An Event is one observed unit of agent behavior: an opaque payload, the
// agent that produced it, and a logical timestamp. Events never change after
// construction and are never deleted; causal structure between them lives in
// the ledger's dependency graph, not on the events themselves.
//
// Design Influences:
//   - Trace monoids (event sequence + independence relation)
//   - OpenTelemetry spans (immutable records, parent links held externally)
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KnotSource is the source assigned to synthetic barrier events created by
// the ledger's join operation.
const KnotSource = "system"

// Event is an immutable record of one unit of agent behavior.
// T is the payload type; the core never inspects it.
type Event[T any] struct {
	// ID uniquely identifies this event. Opaque to the core.
	ID string `json:"id"`

	// Content is the caller-supplied payload.
	Content T `json:"content"`

	// Timestamp is a monotonic-ish logical clock value. Ties are broken
	// by ledger insertion order, never by timestamp alone.
	Timestamp int64 `json:"timestamp"`

	// Source identifies the producing agent.
	Source string `json:"source"`
}

// Option configures event creation.
type Option func(*eventConfig)

type eventConfig struct {
	id        string
	timestamp int64
	hasTS     bool
}

// WithID sets a specific event ID (default: auto-generated).
func WithID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithTimestamp sets a specific logical timestamp
// (default: wall clock in nanoseconds).
func WithTimestamp(ts int64) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = ts
		cfg.hasTS = true
	}
}

// New creates an event with the given payload and source.
func New[T any](content T, source string, opts ...Option) Event[T] {
	cfg := &eventConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.id == "" {
		cfg.id = fmt.Sprintf("evt-%s", uuid.New().String()[:8])
	}
	if !cfg.hasTS {
		cfg.timestamp = time.Now().UnixNano()
	}

	return Event[T]{
		ID:        cfg.id,
		Content:   content,
		Timestamp: cfg.timestamp,
		Source:    source,
	}
}

// NewKnot creates a synthetic barrier event over the given tip events,
// one per synchronized source. The knot's ID is derived from the sorted
// tip IDs so the same synchronization set always yields the same knot ID,
// its timestamp is the maximum over the tips, and its content is the zero
// value of T (the sentinel payload for system events).
//
// The caller is responsible for appending the knot to a ledger with the
// tip IDs as its dependencies.
func NewKnot[T any](tips []Event[T]) Event[T] {
	ids := make([]string, len(tips))
	var maxTS int64
	for i, tip := range tips {
		ids[i] = tip.ID
		if tip.Timestamp > maxTS {
			maxTS = tip.Timestamp
		}
	}
	sort.Strings(ids)

	h := sha256.Sum256([]byte(strings.Join(ids, "\x00")))

	var sentinel T
	return Event[T]{
		ID:        fmt.Sprintf("knot-%s", hex.EncodeToString(h[:])[:8]),
		Content:   sentinel,
		Timestamp: maxTS,
		Source:    KnotSource,
	}
}

// IsKnot reports whether the event is a synthetic barrier event.
func (e Event[T]) IsKnot() bool {
	return e.Source == KnotSource && strings.HasPrefix(e.ID, "knot-")
}
