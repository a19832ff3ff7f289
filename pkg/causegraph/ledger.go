package causegraph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/causegraph/pkg/causegraph/event"
)

// Ledger is an append-only trace of events plus one dependency graph over
// the same IDs: the trace-monoid realization of a concurrent history. The
// event sequence records observation order; the graph records which events
// must respect that order and which commute.
//
// Appends are single-writer (serialized internally). Reads may run
// concurrently with each other but not with an append.
type Ledger[T any] struct {
	mu     sync.RWMutex
	events []event.Event[T]
	byID   map[string]int // id -> index into events
	graph  *DependencyGraph
	logger *slog.Logger
}

// NewLedger creates an empty ledger.
func NewLedger[T any]() *Ledger[T] {
	return &Ledger[T]{
		byID:   make(map[string]int),
		graph:  NewDependencyGraph(),
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the ledger.
func (l *Ledger[T]) WithLogger(logger *slog.Logger) *Ledger[T] {
	l.logger = logger
	return l
}

// Append records evt with the given direct dependencies.
//
// Returns ErrDuplicateEvent if the ID was already appended, or a *CycleError
// if the dependencies would close a cycle. On failure neither the sequence
// nor the graph is modified.
//
// Dependencies on IDs not yet appended are allowed: the graph materializes
// placeholder nodes for them (see DependencyGraph).
func (l *Ledger[T]) Append(evt event.Event[T], dependsOn ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(evt, dependsOn)
}

// appendLocked is Append's body. Caller holds l.mu.
func (l *Ledger[T]) appendLocked(evt event.Event[T], dependsOn []string) error {
	if _, exists := l.byID[evt.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, evt.ID)
	}

	if err := l.graph.AddNode(evt.ID, dependsOn...); err != nil {
		l.logger.Warn("append rejected",
			slog.String("event_id", evt.ID),
			slog.String("source", evt.Source),
			slog.String("error", err.Error()),
		)
		return err
	}

	l.byID[evt.ID] = len(l.events)
	l.events = append(l.events, evt)

	l.logger.Debug("event appended",
		slog.String("event_id", evt.ID),
		slog.String("source", evt.Source),
		slog.Int("dependency_count", len(dependsOn)),
	)
	return nil
}

// Get returns the event with the given ID.
func (l *Ledger[T]) Get(id string) (event.Event[T], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, exists := l.byID[id]
	if !exists {
		return event.Event[T]{}, false
	}
	return l.events[idx], true
}

// Len returns the number of appended events.
func (l *Ledger[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns all events in append order.
func (l *Ledger[T]) Events() []event.Event[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]event.Event[T], len(l.events))
	copy(out, l.events)
	return out
}

// Graph returns the ledger's dependency graph. The graph is shared, not a
// copy; callers needing a stable view should Clone it (CausalCone does).
func (l *Ledger[T]) Graph() *DependencyGraph {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.graph
}

// Linearize returns all events in a valid topological order: every
// dependency strictly before its dependents.
func (l *Ledger[T]) Linearize() ([]event.Event[T], error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	order, err := l.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	return l.resolveLocked(order), nil
}

// LinearizeSubset returns a valid topological order restricted to ids,
// computed on the induced subgraph: edges leaving the subset are ignored.
// Unknown IDs are skipped.
func (l *Ledger[T]) LinearizeSubset(ids []string) ([]event.Event[T], error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	order, err := l.graph.TopologicalSortSubset(ids)
	if err != nil {
		return nil, err
	}
	return l.resolveLocked(order), nil
}

// resolveLocked maps an ID order to events, skipping placeholder IDs that
// have no appended event yet.
func (l *Ledger[T]) resolveLocked(order []string) []event.Event[T] {
	out := make([]event.Event[T], 0, len(order))
	for _, id := range order {
		if idx, exists := l.byID[id]; exists {
			out = append(out, l.events[idx])
		}
	}
	return out
}

// Project returns what source can see: its own events plus every event any
// of them transitively depends on, in append order. A source's own events
// therefore appear in the order it produced them.
func (l *Ledger[T]) Project(source string) []event.Event[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	visible := make(map[string]struct{})
	for _, evt := range l.events {
		if evt.Source != source {
			continue
		}
		visible[evt.ID] = struct{}{}
		for _, dep := range l.graph.AllDependencies(evt.ID) {
			visible[dep] = struct{}{}
		}
	}

	out := make([]event.Event[T], 0, len(visible))
	for _, evt := range l.events {
		if _, ok := visible[evt.ID]; ok {
			out = append(out, evt)
		}
	}
	return out
}

// Join appends a knot: a synthetic barrier event depending on the latest
// event of each named source. Sources with no events are omitted; if no
// source has any, ErrNoEvents is returned. The knot is appended like any
// other event, so later events can depend on the barrier.
//
// Tip collection and the knot append happen in one critical section: a
// concurrent append cannot slip between a source's observed tip and the
// barrier that claims to cover it.
func (l *Ledger[T]) Join(sources ...string) (event.Event[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tips := make([]event.Event[T], 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, source := range sources {
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		for i := len(l.events) - 1; i >= 0; i-- {
			if l.events[i].Source == source {
				tips = append(tips, l.events[i])
				break
			}
		}
	}

	if len(tips) == 0 {
		return event.Event[T]{}, ErrNoEvents
	}

	knot := event.NewKnot(tips)
	deps := make([]string, len(tips))
	for i, tip := range tips {
		deps[i] = tip.ID
	}

	if err := l.appendLocked(knot, deps); err != nil {
		return event.Event[T]{}, err
	}

	l.logger.Debug("knot appended",
		slog.String("event_id", knot.ID),
		slog.Int("source_count", len(tips)),
	)
	return knot, nil
}
