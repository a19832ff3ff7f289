package causegraph

import (
	"sync"

	"github.com/randalmurphal/causegraph/pkg/causegraph/event"
)

// CausalCone is a read-oriented projection over a ledger snapshot. For a
// source it computes the minimal causally relevant event set and a valid
// linear order over it: everything the source's own events transitively
// depend on, and nothing more.
//
// The cone holds a snapshot taken at construction or on the last Refresh.
// It is never invalidated automatically; a stale cone intentionally reflects
// an earlier ledger state so an agent gets a stable view for the duration of
// a decision cycle.
type CausalCone[T any] struct {
	mu     sync.RWMutex
	ledger *Ledger[T]

	// Snapshot state.
	graph    *DependencyGraph
	events   []event.Event[T]
	bySource map[string][]string // source -> event IDs in append order
}

// NewCausalCone creates a cone over an immediate snapshot of the ledger.
func NewCausalCone[T any](ledger *Ledger[T]) *CausalCone[T] {
	cone := &CausalCone[T]{ledger: ledger}
	cone.Refresh()
	return cone
}

// Refresh replaces the snapshot with the ledger's current state. This is the
// only way the cone's view advances.
func (c *CausalCone[T]) Refresh() {
	events := c.ledger.Events()
	graph := c.ledger.Graph().Clone()

	bySource := make(map[string][]string)
	for _, evt := range events {
		bySource[evt.Source] = append(bySource[evt.Source], evt.ID)
	}

	c.mu.Lock()
	c.graph = graph
	c.events = events
	c.bySource = bySource
	c.mu.Unlock()
}

// ProjectContext returns the minimal causal context for source: each of its
// events plus the transitive closure of their dependencies, in a valid
// topological order. Empty if the source has no events in the snapshot.
func (c *CausalCone[T]) ProjectContext(source string) []event.Event[T] {
	c.mu.RLock()
	seeds := c.bySource[source]
	c.mu.RUnlock()
	return c.ProjectContextFromEvents(seeds)
}

// ProjectContextFromEvents computes the same projection seeded from an
// arbitrary ID set instead of a source's events.
func (c *CausalCone[T]) ProjectContextFromEvents(ids []string) []event.Event[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(ids) == 0 {
		return nil
	}

	cone := make(map[string]struct{})
	for _, id := range ids {
		cone[id] = struct{}{}
		for _, dep := range c.graph.AllDependencies(id) {
			cone[dep] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(cone))
	for id := range cone {
		ordered = append(ordered, id)
	}
	order, err := c.graph.TopologicalSortSubset(ordered)
	if err != nil {
		// The snapshot graph is acyclic by construction; an induced
		// subgraph of a DAG cannot cycle.
		return nil
	}

	byID := make(map[string]event.Event[T], len(c.events))
	for _, evt := range c.events {
		byID[evt.ID] = evt
	}

	out := make([]event.Event[T], 0, len(order))
	for _, id := range order {
		if evt, ok := byID[id]; ok {
			out = append(out, evt)
		}
	}
	return out
}

// AreCausallyRelated reports whether one of a, b causally reaches the other
// in the snapshot: the negation of concurrency.
func (c *CausalCone[T]) AreCausallyRelated(a, b string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.graph.AreConcurrent(a, b)
}

// ConeSize returns the number of events in source's causal cone.
func (c *CausalCone[T]) ConeSize(source string) int {
	return len(c.ProjectContext(source))
}

// CompressionRatio returns 1 - cone_size/total_events for source: the
// fraction of the ledger the source does NOT need to see. 0 means the
// source is entangled with the whole history, 1 would mean an empty cone
// over a non-empty ledger. Returns 0 for an empty snapshot.
func (c *CausalCone[T]) CompressionRatio(source string) float64 {
	c.mu.RLock()
	total := len(c.events)
	c.mu.RUnlock()

	if total == 0 {
		return 0
	}
	return 1 - float64(c.ConeSize(source))/float64(total)
}
