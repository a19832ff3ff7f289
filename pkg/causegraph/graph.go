package causegraph

import (
	"sync"
)

// DependencyGraph is a mutable DAG over event IDs. Edges point from a node
// to the nodes it depends on (its causal predecessors).
//
// The graph is always acyclic: an insert that would close a cycle or declare
// a self-dependency is rejected atomically, leaving the graph unchanged.
// Nodes grow monotonically; there is no delete primitive.
//
// A node may declare a dependency on an ID that has not been added yet. The
// missing ID is silently materialized as an empty placeholder node. This is
// deliberate permissiveness: producers (instrumentation in particular) may
// emit events out of causal-declaration order.
//
// Mutation is single-writer. Reads may run concurrently with each other but
// must not race with AddNode.
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[string]struct{}
	order []string                       // insertion order, for stable sorts
	edges map[string]map[string]struct{} // id -> direct dependencies

	// Transitive-closure cache, keyed by structural generation.
	generation uint64
	closureGen uint64
	closures   map[string]map[string]struct{}
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]struct{}),
		edges:    make(map[string]map[string]struct{}),
		closures: make(map[string]map[string]struct{}),
	}
}

// AddNode inserts id with the given direct dependencies.
//
// Returns a *CycleError (wrapping ErrCycle) if id depends on itself or if
// the insert would close a cycle; the graph is left structurally unchanged.
// Dependency IDs not yet present are materialized as placeholder nodes.
// Adding an existing id merges the new dependencies into its current set.
func (g *DependencyGraph) AddNode(id string, dependsOn ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, dep := range dependsOn {
		if dep == id {
			return &CycleError{Node: id, DependsOn: dependsOn}
		}
	}

	// Reject before mutating anything: a cycle closes exactly when id is
	// already reachable from one of its declared dependencies.
	for _, dep := range dependsOn {
		if g.reachesLocked(dep, id) {
			return &CycleError{Node: id, DependsOn: dependsOn}
		}
	}

	g.materializeLocked(id)
	for _, dep := range dependsOn {
		g.materializeLocked(dep)
		g.edges[id][dep] = struct{}{}
	}

	g.generation++
	return nil
}

// materializeLocked ensures id exists as a node.
func (g *DependencyGraph) materializeLocked(id string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = struct{}{}
	g.order = append(g.order, id)
	g.edges[id] = make(map[string]struct{})
}

// reachesLocked reports whether target is reachable from start by following
// dependency edges. Unknown start IDs reach nothing.
func (g *DependencyGraph) reachesLocked(start, target string) bool {
	if _, exists := g.nodes[start]; !exists {
		return false
	}
	visited := map[string]struct{}{start: {}}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dep := range g.edges[current] {
			if dep == target {
				return true
			}
			if _, seen := visited[dep]; !seen {
				visited[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}
	return false
}

// Has reports whether id is a node in the graph.
func (g *DependencyGraph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.nodes[id]
	return exists
}

// Len returns the number of nodes.
func (g *DependencyGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes returns all node IDs in insertion order.
func (g *DependencyGraph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependencies returns a copy of id's direct dependency set.
// Unknown IDs yield an empty set.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps := make([]string, 0, len(g.edges[id]))
	for dep := range g.edges[id] {
		deps = append(deps, dep)
	}
	return deps
}

// AllDependencies returns the transitive closure of id's dependencies.
// Unknown IDs yield an empty set. Results are cached per structural
// generation; any AddNode invalidates the cache.
func (g *DependencyGraph) AllDependencies(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	closure := g.allDependenciesLocked(id)
	out := make([]string, 0, len(closure))
	for dep := range closure {
		out = append(out, dep)
	}
	return out
}

// allDependenciesLocked computes (or returns the cached) closure for id.
// Callers must hold the write lock because it populates the cache.
func (g *DependencyGraph) allDependenciesLocked(id string) map[string]struct{} {
	if g.closureGen != g.generation {
		g.closures = make(map[string]map[string]struct{})
		g.closureGen = g.generation
	}
	if cached, ok := g.closures[id]; ok {
		return cached
	}

	closure := make(map[string]struct{})
	queue := make([]string, 0, len(g.edges[id]))
	for dep := range g.edges[id] {
		queue = append(queue, dep)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := closure[current]; seen {
			continue
		}
		closure[current] = struct{}{}
		for dep := range g.edges[current] {
			queue = append(queue, dep)
		}
	}

	g.closures[id] = closure
	return closure
}

// AreConcurrent reports whether a and b have no causal-order constraint:
// neither reaches the other through dependency edges.
//
// Unknown IDs are concurrent with everything; absence of information implies
// absence of an ordering constraint.
func (g *DependencyGraph) AreConcurrent(a, b string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[a]; !exists {
		return true
	}
	if _, exists := g.nodes[b]; !exists {
		return true
	}

	if _, ok := g.allDependenciesLocked(a)[b]; ok {
		return false
	}
	if _, ok := g.allDependenciesLocked(b)[a]; ok {
		return false
	}
	return true
}

// TopologicalSort returns one valid total order of all nodes with every
// dependency strictly before its dependents (Kahn's algorithm). Ties are
// broken by node insertion order.
//
// Returns a *CycleError if not all nodes can be emitted. This cannot happen
// through AddNode alone; it guards the invariant.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortSubsetLocked(g.order, nil)
}

// TopologicalSortSubset returns a valid topological order restricted to ids,
// computed on the induced subgraph: dependency edges leaving the subset are
// ignored. Unknown IDs are skipped.
func (g *DependencyGraph) TopologicalSortSubset(ids []string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	subset := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, exists := g.nodes[id]; exists {
			subset[id] = struct{}{}
		}
	}

	// Preserve graph insertion order for determinism.
	ordered := make([]string, 0, len(subset))
	for _, id := range g.order {
		if _, ok := subset[id]; ok {
			ordered = append(ordered, id)
		}
	}
	return g.sortSubsetLocked(ordered, subset)
}

// sortSubsetLocked runs Kahn's algorithm over the given nodes. A nil subset
// means the whole graph. Nodes must be given in the preferred tie-break order.
func (g *DependencyGraph) sortSubsetLocked(nodes []string, subset map[string]struct{}) ([]string, error) {
	inSubset := func(id string) bool {
		if subset == nil {
			return true
		}
		_, ok := subset[id]
		return ok
	}

	remaining := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, id := range nodes {
		count := 0
		for dep := range g.edges[id] {
			if inSubset(dep) {
				count++
				dependents[dep] = append(dependents[dep], id)
			}
		}
		remaining[id] = count
	}

	queue := make([]string, 0, len(nodes))
	for _, id := range nodes {
		if remaining[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)
		for _, dependent := range dependents[current] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(nodes) {
		return nil, &CycleError{Node: "", DependsOn: nil}
	}
	return result, nil
}

// Roots returns all nodes with no dependencies, in insertion order.
func (g *DependencyGraph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns all nodes no other node depends on, in insertion order.
func (g *DependencyGraph) Leaves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dependedOn := make(map[string]struct{}, len(g.nodes))
	for _, deps := range g.edges {
		for dep := range deps {
			dependedOn[dep] = struct{}{}
		}
	}

	var leaves []string
	for _, id := range g.order {
		if _, ok := dependedOn[id]; !ok {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Edges returns a copy of the direct-dependency map. External adapters can
// reconstruct a parent/child span tree from this plus a linearized order.
func (g *DependencyGraph) Edges() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string][]string, len(g.edges))
	for id, deps := range g.edges {
		list := make([]string, 0, len(deps))
		for dep := range deps {
			list = append(list, dep)
		}
		out[id] = list
	}
	return out
}

// Clone returns a deep structural copy with a fresh closure cache.
func (g *DependencyGraph) Clone() *DependencyGraph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := NewDependencyGraph()
	clone.order = make([]string, len(g.order))
	copy(clone.order, g.order)
	for id := range g.nodes {
		clone.nodes[id] = struct{}{}
	}
	for id, deps := range g.edges {
		edgeCopy := make(map[string]struct{}, len(deps))
		for dep := range deps {
			edgeCopy[dep] = struct{}{}
		}
		clone.edges[id] = edgeCopy
	}
	return clone
}
