package causegraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph and ledger mutation.
var (
	// ErrCycle indicates an insert would create a cycle or self-dependency.
	ErrCycle = errors.New("dependency cycle")

	// ErrDuplicateEvent indicates an event ID was already appended.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrNoEvents indicates a join found no events for any named source.
	ErrNoEvents = errors.New("no events for any source")
)

// CycleError reports a rejected insert that would have closed a cycle.
// The graph is left exactly as it was before the call.
type CycleError struct {
	// Node is the ID whose insertion was rejected.
	Node string
	// DependsOn is the dependency set the caller declared.
	DependsOn []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if e.Node == "" {
		return "graph contains a cycle"
	}
	return fmt.Sprintf("adding %s with dependencies [%s] would create a cycle",
		e.Node, strings.Join(e.DependsOn, ", "))
}

// Unwrap returns ErrCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}
