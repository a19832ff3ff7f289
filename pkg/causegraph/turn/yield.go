package turn

import (
	"encoding/json"
	"fmt"
	"sort"
)

// InvalidApproverError reports an Approve call with an ID outside the
// required approver set. This is a caller bug and is surfaced immediately.
type InvalidApproverError struct {
	// Approver is the rejected approver ID.
	Approver string
	// Required is the turn's required approver set.
	Required []string
}

// Error implements the error interface.
func (e *InvalidApproverError) Error() string {
	return fmt.Sprintf("approver %q is not in the required set %v", e.Approver, e.Required)
}

// YieldTurn is a Yield-kinded turn representing a pending approval request.
//
// YieldTurn is an immutable value: Approve returns a new YieldTurn rather
// than mutating the receiver. The invariant approvedBy ⊆ requiredApprovers
// holds for every value ever constructed.
type YieldTurn[T any] struct {
	Turn[T]

	// Reason states why the producer is yielding.
	Reason string `json:"reason"`

	requiredApprovers map[string]struct{}
	approvedBy        map[string]struct{}
}

// NewYield creates a yield turn requiring approval from each of the given
// approvers. Duplicate approver IDs collapse into one.
func NewYield[T any](content T, source, reason string, requiredApprovers []string, opts ...Option) YieldTurn[T] {
	required := make(map[string]struct{}, len(requiredApprovers))
	for _, approver := range requiredApprovers {
		required[approver] = struct{}{}
	}

	return YieldTurn[T]{
		Turn:              New(Yield, content, source, opts...),
		Reason:            reason,
		requiredApprovers: required,
		approvedBy:        make(map[string]struct{}),
	}
}

// Approve returns a new YieldTurn with approver folded into the approved
// set. Returns an *InvalidApproverError if approver is not in the required
// set; the receiver is unchanged either way.
func (y YieldTurn[T]) Approve(approver string) (YieldTurn[T], error) {
	if _, ok := y.requiredApprovers[approver]; !ok {
		return y, &InvalidApproverError{
			Approver: approver,
			Required: y.RequiredApprovers(),
		}
	}

	approved := make(map[string]struct{}, len(y.approvedBy)+1)
	for id := range y.approvedBy {
		approved[id] = struct{}{}
	}
	approved[approver] = struct{}{}

	next := y
	next.approvedBy = approved
	return next, nil
}

// IsApproved reports whether every required approver has approved.
func (y YieldTurn[T]) IsApproved() bool {
	for id := range y.requiredApprovers {
		if _, ok := y.approvedBy[id]; !ok {
			return false
		}
	}
	return true
}

// HasApproved reports whether the given approver has already approved.
func (y YieldTurn[T]) HasApproved(approver string) bool {
	_, ok := y.approvedBy[approver]
	return ok
}

// RequiredApprovers returns the fixed approver set, sorted.
func (y YieldTurn[T]) RequiredApprovers() []string {
	return sortedSet(y.requiredApprovers)
}

// ApprovedBy returns the accumulated approver set, sorted.
func (y YieldTurn[T]) ApprovedBy() []string {
	return sortedSet(y.approvedBy)
}

// PendingApprovers returns required approvers that have not approved, sorted.
func (y YieldTurn[T]) PendingApprovers() []string {
	pending := make(map[string]struct{})
	for id := range y.requiredApprovers {
		if _, ok := y.approvedBy[id]; !ok {
			pending[id] = struct{}{}
		}
	}
	return sortedSet(pending)
}

// ApprovalCount returns the number of accumulated approvals.
func (y YieldTurn[T]) ApprovalCount() int {
	return len(y.approvedBy)
}

// RequiredCount returns the size of the required approver set.
func (y YieldTurn[T]) RequiredCount() int {
	return len(y.requiredApprovers)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// yieldJSON is the wire form of a YieldTurn.
type yieldJSON[T any] struct {
	Turn[T]
	Reason            string   `json:"reason"`
	RequiredApprovers []string `json:"required_approvers"`
	ApprovedBy        []string `json:"approved_by"`
}

// MarshalJSON implements json.Marshaler, emitting approver sets as sorted
// slices so serialization round-trips deterministically.
func (y YieldTurn[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(yieldJSON[T]{
		Turn:              y.Turn,
		Reason:            y.Reason,
		RequiredApprovers: y.RequiredApprovers(),
		ApprovedBy:        y.ApprovedBy(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (y *YieldTurn[T]) UnmarshalJSON(data []byte) error {
	var wire yieldJSON[T]
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	y.Turn = wire.Turn
	y.Reason = wire.Reason
	y.requiredApprovers = make(map[string]struct{}, len(wire.RequiredApprovers))
	for _, id := range wire.RequiredApprovers {
		y.requiredApprovers[id] = struct{}{}
	}
	y.approvedBy = make(map[string]struct{}, len(wire.ApprovedBy))
	for _, id := range wire.ApprovedBy {
		// Preserve the subset invariant even on hand-written input.
		if _, ok := y.requiredApprovers[id]; ok {
			y.approvedBy[id] = struct{}{}
		}
	}
	return nil
}
