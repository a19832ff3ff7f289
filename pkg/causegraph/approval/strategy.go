package approval

// Strategy decides when an approval request is satisfied.
type Strategy int

// Consensus strategies.
const (
	// All requires every required approver. An empty required set is
	// trivially satisfied.
	All Strategy = iota

	// Any resolves on the first approval.
	Any

	// Majority requires strictly more than half of the required approvers:
	// 2-of-3, 2-of-2, 1-of-1.
	Majority
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case All:
		return "all"
	case Any:
		return "any"
	case Majority:
		return "majority"
	default:
		return "unknown"
	}
}

// satisfied reports whether the predicate holds for approved approvals out
// of required. An empty required set satisfies every strategy.
func (s Strategy) satisfied(approved, required int) bool {
	if required == 0 {
		return true
	}
	switch s {
	case Any:
		return approved >= 1
	case Majority:
		return approved*2 > required
	default: // All
		return approved == required
	}
}
