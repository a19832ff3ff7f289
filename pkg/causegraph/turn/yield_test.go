package turn_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/causegraph/pkg/causegraph/turn"
)

// TestNewYield verifies yield turn construction.
func TestNewYield(t *testing.T) {
	yt := turn.NewYield("deploy", "alice", "prod deploy", []string{"bob", "carol", "bob"})

	assert.Equal(t, turn.Yield, yt.Kind)
	assert.Equal(t, "prod deploy", yt.Reason)
	assert.Equal(t, []string{"bob", "carol"}, yt.RequiredApprovers()) // duplicates collapse
	assert.Empty(t, yt.ApprovedBy())
	assert.Equal(t, []string{"bob", "carol"}, yt.PendingApprovers())
	assert.False(t, yt.IsApproved())
}

// TestYieldTurn_Approve verifies value-returning approval.
func TestYieldTurn_Approve(t *testing.T) {
	yt := turn.NewYield("deploy", "alice", "reason", []string{"bob", "carol"})

	after, err := yt.Approve("bob")
	require.NoError(t, err)

	// The receiver is unchanged; the returned value accumulates.
	assert.Empty(t, yt.ApprovedBy())
	assert.Equal(t, []string{"bob"}, after.ApprovedBy())
	assert.Equal(t, []string{"carol"}, after.PendingApprovers())
	assert.False(t, after.IsApproved())
	assert.True(t, after.HasApproved("bob"))

	done, err := after.Approve("carol")
	require.NoError(t, err)
	assert.True(t, done.IsApproved())
	assert.Empty(t, done.PendingApprovers())
}

// TestYieldTurn_Approve_Idempotent verifies that re-approval does not grow
// the set.
func TestYieldTurn_Approve_Idempotent(t *testing.T) {
	yt := turn.NewYield("x", "alice", "r", []string{"bob"})

	once, err := yt.Approve("bob")
	require.NoError(t, err)
	twice, err := once.Approve("bob")
	require.NoError(t, err)

	assert.Equal(t, 1, twice.ApprovalCount())
	assert.True(t, twice.IsApproved())
}

// TestYieldTurn_Approve_InvalidApprover verifies rejection of non-required
// approvers with an unchanged approved set.
func TestYieldTurn_Approve_InvalidApprover(t *testing.T) {
	yt := turn.NewYield("x", "alice", "r", []string{"bob"})

	same, err := yt.Approve("mallory")
	require.Error(t, err)

	var invalidErr *turn.InvalidApproverError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "mallory", invalidErr.Approver)
	assert.Equal(t, []string{"bob"}, invalidErr.Required)

	assert.Empty(t, same.ApprovedBy())
}

// TestYieldTurn_IsApproved_EmptyRequired verifies the trivial case.
func TestYieldTurn_IsApproved_EmptyRequired(t *testing.T) {
	yt := turn.NewYield("x", "alice", "r", nil)
	assert.True(t, yt.IsApproved())
	assert.Empty(t, yt.PendingApprovers())
}

// TestYieldTurn_Monotonicity verifies approved-set growth across a chain of
// approvals.
func TestYieldTurn_Monotonicity(t *testing.T) {
	yt := turn.NewYield("x", "alice", "r", []string{"a", "b", "c"})

	previous := 0
	for _, approver := range []string{"b", "a", "c"} {
		next, err := yt.Approve(approver)
		require.NoError(t, err)
		assert.Greater(t, next.ApprovalCount(), previous)
		previous = next.ApprovalCount()
		yt = next
	}
	assert.True(t, yt.IsApproved())
}

// TestYieldTurn_JSONRoundTrip verifies serialization of approver sets.
func TestYieldTurn_JSONRoundTrip(t *testing.T) {
	yt := turn.NewYield("deploy", "alice", "prod deploy", []string{"bob", "carol"})
	yt, err := yt.Approve("carol")
	require.NoError(t, err)

	data, err := json.Marshal(yt)
	require.NoError(t, err)

	var decoded turn.YieldTurn[string]
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, yt.ID, decoded.ID)
	assert.Equal(t, "prod deploy", decoded.Reason)
	assert.Equal(t, []string{"bob", "carol"}, decoded.RequiredApprovers())
	assert.Equal(t, []string{"carol"}, decoded.ApprovedBy())
}

// TestYieldTurn_UnmarshalJSON_EnforcesSubset verifies the subset invariant
// survives hand-written input.
func TestYieldTurn_UnmarshalJSON_EnforcesSubset(t *testing.T) {
	raw := []byte(`{
		"id": "y1", "content": "x", "timestamp": 1, "source": "alice",
		"kind": 3, "state_pre": "empty", "state_post": "empty",
		"confidence": 1, "entropy_cost": 0,
		"reason": "r",
		"required_approvers": ["bob"],
		"approved_by": ["bob", "mallory"]
	}`)

	var decoded turn.YieldTurn[string]
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []string{"bob"}, decoded.ApprovedBy())
}
