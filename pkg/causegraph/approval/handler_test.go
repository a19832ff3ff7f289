package approval_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/causegraph/pkg/causegraph/approval"
	"github.com/randalmurphal/causegraph/pkg/causegraph/turn"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// submit runs RequestApproval in a goroutine and returns a channel carrying
// its resolution. It waits until the request is registered before returning.
func submit(t *testing.T, h *approval.Handler[string], yt turn.YieldTurn[string], opts ...approval.RequestOption) <-chan approval.Resolution[string] {
	t.Helper()
	results := make(chan approval.Resolution[string], 1)
	go func() {
		res, _ := h.RequestApproval(context.Background(), yt, opts...)
		results <- res
	}()
	require.Eventually(t, func() bool { return h.IsPending(yt.ID) }, waitFor, tick,
		"request %s never registered", yt.ID)
	return results
}

// receive waits for a resolution with a bounded margin.
func receive(t *testing.T, results <-chan approval.Resolution[string]) approval.Resolution[string] {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(waitFor):
		t.Fatal("request never resolved")
		return approval.Resolution[string]{}
	}
}

// TestHandler_RequestApproval_All tests the ALL strategy: every required
// approver must approve.
func TestHandler_RequestApproval_All(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"alice", "bob"})
	results := submit(t, h, yt)

	ok, err := h.Approve(yt.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	// One of two approvals is not enough.
	assert.True(t, h.IsPending(yt.ID))

	ok, err = h.Approve(yt.ID, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	res := receive(t, results)
	assert.Equal(t, approval.Approved, res.Status)
	assert.True(t, res.Turn.IsApproved())
	assert.Equal(t, []string{"alice", "bob"}, res.Turn.ApprovedBy())
	assert.False(t, h.IsPending(yt.ID))
}

// TestHandler_RequestApproval_Any tests that the first approval resolves.
func TestHandler_RequestApproval_Any(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"alice", "bob"})
	results := submit(t, h, yt, approval.WithStrategy(approval.Any))

	ok, err := h.Approve(yt.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	res := receive(t, results)
	assert.Equal(t, approval.Approved, res.Status)
	assert.Equal(t, []string{"alice"}, res.Turn.ApprovedBy())
	assert.False(t, res.Turn.IsApproved()) // bob never approved
}

// TestHandler_RequestApproval_Majority tests 2-of-3 resolution.
func TestHandler_RequestApproval_Majority(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"a", "b", "c"})
	results := submit(t, h, yt, approval.WithStrategy(approval.Majority))

	ok, err := h.Approve(yt.ID, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	// 1 of 3 is not a majority.
	assert.True(t, h.IsPending(yt.ID))

	ok, err = h.Approve(yt.ID, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	res := receive(t, results)
	assert.Equal(t, approval.Approved, res.Status)
	assert.Equal(t, 2, res.Turn.ApprovalCount())
}

// TestHandler_RequestApproval_PreSatisfied tests immediate resolution for an
// empty required set.
func TestHandler_RequestApproval_PreSatisfied(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", nil)

	res, err := h.RequestApproval(context.Background(), yt)
	require.NoError(t, err)
	assert.Equal(t, approval.Approved, res.Status)
	assert.False(t, h.IsPending(yt.ID))
}

// TestHandler_Reject tests that rejection is a strategy-independent veto,
// terminal regardless of accumulated approvals.
func TestHandler_Reject(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"alice", "bob"})
	results := submit(t, h, yt)

	ok, err := h.Approve(yt.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, h.Reject(yt.ID, "bob", "too risky"))

	res := receive(t, results)
	assert.Equal(t, approval.Rejected, res.Status)
	assert.Equal(t, "bob", res.Rejector)
	assert.Equal(t, "too risky", res.Reason)
	// The accumulated approval survives in the returned turn.
	assert.Equal(t, []string{"alice"}, res.Turn.ApprovedBy())
}

// TestHandler_RequestApproval_Timeout tests deadline expiry within a bounded
// margin.
func TestHandler_RequestApproval_Timeout(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"alice"})

	start := time.Now()
	res, err := h.RequestApproval(context.Background(), yt,
		approval.WithTimeout(20*time.Millisecond))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, approval.TimedOut, res.Status)
	assert.Less(t, elapsed, waitFor)
	assert.False(t, h.IsPending(yt.ID))

	// Late calls against the timed-out ID are no-ops.
	ok, err := h.Approve(yt.ID, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, h.Reject(yt.ID, "alice", "late"))
}

// TestHandler_RequestApproval_ContextCancel tests cancellation resolves the
// request and surfaces the context error.
func TestHandler_RequestApproval_ContextCancel(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"alice"})

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan error, 1)
	go func() {
		res, err := h.RequestApproval(ctx, yt)
		assert.Equal(t, approval.TimedOut, res.Status)
		results <- err
	}()
	require.Eventually(t, func() bool { return h.IsPending(yt.ID) }, waitFor, tick)

	cancel()
	select {
	case err := <-results:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("request never resolved after cancellation")
	}
}

// TestHandler_Approve_InvalidApprover tests that a non-required approver is
// surfaced as a caller bug and changes nothing.
func TestHandler_Approve_InvalidApprover(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"alice"})
	results := submit(t, h, yt)

	ok, err := h.Approve(yt.ID, "mallory")
	assert.False(t, ok)

	var invalidErr *turn.InvalidApproverError
	require.ErrorAs(t, err, &invalidErr)

	// Still pending with no accumulated approvals.
	require.True(t, h.IsPending(yt.ID))
	pending := h.ListPending()
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].ApprovedBy())

	ok, err = h.Approve(yt.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	receive(t, results)
}

// TestHandler_Approve_UnknownID tests the boolean no-op contract.
func TestHandler_Approve_UnknownID(t *testing.T) {
	h := approval.NewHandler[string]()

	ok, err := h.Approve("ghost", "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, h.Reject("ghost", "alice", "r"))
}

// TestHandler_RequestApproval_Duplicate tests double registration of an ID.
func TestHandler_RequestApproval_Duplicate(t *testing.T) {
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", []string{"alice"})
	results := submit(t, h, yt)

	_, err := h.RequestApproval(context.Background(), yt)
	assert.ErrorIs(t, err, approval.ErrDuplicateRequest)

	// The original request is unaffected.
	ok, err := h.Approve(yt.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	receive(t, results)
}

// TestHandler_ListPending tests live-table inspection with current values.
func TestHandler_ListPending(t *testing.T) {
	h := approval.NewHandler[string]()
	assert.Empty(t, h.ListPending())

	first := turn.NewYield("one", "agent", "r", []string{"alice", "bob"})
	second := turn.NewYield("two", "agent", "r", []string{"carol"})
	firstResults := submit(t, h, first)
	secondResults := submit(t, h, second)

	_, err := h.Approve(first.ID, "alice")
	require.NoError(t, err)

	pending := h.ListPending()
	require.Len(t, pending, 2)
	byID := make(map[string]turn.YieldTurn[string])
	for _, p := range pending {
		byID[p.ID] = p
	}
	assert.Equal(t, []string{"alice"}, byID[first.ID].ApprovedBy())
	assert.Empty(t, byID[second.ID].ApprovedBy())

	h.Reject(first.ID, "bob", "no")
	h.Reject(second.ID, "carol", "no")
	receive(t, firstResults)
	receive(t, secondResults)
	assert.Empty(t, h.ListPending())
}

// TestHandler_Callbacks tests observability hooks for every outcome, and
// that a panicking callback cannot affect resolution.
func TestHandler_Callbacks(t *testing.T) {
	var mu sync.Mutex
	var approved, rejected, timedOut []string

	h := approval.NewHandler(
		approval.OnApproved(func(yt turn.YieldTurn[string]) {
			panic("misbehaving observer") // must be isolated
		}),
		approval.OnApproved(func(yt turn.YieldTurn[string]) {
			mu.Lock()
			approved = append(approved, yt.ID)
			mu.Unlock()
		}),
		approval.OnRejected(func(yt turn.YieldTurn[string], rejector, reason string) {
			mu.Lock()
			rejected = append(rejected, yt.ID+":"+rejector+":"+reason)
			mu.Unlock()
		}),
		approval.OnTimeout(func(yt turn.YieldTurn[string]) {
			mu.Lock()
			timedOut = append(timedOut, yt.ID)
			mu.Unlock()
		}),
	)

	// Approved path.
	ytA := turn.NewYield("a", "agent", "r", []string{"alice"})
	resultsA := submit(t, h, ytA)
	_, err := h.Approve(ytA.ID, "alice")
	require.NoError(t, err)
	res := receive(t, resultsA)
	assert.Equal(t, approval.Approved, res.Status)

	// Rejected path.
	ytB := turn.NewYield("b", "agent", "r", []string{"alice"})
	resultsB := submit(t, h, ytB)
	h.Reject(ytB.ID, "alice", "nope")
	receive(t, resultsB)

	// Timeout path.
	ytC := turn.NewYield("c", "agent", "r", []string{"alice"})
	_, err = h.RequestApproval(context.Background(), ytC,
		approval.WithTimeout(10*time.Millisecond))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{ytA.ID}, approved)
	assert.Equal(t, []string{ytB.ID + ":alice:nope"}, rejected)
	assert.Equal(t, []string{ytC.ID}, timedOut)
}

// TestHandler_ConcurrentApprovers tests that simultaneous approvals on the
// same request never lose an update.
func TestHandler_ConcurrentApprovers(t *testing.T) {
	approvers := []string{"a", "b", "c", "d", "e"}
	h := approval.NewHandler[string]()
	yt := turn.NewYield("deploy", "agent", "reason", approvers)
	results := submit(t, h, yt)

	var wg sync.WaitGroup
	for _, approver := range approvers {
		wg.Add(1)
		go func(approver string) {
			defer wg.Done()
			_, err := h.Approve(yt.ID, approver)
			assert.NoError(t, err)
		}(approver)
	}
	wg.Wait()

	res := receive(t, results)
	assert.Equal(t, approval.Approved, res.Status)
	assert.Equal(t, approvers, res.Turn.ApprovedBy())
}

// TestHandler_IndependentRequests tests that unrelated requests resolve
// independently.
func TestHandler_IndependentRequests(t *testing.T) {
	h := approval.NewHandler[string]()

	first := turn.NewYield("one", "agent-1", "r", []string{"alice"})
	second := turn.NewYield("two", "agent-2", "r", []string{"bob"})
	firstResults := submit(t, h, first)
	secondResults := submit(t, h, second)

	_, err := h.Approve(second.ID, "bob")
	require.NoError(t, err)

	res := receive(t, secondResults)
	assert.Equal(t, approval.Approved, res.Status)
	assert.True(t, h.IsPending(first.ID))

	h.Reject(first.ID, "alice", "no")
	res = receive(t, firstResults)
	assert.Equal(t, approval.Rejected, res.Status)
}
