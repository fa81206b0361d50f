package kad

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFindOperation_NextNeighbour_ReturnsNearestUnqueried verifies probes go out nearest-first.
func TestFindOperation_NextNeighbour_ReturnsNearestUnqueried(t *testing.T) {
	op := NewFindOperation(1, 0x35, smallParams)
	op.Seed([]NodeID{0x00, 0x30, 0x10, 0x20})

	first, ok := op.NextNeighbour()
	require.True(t, ok)
	second, ok := op.NextNeighbour()
	require.True(t, ok)

	assert.Equal(t, NodeID(0x30), first)
	assert.Equal(t, NodeID(0x20), second)
	assert.True(t, op.Queried(0x30))

	// Budget exhausted at Alpha=2
	_, ok = op.NextNeighbour()
	assert.False(t, ok)
	assert.Equal(t, 0, op.AvailableRequests())
	assert.Equal(t, 2, op.OutstandingFindRequests())
}

// TestFindOperation_ElaborateResponse_ReplacesFarthestOnlyForCloserIds verifies the K-bounded fold.
func TestFindOperation_ElaborateResponse_ReplacesFarthestOnlyForCloserIds(t *testing.T) {
	op := NewFindOperation(1, 0x00, smallParams)
	op.Seed([]NodeID{0x10, 0x20, 0x40, 0x80})

	// WHEN a farther id arrives THEN it is dropped
	op.ElaborateResponse([]NodeID{0xF0})
	assert.False(t, op.Contains(0xF0))

	// WHEN a closer id arrives THEN the farthest member is evicted
	op.ElaborateResponse([]NodeID{0x01})
	assert.True(t, op.Contains(0x01))
	assert.False(t, op.Contains(0x80))
	assert.Equal(t, []NodeID{0x01, 0x10, 0x20, 0x40}, op.ClosestSet())
}

// TestFindOperation_Convergence verifies convergence needs a full budget and no unqueried member.
func TestFindOperation_Convergence(t *testing.T) {
	op := NewFindOperation(1, 0x35, smallParams)
	op.Seed([]NodeID{0x30})
	assert.False(t, op.Converged())

	id, ok := op.NextNeighbour()
	require.True(t, ok)
	assert.False(t, op.Converged(), "a probe is still outstanding")

	require.True(t, op.Settle(id))
	assert.False(t, op.Settle(id), "a probe settles once")
	op.ElaborateResponse(nil)
	assert.True(t, op.Converged())
}

// TestFindOperation_Prune verifies a pruned id is never readmitted.
func TestFindOperation_Prune(t *testing.T) {
	op := NewFindOperation(1, 0x35, smallParams)
	op.Seed([]NodeID{0x30, 0x20})
	id, _ := op.NextNeighbour()
	require.Equal(t, NodeID(0x30), id)

	require.True(t, op.Settle(id))
	op.Prune(id)
	op.ElaborateResponse([]NodeID{0x30})

	assert.False(t, op.Contains(0x30))
	next, ok := op.NextNeighbour()
	require.True(t, ok)
	assert.Equal(t, NodeID(0x20), next)
}

// TestFindOperation_Invariants drives random folds and probes and checks the size and budget bounds at every step.
func TestFindOperation_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := Params{K: 6, Alpha: 3, Bits: 16}
	for trial := 0; trial < 40; trial++ {
		op := NewFindOperation(uint64(trial), p.Clamp(rng.Uint64()), p)
		op.Seed(randomIDs(rng, p, 3))
		var pending []NodeID
		for step := 0; step < 200; step++ {
			if rng.Intn(2) == 0 {
				if id, ok := op.NextNeighbour(); ok {
					pending = append(pending, id)
				}
			} else if len(pending) > 0 {
				id := pending[0]
				pending = pending[1:]
				if op.Settle(id) {
					op.ElaborateResponse(randomIDs(rng, p, rng.Intn(p.K+1)))
				}
			}
			require.LessOrEqual(t, op.Len(), p.K)
			require.GreaterOrEqual(t, op.AvailableRequests(), 0)
			require.LessOrEqual(t, op.AvailableRequests(), p.Alpha)
		}
	}
}

// TestFindOperation_NextNeighbour_IsMinimum compares every pick against a brute-force minimum.
func TestFindOperation_NextNeighbour_IsMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p := Params{K: 8, Alpha: 8, Bits: 32}
	op := NewFindOperation(1, p.Clamp(rng.Uint64()), p)
	op.Seed(randomIDs(rng, p, 8))

	for {
		var want NodeID
		found := false
		for _, id := range op.ClosestSet() {
			if !op.Queried(id) {
				want, found = id, true
				break
			}
		}
		got, ok := op.NextNeighbour()
		require.Equal(t, found, ok)
		if !ok {
			break
		}
		assert.Equal(t, want, got)
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "store", PhaseStore.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}

func randomIDs(rng *rand.Rand, p Params, n int) []NodeID {
	out := make([]NodeID, n)
	for i := range out {
		out[i] = p.Clamp(rng.Uint64())
	}
	return out
}
