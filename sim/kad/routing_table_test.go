package kad

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var smallParams = Params{K: 4, Alpha: 2, Bits: 8}

// TestRoutingTable_AddNeighbour_FullBucketIsNoOp verifies a full bucket keeps its first K ids.
func TestRoutingTable_AddNeighbour_FullBucketIsNoOp(t *testing.T) {
	// GIVEN owner 0x80 and five ids sharing prefix length 0 with it
	rt := NewRoutingTable(0x80, smallParams)
	for _, id := range []NodeID{0x00, 0x10, 0x20, 0x30} {
		require.True(t, rt.AddNeighbour(id))
	}

	// WHEN a fifth id lands in the same bucket
	added := rt.AddNeighbour(0x40)

	// THEN nothing changes and insertion order is preserved
	assert.False(t, added)
	assert.Equal(t, []NodeID{0x00, 0x10, 0x20, 0x30}, rt.Bucket(0).IDs())
	assert.False(t, rt.AddNeighbour(0x80), "owner must never be stored")
	assert.False(t, rt.AddNeighbour(0x10), "duplicates are ignored")
}

func TestRoutingTable_RemoveNeighbour(t *testing.T) {
	rt := NewRoutingTable(0x80, smallParams)
	rt.AddNeighbour(0x10)
	assert.True(t, rt.RemoveNeighbour(0x10))
	assert.False(t, rt.RemoveNeighbour(0x10))
	assert.False(t, rt.Contains(0x10))
	assert.Zero(t, rt.Size())
}

// TestRoutingTable_Neighbours_FastPathReturnsExactBucket verifies the full exact-prefix bucket is returned verbatim.
func TestRoutingTable_Neighbours_FastPathReturnsExactBucket(t *testing.T) {
	rt := NewRoutingTable(0x80, smallParams)
	for i := 0; i < 16; i++ {
		rt.AddNeighbour(NodeID(i << 4))
	}

	got := rt.Neighbours(0x35, 0xF0)

	assert.Equal(t, []NodeID{0x00, 0x10, 0x20, 0x30}, got)
}

// TestRoutingTable_Neighbours_FastPathHonoursExclude verifies the requester is filtered even on the fast path.
func TestRoutingTable_Neighbours_FastPathHonoursExclude(t *testing.T) {
	rt := NewRoutingTable(0x80, smallParams)
	for i := 0; i < 8; i++ {
		rt.AddNeighbour(NodeID(i << 4))
	}

	got := rt.Neighbours(0x35, 0x10)

	assert.NotContains(t, got, NodeID(0x10))
	assert.Len(t, got, 3)
}

// TestRoutingTable_Neighbours_ScanIsBoundedAndSorted verifies the slow path only scans buckets [0, Alpha).
func TestRoutingTable_Neighbours_ScanIsBoundedAndSorted(t *testing.T) {
	// GIVEN owner 0x00: bucket 0 holds 0x80.., bucket 1 holds 0x40.., bucket 2 holds 0x20..
	rt := NewRoutingTable(0x00, smallParams)
	for _, id := range []NodeID{0x80, 0xC0, 0x40, 0x50, 0x20} {
		rt.AddNeighbour(id)
	}

	// WHEN asking for ids near 0x21, whose bucket (2) holds fewer than K
	got := rt.Neighbours(0x21, 0x50)

	// THEN 0x20 lives in bucket 2 and is not scanned; the rest come sorted by distance
	assert.Equal(t, []NodeID{0x40, 0x80, 0xC0}, got)

	// AND the full-range scan does see it
	assert.Equal(t, []NodeID{0x20, 0x40, 0x50, 0x80}, rt.NeighboursFullRange(0x21, 0x00))
}

// TestRoutingTable_Neighbours_Properties checks the exclusion, size and K-nearest guarantees over random tables.
func TestRoutingTable_Neighbours_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := Params{K: 5, Alpha: 64, Bits: 16}
	for trial := 0; trial < 50; trial++ {
		owner := p.Clamp(rng.Uint64())
		rt := NewRoutingTable(owner, p)
		for i := 0; i < 200; i++ {
			rt.AddNeighbour(p.Clamp(rng.Uint64()))
		}
		target := p.Clamp(rng.Uint64())
		exclude := rt.Bucket(0).IDs()[0]

		got := rt.NeighboursFullRange(target, exclude)

		require.LessOrEqual(t, len(got), p.K)
		assert.NotContains(t, got, exclude)

		var all []NodeID
		for i := 0; i <= p.Bits; i++ {
			for _, id := range rt.Bucket(i).IDs() {
				if id != exclude {
					all = append(all, id)
				}
			}
		}
		sort.Slice(all, func(i, j int) bool { return Distance(all[i], target) < Distance(all[j], target) })
		assert.Equal(t, all[:p.K], got)
	}
}

// TestRoutingTable_Neighbours_RandomTables checks exclusion and the K cap on both
// lookup paths over random tables.
func TestRoutingTable_Neighbours_RandomTables(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := Params{K: 5, Alpha: 3, Bits: 16}
	for trial := 0; trial < 200; trial++ {
		owner := p.Clamp(rng.Uint64())
		rt := NewRoutingTable(owner, p)
		n := 1 + rng.Intn(300)
		for i := 0; i < n; i++ {
			rt.AddNeighbour(p.Clamp(rng.Uint64()))
		}
		target := p.Clamp(rng.Uint64())

		// Exclude a member of the exact-prefix bucket when there is one, so
		// the fast path has something to filter.
		exclude := p.Clamp(rng.Uint64())
		if ids := rt.Bucket(rt.BucketIndex(target)).IDs(); len(ids) > 0 {
			exclude = ids[rng.Intn(len(ids))]
		}

		got := rt.Neighbours(target, exclude)

		require.LessOrEqual(t, len(got), p.K)
		assert.NotContains(t, got, exclude)
		seen := map[NodeID]bool{}
		for _, id := range got {
			assert.True(t, rt.Contains(id), "%s is not in the table", id)
			assert.False(t, seen[id], "%s returned twice", id)
			seen[id] = true
		}
	}
}

// TestDirectory_NearestKGlobally verifies every registered node is a candidate, including id 0.
func TestDirectory_NearestKGlobally(t *testing.T) {
	d := NewDirectory(smallParams)
	for i := 0; i < 16; i++ {
		d.Register(NodeID(i << 4))
	}
	require.Equal(t, 16, d.Size())

	assert.Equal(t, []NodeID{0x30, 0x20, 0x10, 0x00}, d.NearestKGlobally(0x35))
	assert.Equal(t, []NodeID{0x00, 0x10, 0x20, 0x30}, d.NearestKGlobally(0x00))

	d.Unregister(0x00)
	assert.Equal(t, []NodeID{0x10, 0x20, 0x30, 0x40}, d.NearestKGlobally(0x00))
}
