package workload

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallDataset() *Dataset {
	return &Dataset{Entries: []Entry{
		{Keyword: "a", Documents: []string{"d1", "d2"}, Frequency: 10},
		{Keyword: "b", Documents: []string{"d2"}, Frequency: 5},
		{Keyword: "c", Documents: []string{"d1", "d3"}, Frequency: 1},
		{Keyword: "d", Documents: []string{"d3"}, Frequency: 1},
	}}
}

func TestWeightedPicker_Empty(t *testing.T) {
	var p WeightedPicker[string]
	_, ok := p.Pick(rand.New(rand.NewSource(1)))
	assert.False(t, ok)
}

func TestWeightedPicker_IgnoresNonPositiveWeights(t *testing.T) {
	var p WeightedPicker[string]
	p.Add(0, "zero")
	p.Add(-1, "negative")
	p.Add(1, "one")
	require.Equal(t, 1, p.Len())

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		got, ok := p.Pick(rng)
		require.True(t, ok)
		assert.Equal(t, "one", got)
	}
}

func TestWeightedPicker_FollowsWeights(t *testing.T) {
	var p WeightedPicker[string]
	p.Add(9, "heavy")
	p.Add(1, "light")

	rng := rand.New(rand.NewSource(3))
	counts := map[string]int{}
	const draws = 10000
	for i := 0; i < draws; i++ {
		got, _ := p.Pick(rng)
		counts[got]++
	}
	assert.InDelta(t, 0.9, float64(counts["heavy"])/draws, 0.03)
}

func TestGenerator_NextStoreIssuesEachEntryOnce(t *testing.T) {
	ds := smallDataset()
	g := NewGenerator(ds, rand.New(rand.NewSource(1)), 10)

	seen := map[string]bool{}
	for {
		e, ok := g.NextStore()
		if !ok {
			break
		}
		assert.False(t, seen[e.Keyword], "entry %s issued twice", e.Keyword)
		seen[e.Keyword] = true
	}
	assert.Len(t, seen, ds.Len())
	assert.Zero(t, g.Remaining())

	// Exhausted generators stay exhausted.
	_, ok := g.NextStore()
	assert.False(t, ok)
}

func TestGenerator_NextStoreIssuesEveryEntryOfALargeDataset(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ds := Synthetic(rng, 200, 3, 50)
	g := NewGenerator(ds, rng, 10)

	seen := map[string]bool{}
	for i := 0; i < ds.Len(); i++ {
		e, ok := g.NextStore()
		require.True(t, ok, "store %d of %d not issued", i+1, ds.Len())
		require.False(t, seen[e.Keyword], "entry %s issued twice", e.Keyword)
		seen[e.Keyword] = true
	}
	assert.Len(t, seen, ds.Len())
	_, ok := g.NextStore()
	assert.False(t, ok)
}

func TestGenerator_NextQueryOnlyUsesStoredKeywords(t *testing.T) {
	g := NewGenerator(smallDataset(), rand.New(rand.NewSource(1)), 100)

	_, _, ok := g.NextQuery(3)
	assert.False(t, ok, "nothing stored yet")

	g.MarkStored("a")
	g.MarkStored("c")
	g.MarkStored("a")
	g.MarkStored("unknown")
	assert.Equal(t, 2, g.Stored())

	for i := 0; i < 20; i++ {
		kws, _, ok := g.NextQuery(3)
		require.True(t, ok)
		assert.LessOrEqual(t, len(kws), 2)
		assert.True(t, sort.StringsAreSorted(kws))
		for _, kw := range kws {
			assert.Contains(t, []string{"a", "c"}, kw)
		}
	}
}

func TestGenerator_RepeatedQueriesDetected(t *testing.T) {
	g := NewGenerator(smallDataset(), rand.New(rand.NewSource(1)), 100)
	g.MarkStored("a")

	kws, repeated, ok := g.NextQuery(1)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, kws)
	assert.False(t, repeated)

	_, repeated, _ = g.NextQuery(1)
	assert.True(t, repeated)
}
