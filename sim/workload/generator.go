package workload

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

// Generator draws store and query traffic from a Dataset.
//
// Every entry is offered to the store workload at most once. Queries only
// use keywords whose store succeeded, weighted by search frequency.
type Generator struct {
	dataset *Dataset
	rng     *rand.Rand

	index    map[string]int // keyword -> entry
	unissued []int          // entries not yet handed to the store workload
	stored   map[string]bool
	picker   WeightedPicker[string]

	// seen estimates which keyword sets were queried before; false positives
	// only overstate the repeat count.
	seen *bloom.BloomFilter
}

// NewGenerator creates a Generator. expectedQueries sizes the repeat filter.
func NewGenerator(ds *Dataset, rng *rand.Rand, expectedQueries uint) *Generator {
	index := make(map[string]int, len(ds.Entries))
	unissued := make([]int, len(ds.Entries))
	for i, e := range ds.Entries {
		index[e.Keyword] = i
		unissued[i] = i
	}
	return &Generator{
		dataset:  ds,
		rng:      rng,
		index:    index,
		unissued: unissued,
		stored:   make(map[string]bool),
		seen:     bloom.NewWithEstimates(max(expectedQueries, 1), 0.01),
	}
}

// NextStore returns a random entry not handed out before, or false once
// every entry has been issued.
func (g *Generator) NextStore() (Entry, bool) {
	n := len(g.unissued)
	if n == 0 {
		return Entry{}, false
	}
	j := g.rng.Intn(n)
	i := g.unissued[j]
	g.unissued[j] = g.unissued[n-1]
	g.unissued = g.unissued[:n-1]
	return g.dataset.Entries[i], true
}

// Issued returns how many entries NextStore has handed out.
func (g *Generator) Issued() int {
	return len(g.dataset.Entries) - len(g.unissued)
}

// Remaining returns how many entries NextStore can still issue.
func (g *Generator) Remaining() int {
	return len(g.unissued)
}

// MarkStored makes keyword available to the query workload.
func (g *Generator) MarkStored(keyword string) {
	i, ok := g.index[keyword]
	if !ok || g.stored[keyword] {
		return
	}
	g.stored[keyword] = true
	g.picker.Add(g.dataset.Entries[i].Frequency, keyword)
}

// Stored returns how many keywords can be queried.
func (g *Generator) Stored() int {
	return g.picker.Len()
}

// NextQuery draws up to k distinct stored keywords by frequency and returns
// them sorted. repeated reports whether the same set was (probably) drawn
// before. ok is false when nothing has been stored yet.
func (g *Generator) NextQuery(k int) (keywords []string, repeated, ok bool) {
	k = min(k, g.picker.Len())
	if k <= 0 {
		return nil, false, false
	}
	picked := make(map[string]bool, k)
	for attempts := 0; len(keywords) < k && attempts < 20*k; attempts++ {
		kw, _ := g.picker.Pick(g.rng)
		if picked[kw] {
			continue
		}
		picked[kw] = true
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	repeated = g.seen.TestAndAddString(strings.Join(keywords, "\x00"))
	return keywords, repeated, true
}
