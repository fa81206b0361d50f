// Package keyword turns multi-keyword queries into keyspace lookups: it derives
// conjunctive keys, enumerates keyword sub-combinations and plans which
// lookups a query needs given what the presence index already holds.
package keyword

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/blake3"
	"golang.org/x/exp/slices"

	"github.com/kadsim/kadsim/sim/kad"
)

// Normalize returns the keywords sorted with duplicates removed. Query
// identity does not depend on keyword order.
func Normalize(keywords []string) []string {
	out := slices.Clone(keywords)
	sort.Strings(out)
	return slices.Compact(out)
}

// ConjunctiveKey returns the keyspace key for the AND of keywords. A single
// keyword maps to its own key, so single-keyword results and stored values
// share one location.
func ConjunctiveKey(keywords []string, p kad.Params) kad.NodeID {
	norm := Normalize(keywords)
	if len(norm) == 1 {
		return kad.HashKey(norm[0], p)
	}
	h := blake3.New()
	for _, kw := range norm {
		// Length-prefix each keyword so {"ab","c"} and {"a","bc"} differ.
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(kw)))
		h.Write(n[:])
		h.Write([]byte(kw))
	}
	return kad.HashBytes(h.Sum(nil), p)
}

// Combinations returns every subset of items with at least minLen elements,
// excluding the empty set and the full set. Larger subsets come first; subsets
// of equal size keep the order of items.
func Combinations(items []string, minLen int) [][]string {
	if minLen < 1 {
		minLen = 1
	}
	var out [][]string
	for size := len(items) - 1; size >= minLen; size-- {
		out = append(out, ofSize(items, size)...)
	}
	return out
}

func ofSize(items []string, size int) [][]string {
	var out [][]string
	cur := make([]string, 0, size)
	var walk func(start int)
	walk = func(start int) {
		if len(cur) == size {
			out = append(out, slices.Clone(cur))
			return
		}
		for i := start; i <= len(items)-(size-len(cur)); i++ {
			cur = append(cur, items[i])
			walk(i + 1)
			cur = cur[:len(cur)-1]
		}
	}
	walk(0)
	return out
}
