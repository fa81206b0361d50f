// Package testutil provides shared test infrastructure for the simulator's
// packages: deterministic node layouts and keywords that hash to chosen keys.
package testutil

import (
	"fmt"
	"testing"

	"github.com/kadsim/kadsim/sim/kad"
)

// GridIDs returns n ids spaced evenly: i << shift for i in [0, n).
func GridIDs(n int, shift uint) []kad.NodeID {
	ids := make([]kad.NodeID, n)
	for i := range ids {
		ids[i] = kad.NodeID(uint64(i) << shift)
	}
	return ids
}

// KeywordFor returns a keyword whose HashKey under p is key. It only
// searches a bounded set of candidates, so it suits narrow keyspaces.
func KeywordFor(t testing.TB, p kad.Params, key kad.NodeID) string {
	t.Helper()
	for i := 0; i < 100000; i++ {
		kw := fmt.Sprintf("kw%d", i)
		if kad.HashKey(kw, p) == key {
			return kw
		}
	}
	t.Fatalf("no keyword hashes to %s in %d bits", key, p.Bits)
	return ""
}
