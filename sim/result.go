package sim

import "golang.org/x/exp/slices"

// ResultSet is the set of document identifiers matching a keyword or a conjunction of keywords.
type ResultSet map[string]struct{}

// NewResultSet builds a set from docs, dropping duplicates.
func NewResultSet(docs ...string) ResultSet {
	rs := make(ResultSet, len(docs))
	for _, d := range docs {
		rs[d] = struct{}{}
	}
	return rs
}

// Has reports whether doc is in the set.
func (rs ResultSet) Has(doc string) bool {
	_, ok := rs[doc]
	return ok
}

// Intersect returns the documents present in both sets.
func (rs ResultSet) Intersect(other ResultSet) ResultSet {
	small, large := rs, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(ResultSet, len(small))
	for d := range small {
		if large.Has(d) {
			out[d] = struct{}{}
		}
	}
	return out
}

// Clone returns an independent copy.
func (rs ResultSet) Clone() ResultSet {
	out := make(ResultSet, len(rs))
	for d := range rs {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the documents in lexical order.
func (rs ResultSet) Sorted() []string {
	out := make([]string, 0, len(rs))
	for d := range rs {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}
