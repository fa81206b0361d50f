package keyword

import (
	"golang.org/x/exp/slices"

	"github.com/kadsim/kadsim/sim/kad"
)

// Part is one lookup a query is split into.
type Part struct {
	Keywords []string
	Key      kad.NodeID
	Cached   bool // the presence index reported Key as cached somewhere
}

// Plan describes how a query will be resolved. Parent is the conjunctive key
// of the whole query; the intersection of all parts is cached under it.
type Plan struct {
	Keywords []string
	Parent   kad.NodeID
	Parts    []Part
}

// Multi reports whether the plan needs a merge step.
func (p Plan) Multi() bool {
	return len(p.Parts) > 1
}

// Contains is the presence check the planner consults.
type Contains func(key kad.NodeID) bool

// Decompose plans a query.
//
// If the whole conjunction is present, one part covers it. Otherwise, for more
// than two keywords, present sub-combinations of two or more keywords are taken
// largest first as long as they cover only keywords not yet covered. Every
// remaining keyword gets a part of its own.
func Decompose(keywords []string, params kad.Params, present Contains) Plan {
	norm := Normalize(keywords)
	plan := Plan{Keywords: norm, Parent: ConjunctiveKey(norm, params)}
	if len(norm) == 0 {
		return plan
	}
	if len(norm) == 1 || present(plan.Parent) {
		plan.Parts = []Part{{Keywords: norm, Key: plan.Parent, Cached: len(norm) > 1}}
		return plan
	}

	covered := make(map[string]bool, len(norm))
	if len(norm) > 2 {
		for _, combo := range Combinations(norm, 2) {
			if slices.ContainsFunc(combo, func(kw string) bool { return covered[kw] }) {
				continue
			}
			key := ConjunctiveKey(combo, params)
			if !present(key) {
				continue
			}
			plan.Parts = append(plan.Parts, Part{Keywords: combo, Key: key, Cached: true})
			for _, kw := range combo {
				covered[kw] = true
			}
		}
	}
	for _, kw := range norm {
		if covered[kw] {
			continue
		}
		key := kad.HashKey(kw, params)
		plan.Parts = append(plan.Parts, Part{Keywords: []string{kw}, Key: key, Cached: present(key)})
	}
	return plan
}
