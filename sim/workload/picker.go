package workload

import (
	"math/rand"
	"sort"
)

// WeightedPicker draws items with probability proportional to their weight.
type WeightedPicker[T any] struct {
	cumulative []float64
	items      []T
}

// Add registers item with weight. Non-positive weights are ignored.
func (p *WeightedPicker[T]) Add(weight float64, item T) {
	if weight <= 0 {
		return
	}
	total := weight
	if n := len(p.cumulative); n > 0 {
		total += p.cumulative[n-1]
	}
	p.cumulative = append(p.cumulative, total)
	p.items = append(p.items, item)
}

// Len returns the number of items that can be drawn.
func (p *WeightedPicker[T]) Len() int {
	return len(p.items)
}

// Pick draws one item. It reports false when nothing was added.
func (p *WeightedPicker[T]) Pick(rng *rand.Rand) (T, bool) {
	var zero T
	n := len(p.cumulative)
	if n == 0 {
		return zero, false
	}
	v := rng.Float64() * p.cumulative[n-1]
	i := sort.Search(n, func(i int) bool { return p.cumulative[i] > v })
	if i == n {
		i = n - 1
	}
	return p.items[i], true
}
