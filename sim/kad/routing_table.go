package kad

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// RoutingTable holds one node's view of the network as Bits+1 k-buckets indexed
// by common-prefix length with the owner.
type RoutingTable struct {
	owner   NodeID
	params  Params
	buckets []*KBucket
}

// NewRoutingTable creates an empty routing table for owner with buckets of capacity params.K.
// Panics if params is invalid.
func NewRoutingTable(owner NodeID, params Params) *RoutingTable {
	return newRoutingTable(owner, params, params.K)
}

func newRoutingTable(owner NodeID, params Params, bucketCapacity int) *RoutingTable {
	if err := params.Validate(); err != nil {
		panic(fmt.Sprintf("NewRoutingTable: %v", err))
	}
	rt := &RoutingTable{
		owner:   params.Clamp(uint64(owner)),
		params:  params,
		buckets: make([]*KBucket, params.Bits+1),
	}
	for i := range rt.buckets {
		rt.buckets[i] = NewKBucket(bucketCapacity)
	}
	return rt
}

// Owner returns the id of the node this table belongs to.
func (rt *RoutingTable) Owner() NodeID {
	return rt.owner
}

// Params returns the keyspace constants of the table.
func (rt *RoutingTable) Params() Params {
	return rt.params
}

// BucketIndex returns the bucket an id belongs to.
func (rt *RoutingTable) BucketIndex(id NodeID) int {
	return PrefixLen(rt.owner, id, rt.params.Bits)
}

// Bucket returns the bucket at index i.
func (rt *RoutingTable) Bucket(i int) *KBucket {
	return rt.buckets[i]
}

// AddNeighbour records id. The owner itself and ids landing in a full bucket are ignored.
// Returns true if the table changed.
func (rt *RoutingTable) AddNeighbour(id NodeID) bool {
	if id == rt.owner {
		return false
	}
	return rt.buckets[rt.BucketIndex(id)].Add(id)
}

// RemoveNeighbour forgets id. Returns true if it was known.
func (rt *RoutingTable) RemoveNeighbour(id NodeID) bool {
	if id == rt.owner {
		return false
	}
	return rt.buckets[rt.BucketIndex(id)].Remove(id)
}

// Contains reports whether id is known.
func (rt *RoutingTable) Contains(id NodeID) bool {
	if id == rt.owner {
		return false
	}
	return rt.buckets[rt.BucketIndex(id)].Contains(id)
}

// Size returns the number of known ids.
func (rt *RoutingTable) Size() int {
	n := 0
	for _, b := range rt.buckets {
		n += b.Len()
	}
	return n
}

// Neighbours returns up to K known ids close to target, never including exclude.
//
// When the bucket sharing target's prefix with the owner already holds K ids it
// is returned in insertion order. Otherwise only buckets [0, Alpha) are scanned
// and the candidates are sorted by XOR distance to target. A result shorter than
// K means fewer candidates were known.
func (rt *RoutingTable) Neighbours(target, exclude NodeID) []NodeID {
	k := rt.params.K
	exact := rt.buckets[rt.BucketIndex(target)]
	if exact.Len() >= k {
		out := make([]NodeID, 0, k)
		for _, id := range exact.IDs() {
			if id == exclude {
				continue
			}
			out = append(out, id)
			if len(out) == k {
				break
			}
		}
		return out
	}

	upper := rt.params.Alpha
	if upper > len(rt.buckets) {
		upper = len(rt.buckets)
	}
	return rt.closest(target, exclude, upper)
}

// NeighboursFullRange returns the K known ids nearest to target across every bucket.
// Ordinary lookups use Neighbours; this scan is reserved for cache placement.
func (rt *RoutingTable) NeighboursFullRange(target, exclude NodeID) []NodeID {
	return rt.closest(target, exclude, len(rt.buckets))
}

func (rt *RoutingTable) closest(target, exclude NodeID, upper int) []NodeID {
	candidates := make([]NodeID, 0, rt.params.K)
	for i := 0; i < upper; i++ {
		for _, id := range rt.buckets[i].IDs() {
			if id != exclude {
				candidates = append(candidates, id)
			}
		}
	}
	SortByDistance(candidates, target)
	if len(candidates) > rt.params.K {
		candidates = candidates[:rt.params.K]
	}
	return candidates
}

// SortByDistance orders ids ascending by XOR distance to target. Distinct ids
// never tie, so the order is total.
func SortByDistance(ids []NodeID, target NodeID) {
	slices.SortFunc(ids, func(a, b NodeID) int {
		da, db := Distance(a, target), Distance(b, target)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	})
}
