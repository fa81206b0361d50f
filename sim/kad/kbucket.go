package kad

import "golang.org/x/exp/slices"

// KBucket is an insertion-ordered set of ids that share one prefix length with
// the owning node. A full bucket ignores new ids; nothing is evicted to make room.
type KBucket struct {
	capacity int // <= 0 means unbounded
	ids      []NodeID
}

// NewKBucket creates an empty bucket holding at most capacity ids.
func NewKBucket(capacity int) *KBucket {
	return &KBucket{capacity: capacity}
}

// Add inserts id. Returns false if id is already present or the bucket is full.
func (b *KBucket) Add(id NodeID) bool {
	if b.Contains(id) || b.Full() {
		return false
	}
	b.ids = append(b.ids, id)
	return true
}

// Remove deletes id if present and reports whether it was.
func (b *KBucket) Remove(id NodeID) bool {
	i := slices.Index(b.ids, id)
	if i < 0 {
		return false
	}
	b.ids = slices.Delete(b.ids, i, i+1)
	return true
}

// Contains reports whether id is in the bucket.
func (b *KBucket) Contains(id NodeID) bool {
	return slices.Contains(b.ids, id)
}

// Full reports whether the bucket has reached its capacity.
func (b *KBucket) Full() bool {
	return b.capacity > 0 && len(b.ids) >= b.capacity
}

// Len returns the number of ids held.
func (b *KBucket) Len() int {
	return len(b.ids)
}

// IDs returns the ids in insertion order. The slice is shared; callers must not modify it.
func (b *KBucket) IDs() []NodeID {
	return b.ids
}
