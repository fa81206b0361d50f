package cache

import (
	"encoding/binary"
	"fmt"

	cuckoo "github.com/panmari/cuckoofilter"

	"github.com/kadsim/kadsim/sim/kad"
)

// PresenceIndex is the network-wide record of which result keys are cached
// somewhere. It is approximate: a single eviction anywhere removes the key
// even if other copies survive, and filter-backed implementations may report
// false positives.
type PresenceIndex interface {
	Contains(key kad.NodeID) bool
	Insert(key kad.NodeID)
	Remove(key kad.NodeID)
}

// Presence index kinds accepted by NewPresenceIndex.
const (
	PresenceCuckoo = "cuckoo"
	PresenceExact  = "exact"
)

// NewPresenceIndex builds the index named by kind. An empty kind selects the cuckoo filter.
func NewPresenceIndex(kind string, capacity uint) (PresenceIndex, error) {
	switch kind {
	case "", PresenceCuckoo:
		return NewCuckooPresence(capacity), nil
	case PresenceExact:
		return NewExactPresence(), nil
	default:
		return nil, fmt.Errorf("unknown presence index kind %q (valid: %s, %s)", kind, PresenceCuckoo, PresenceExact)
	}
}

// CuckooPresence is a PresenceIndex backed by a cuckoo filter, which unlike a
// bloom filter supports deletion.
type CuckooPresence struct {
	filter *cuckoo.Filter
}

// NewCuckooPresence creates a filter sized for capacity keys.
func NewCuckooPresence(capacity uint) *CuckooPresence {
	if capacity == 0 {
		capacity = 1 << 16
	}
	return &CuckooPresence{filter: cuckoo.NewFilter(capacity)}
}

func (p *CuckooPresence) Contains(key kad.NodeID) bool {
	return p.filter.Lookup(keyBytes(key))
}

// Insert adds key once; repeated inserts of a present key are ignored so a
// single Remove clears it.
func (p *CuckooPresence) Insert(key kad.NodeID) {
	b := keyBytes(key)
	if p.filter.Lookup(b) {
		return
	}
	p.filter.Insert(b)
}

func (p *CuckooPresence) Remove(key kad.NodeID) {
	p.filter.Delete(keyBytes(key))
}

// Count returns the number of fingerprints held.
func (p *CuckooPresence) Count() uint {
	return p.filter.Count()
}

func keyBytes(key kad.NodeID) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(key))
	return b[:]
}

// ExactPresence is a PresenceIndex backed by a set with no false positives.
type ExactPresence struct {
	keys map[kad.NodeID]struct{}
}

// NewExactPresence creates an empty index.
func NewExactPresence() *ExactPresence {
	return &ExactPresence{keys: make(map[kad.NodeID]struct{})}
}

func (p *ExactPresence) Contains(key kad.NodeID) bool {
	_, ok := p.keys[key]
	return ok
}

func (p *ExactPresence) Insert(key kad.NodeID) {
	p.keys[key] = struct{}{}
}

func (p *ExactPresence) Remove(key kad.NodeID) {
	delete(p.keys, key)
}

// Len returns the number of keys held.
func (p *ExactPresence) Len() int {
	return len(p.keys)
}
