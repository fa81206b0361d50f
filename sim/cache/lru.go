// Package cache provides the per-node result cache and the network-wide
// presence index consulted before a multi-keyword query is decomposed.
package cache

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/kadsim/kadsim/sim/kad"
)

// LRU is a bounded least-recently-used map from keyspace keys to values.
// A capacity <= 0 disables caching: every Set is dropped and every lookup misses.
// Not thread-safe; each node's cache is touched only from its own handler.
type LRU[V any] struct {
	inner   *simplelru.LRU[kad.NodeID, V]
	evicted []kad.NodeID
}

// NewLRU creates a cache holding at most capacity entries.
func NewLRU[V any](capacity int) *LRU[V] {
	c := &LRU[V]{}
	if capacity <= 0 {
		return c
	}
	inner, err := simplelru.NewLRU[kad.NodeID, V](capacity, func(key kad.NodeID, _ V) {
		c.evicted = append(c.evicted, key)
	})
	if err != nil {
		panic(fmt.Sprintf("NewLRU: %v", err))
	}
	c.inner = inner
	return c
}

// Enabled reports whether the cache can hold anything.
func (c *LRU[V]) Enabled() bool {
	return c.inner != nil
}

// Member reports whether key is cached without refreshing its recency.
func (c *LRU[V]) Member(key kad.NodeID) bool {
	return c.inner != nil && c.inner.Contains(key)
}

// Get returns the cached value and marks it most recently used.
func (c *LRU[V]) Get(key kad.NodeID) (V, bool) {
	if c.inner == nil {
		var zero V
		return zero, false
	}
	return c.inner.Get(key)
}

// Peek returns the cached value without touching its recency.
func (c *LRU[V]) Peek(key kad.NodeID) (V, bool) {
	if c.inner == nil {
		var zero V
		return zero, false
	}
	return c.inner.Peek(key)
}

// Set stores value under key. If this pushed out the least recently used
// entry, its key is returned with ok set.
func (c *LRU[V]) Set(key kad.NodeID, value V) (evictedKey kad.NodeID, ok bool) {
	if c.inner == nil {
		return 0, false
	}
	c.evicted = c.evicted[:0]
	c.inner.Add(key, value)
	if len(c.evicted) == 0 {
		return 0, false
	}
	return c.evicted[0], true
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	if c.inner == nil {
		return 0
	}
	return c.inner.Len()
}

// Keys returns the cached keys from oldest to newest.
func (c *LRU[V]) Keys() []kad.NodeID {
	if c.inner == nil {
		return nil
	}
	return c.inner.Keys()
}
