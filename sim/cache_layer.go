package sim

import "github.com/kadsim/kadsim/sim/kad"

// storeResultInCache writes a query result to this node's cache and to the
// caches of the K live nodes nearest to key, then marks key present.
//
// The replica writes happen in the same handler with no messages, so they
// cost no hops and nothing can interleave with them. Every eviction they
// cause removes the evicted key from the presence index, whether or not
// other copies survive elsewhere.
func (n *Node) storeResultInCache(key kad.NodeID, value ResultSet) {
	if !n.cache.Enabled() {
		return
	}
	n.cacheLocally(key, value)
	for _, id := range n.env.NearestKGlobally(key) {
		if id == n.ID || !n.env.IsUp(id) {
			continue
		}
		if peer, ok := n.env.Node(id); ok {
			peer.cacheLocally(key, value)
		}
	}
	n.env.Presence().Insert(key)
	n.env.Metrics().CacheWrites++
}

func (n *Node) cacheLocally(key kad.NodeID, value ResultSet) {
	evicted, ok := n.cache.Set(key, value.Clone())
	if !ok {
		return
	}
	n.env.Metrics().CacheEvictions++
	n.env.Presence().Remove(evicted)
}
