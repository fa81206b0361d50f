package kad

// Directory is the administrative view of every registered node. It answers
// NearestKGlobally for cache placement, where the true K nearest nodes are
// needed without running a lookup. It never takes part in the protocol.
type Directory struct {
	table      *RoutingTable
	selfListed bool
}

// NewDirectory creates an empty directory over the keyspace described by params.
func NewDirectory(params Params) *Directory {
	// Buckets are unbounded so every registered id is retained.
	return &Directory{table: newRoutingTable(0, params, 0)}
}

// Register records a node id.
func (d *Directory) Register(id NodeID) {
	if id == d.table.owner {
		d.selfListed = true
		return
	}
	d.table.AddNeighbour(id)
}

// Unregister forgets a node id.
func (d *Directory) Unregister(id NodeID) {
	if id == d.table.owner {
		d.selfListed = false
		return
	}
	d.table.RemoveNeighbour(id)
}

// Size returns the number of registered ids.
func (d *Directory) Size() int {
	n := d.table.Size()
	if d.selfListed {
		n++
	}
	return n
}

// NearestKGlobally returns the K registered ids nearest to key, ascending by distance.
func (d *Directory) NearestKGlobally(key NodeID) []NodeID {
	// The owner slot is never stored in the table, so excluding it drops nothing.
	out := d.table.NeighboursFullRange(key, d.table.owner)
	if !d.selfListed {
		return out
	}
	out = append(out, d.table.owner)
	SortByDistance(out, key)
	if len(out) > d.table.params.K {
		out = out[:d.table.params.K]
	}
	return out
}
