package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/kadsim/kadsim/sim/cache"
	"github.com/kadsim/kadsim/sim/kad"
	"github.com/kadsim/kadsim/sim/trace"
)

// Environment is everything a Node needs from the world around it. The
// Simulator is the production implementation.
type Environment interface {
	Now() int64
	Params() kad.Params
	// ScheduleAfter runs ev delay ticks from now.
	ScheduleAfter(delay int64, ev Event)
	// Send puts msg on the wire and returns the sampled one-way latency, even if the message is lost.
	Send(msg *Message) int64
	IsUp(id kad.NodeID) bool
	RandomActive() (kad.NodeID, bool)
	Node(id kad.NodeID) (*Node, bool)
	// NearestKGlobally returns the K registered nodes nearest to key without running a lookup.
	NearestKGlobally(key kad.NodeID) []kad.NodeID
	Presence() cache.PresenceIndex
	Metrics() *Metrics
	Sequence() *Sequence
	TimeoutFactor() int64
	Record(rec trace.OperationRecord)
	// Stored is told about every store that reached at least one replica.
	Stored(req StoreRequest)
}

// Node is one DHT participant: its routing table, local storage, result
// cache and the operations it initiated. All state is touched only from the
// node's own handlers.
type Node struct {
	ID  kad.NodeID
	env Environment

	table    *kad.RoutingTable
	cache    *cache.LRU[ResultSet]
	storage  map[kad.NodeID]ResultSet
	used     int64
	capacity int64

	ops           map[uint64]*operation
	queries       map[kad.NodeID]*pendingQuery // by parent key
	searchResults map[kad.NodeID]ResultSet     // first result seen per key; never overwritten
}

// NewNode creates a node with an empty routing table.
func NewNode(id kad.NodeID, env Environment, cfg NodeConfig) *Node {
	return &Node{
		ID:            id,
		env:           env,
		table:         kad.NewRoutingTable(id, env.Params()),
		cache:         cache.NewLRU[ResultSet](cfg.CacheCapacity),
		storage:       make(map[kad.NodeID]ResultSet),
		capacity:      cfg.StoreCapacity,
		ops:           make(map[uint64]*operation),
		queries:       make(map[kad.NodeID]*pendingQuery),
		searchResults: make(map[kad.NodeID]ResultSet),
	}
}

// Table returns the node's routing table.
func (n *Node) Table() *kad.RoutingTable {
	return n.table
}

// FreeSpace returns the storage units still available.
func (n *Node) FreeSpace() int64 {
	return n.capacity - n.used
}

// Stored returns the value this node holds as a replica for key.
func (n *Node) Stored(key kad.NodeID) (ResultSet, bool) {
	v, ok := n.storage[key]
	return v, ok
}

// Cached returns the value in this node's result cache without refreshing its recency.
func (n *Node) Cached(key kad.NodeID) (ResultSet, bool) {
	return n.cache.Peek(key)
}

// SearchResult returns the first result this node obtained for key.
func (n *Node) SearchResult(key kad.NodeID) (ResultSet, bool) {
	v, ok := n.searchResults[key]
	return v, ok
}

// Operation returns an unresolved operation initiated by this node.
func (n *Node) Operation(id uint64) (*kad.FindOperation, bool) {
	op, ok := n.ops[id]
	if !ok {
		return nil, false
	}
	return op.FindOperation, true
}

// PendingOperations returns how many initiated operations are still unresolved.
func (n *Node) PendingOperations() int {
	return len(n.ops)
}

// HandleMessage dispatches an incoming message.
func (n *Node) HandleMessage(msg *Message) {
	logrus.Debugf("[tick %07d] %s %s->%s op=%d", n.env.Now(), msg.Type, msg.Src, msg.Dest, msg.OperationID)
	switch msg.Type {
	case MsgRoute:
		n.handleRoute(msg)
	case MsgResponse:
		n.handleResponse(msg)
	case MsgStoreSpaceReq:
		n.handleStoreSpaceReq(msg)
	case MsgStoreSpaceResp:
		n.handleStoreSpaceResp(msg)
	case MsgStore:
		n.handleStore(msg)
	case MsgStoreResp:
		n.handleStoreResp(msg)
	case MsgFindValue:
		n.handleFindValue(msg)
	case MsgReturnValue:
		n.handleReturnValue(msg)
	case MsgReturnValueFromCache:
		n.handleReturnValueFromCache(msg)
	default:
		panic(fmt.Sprintf("node %s: unknown message type %q", n.ID, msg.Type))
	}
}

// send fills in the source and transmits msg.
func (n *Node) send(msg *Message) int64 {
	msg.Src = n.ID
	if op, ok := n.ops[msg.OperationID]; ok && msg.AckID == 0 {
		msg.Hops = op.Hops
	}
	return n.env.Send(msg)
}

// lookupOp returns the live operation a reply belongs to. Replies for
// unknown or resolved operations are expected after a cache hit or a
// failure resolved the operation first, and are dropped.
func (n *Node) lookupOp(msg *Message) (*operation, bool) {
	op, ok := n.ops[msg.OperationID]
	if !ok {
		logrus.Tracef("[tick %07d] node %s: %s for unknown op %d dropped", n.env.Now(), n.ID, msg.Type, msg.OperationID)
		return nil, false
	}
	return op, true
}

// abandon fails every operation this node initiated. It runs when the node goes down.
func (n *Node) abandon() {
	ids := make([]uint64, 0, len(n.ops))
	for id := range n.ops {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	m := n.env.Metrics()
	for _, id := range ids {
		op, live := n.ops[id]
		if !live {
			continue // resolved along with a sibling part
		}
		switch op.Body.(type) {
		case NodeLookup:
			m.LookupsFailed++
			n.resolve(op, false, false)
		case StoreRequest:
			m.StoresFailed++
			n.resolve(op, false, false)
		case KeyQuery:
			n.failPart(op)
		}
	}
}
