package sim

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/kadsim/kadsim/sim/kad"
)

// storeLedger tracks the space negotiation and replica acknowledgements of one store.
type storeLedger struct {
	expected int                  // space offers awaited
	offers   map[kad.NodeID]int64 // responder -> free space
	placed   bool                 // STOREs sent; now awaiting acks
	sent     int
	acks     int
	accepted int
}

// StartStore begins placing req on the K nodes near req.Key with the most free space.
func (n *Node) StartStore(req StoreRequest) {
	n.env.Metrics().StoresIssued++
	n.advance(n.startOperation(req, 0))
}

// beginStore asks every live closest-set member how much space it has left.
func (n *Node) beginStore(op *operation, req StoreRequest) {
	op.SetPhase(kad.PhaseStore)
	op.Hops++
	op.store = &storeLedger{offers: make(map[kad.NodeID]int64)}

	peers := n.liveMembers(op)
	if len(peers) == 0 {
		logrus.Warnf("[tick %07d] node %s: store op %d for %s found no live peers", n.env.Now(), n.ID, op.ID, req.Key)
		n.finishStore(op)
		return
	}
	op.store.expected = len(peers)
	var maxLatency int64
	for _, p := range peers {
		maxLatency = max(maxLatency, n.send(&Message{Type: MsgStoreSpaceReq, Dest: p, OperationID: op.ID, Body: req}))
	}
	n.armPhaseTimeout(op, maxLatency)
}

func (n *Node) handleStoreSpaceReq(msg *Message) {
	n.send(msg.Reply(MsgStoreSpaceResp, SpaceOffer{Free: n.FreeSpace()}))
}

func (n *Node) handleStoreSpaceResp(msg *Message) {
	op, ok := n.lookupOp(msg)
	if !ok || op.Phase() != kad.PhaseStore || op.store.placed {
		return
	}
	offer, ok := msg.Body.(SpaceOffer)
	if !ok {
		logrus.Warnf("[tick %07d] node %s: op %d got %T in STORE_SPACE_RESP; ignoring", n.env.Now(), n.ID, op.ID, msg.Body)
		return
	}
	if _, dup := op.store.offers[msg.Src]; dup {
		return
	}
	op.store.offers[msg.Src] = offer.Free
	if len(op.store.offers) >= op.store.expected {
		n.placeReplicas(op)
	}
}

// placeReplicas sends STORE to the K responders with the most free space.
func (n *Node) placeReplicas(op *operation) {
	l := op.store
	l.placed = true
	ranked := rankBySpace(l.offers, op.Target)
	if k := n.env.Params().K; len(ranked) > k {
		ranked = ranked[:k]
	}
	if len(ranked) == 0 {
		n.finishStore(op)
		return
	}

	m := n.env.Metrics()
	var maxLatency int64
	for _, p := range ranked {
		maxLatency = max(maxLatency, n.send(&Message{Type: MsgStore, Dest: p, OperationID: op.ID, Body: op.Body}))
		m.StoreMessagesSent++
	}
	l.sent = len(ranked)
	n.armPhaseTimeout(op, maxLatency)
}

// rankBySpace orders responders by free space, most first, breaking ties by distance to key.
func rankBySpace(offers map[kad.NodeID]int64, key kad.NodeID) []kad.NodeID {
	ids := make([]kad.NodeID, 0, len(offers))
	for id := range offers {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b kad.NodeID) int {
		if offers[a] != offers[b] {
			if offers[a] > offers[b] {
				return -1
			}
			return 1
		}
		da, db := kad.Distance(a, key), kad.Distance(b, key)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	})
	return ids
}

// handleStore keeps a replica if it fits. A key already held is acknowledged without using more space.
func (n *Node) handleStore(msg *Message) {
	req, ok := msg.Body.(StoreRequest)
	if !ok {
		logrus.Warnf("[tick %07d] node %s: STORE with %T body; ignoring", n.env.Now(), n.ID, msg.Body)
		return
	}
	m := n.env.Metrics()
	accepted := true
	if _, held := n.storage[req.Key]; !held {
		if n.used+req.Size > n.capacity {
			accepted = false
		} else {
			n.storage[req.Key] = req.Value.Clone()
			n.used += req.Size
		}
	}
	if accepted {
		m.ReplicasStored++
	} else {
		m.ReplicasRejected++
		m.RecordOverload(n.ID)
		logrus.Debugf("[tick %07d] node %s: rejected %s (%d units, %d free)", n.env.Now(), n.ID, req.Key, req.Size, n.FreeSpace())
	}
	n.send(msg.Reply(MsgStoreResp, StoreAck{Key: req.Key, OK: accepted}))
}

func (n *Node) handleStoreResp(msg *Message) {
	op, ok := n.lookupOp(msg)
	if !ok || op.Phase() != kad.PhaseStore || !op.store.placed {
		return
	}
	ack, ok := msg.Body.(StoreAck)
	if !ok {
		logrus.Warnf("[tick %07d] node %s: op %d got %T in STORE_RESP; ignoring", n.env.Now(), n.ID, op.ID, msg.Body)
		return
	}
	op.store.acks++
	if ack.OK {
		op.store.accepted++
	}
	if op.store.acks >= op.store.sent {
		n.finishStore(op)
	}
}

// storeTimeout places with the offers collected so far, or finishes with the acks received so far.
func (n *Node) storeTimeout(op *operation) {
	if !op.store.placed {
		n.placeReplicas(op)
		return
	}
	n.finishStore(op)
}

// finishStore resolves the store. It succeeded if at least one replica was accepted.
func (n *Node) finishStore(op *operation) {
	req := op.Body.(StoreRequest)
	success := op.store.accepted > 0
	m := n.env.Metrics()
	if success {
		m.StoresSucceeded++
		m.StoreHops = append(m.StoreHops, float64(op.Hops))
		m.StoreLatency = append(m.StoreLatency, float64(n.env.Now()-op.StartedAt))
		m.StoreReplicas = append(m.StoreReplicas, float64(op.store.accepted))
		n.env.Stored(req)
	} else {
		m.StoresFailed++
	}
	logrus.Debugf("[tick %07d] node %s: store %s done, %d/%d replicas", n.env.Now(), n.ID, req.Key, op.store.accepted, op.store.sent)
	n.resolve(op, success, false)
}
