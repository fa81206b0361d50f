package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kadsim/kadsim/sim/kad"
	"github.com/kadsim/kadsim/sim/trace"
)

// operation is a FindOperation together with what the initiator does once
// it converges.
type operation struct {
	*kad.FindOperation
	Body      Body       // NodeLookup, StoreRequest or KeyQuery
	Parent    kad.NodeID // conjunctive key of the owning query; KeyQuery only
	StartedAt int64
	Hops      int // ROUTE probes sent, plus one for a store or value round

	round int // bumps on every phase wait so stale PhaseTimeoutEvents are ignored
	store *storeLedger
	value *valueLedger
}

func (op *operation) kind() string {
	switch op.Body.(type) {
	case NodeLookup:
		return trace.KindLookup
	case StoreRequest:
		return trace.KindStore
	default:
		return trace.KindValue
	}
}

// StartLookup begins a node lookup for target.
func (n *Node) StartLookup(target kad.NodeID) {
	n.env.Metrics().LookupsIssued++
	n.advance(n.startOperation(NodeLookup{Target: target}, 0))
}

// startOperation registers a new FindOperation seeded from the routing
// table. The caller advances it.
func (n *Node) startOperation(body Body, parent kad.NodeID) *operation {
	key := bodyKey(body)
	op := &operation{
		FindOperation: kad.NewFindOperation(n.env.Sequence().NextOperation(), key, n.env.Params()),
		Body:          body,
		Parent:        parent,
		StartedAt:     n.env.Now(),
	}
	n.ops[op.ID] = op
	n.env.Metrics().FindOperations++
	op.Seed(n.table.Neighbours(key, n.ID))
	logrus.Debugf("[tick %07d] node %s: op %d %s for %s seeded with %d ids", n.env.Now(), n.ID, op.ID, op.kind(), key, op.Len())
	return op
}

// advance spends the probe budget on the nearest unqueried candidates and
// moves to the terminal phase once the operation has converged.
func (n *Node) advance(op *operation) {
	if op.Phase() != kad.PhaseIterating {
		return
	}
	for {
		peer, ok := op.NextNeighbour()
		if !ok {
			break
		}
		n.sendProbe(op, peer)
	}
	if op.Converged() {
		n.converge(op)
	}
}

func (n *Node) sendProbe(op *operation, peer kad.NodeID) {
	op.Hops++
	latency := n.send(&Message{Type: MsgRoute, Dest: peer, OperationID: op.ID, Body: op.Body})
	n.env.ScheduleAfter(n.env.TimeoutFactor()*2*latency, &ProbeTimeoutEvent{Node: n.ID, OperationID: op.ID, Target: peer})
}

// handleRoute answers a probe. A probe for a key this node has cached is
// answered with the value, which ends the initiator's lookup early.
func (n *Node) handleRoute(msg *Message) {
	n.table.AddNeighbour(msg.Src)
	m := n.env.Metrics()
	if q, ok := msg.Body.(KeyQuery); ok {
		if v, hit := n.cache.Get(q.Key); hit {
			m.CacheHitsPerMsg++
			n.send(msg.Reply(MsgReturnValueFromCache, KeyQueryResult{Key: q.Key, Value: v.Clone(), Found: true}))
			return
		}
		m.CacheMissesPerMsg++
	}
	n.send(msg.Reply(MsgResponse, Neighbours{IDs: n.table.Neighbours(bodyKey(msg.Body), msg.Src)}))
}

func (n *Node) handleResponse(msg *Message) {
	op, ok := n.lookupOp(msg)
	if !ok || op.Phase() != kad.PhaseIterating || !op.Settle(msg.Src) {
		return
	}
	n.table.AddNeighbour(msg.Src)

	nb, ok := msg.Body.(Neighbours)
	if !ok {
		logrus.Warnf("[tick %07d] node %s: op %d got %T in RESPONSE from %s; ignoring", n.env.Now(), n.ID, op.ID, msg.Body, msg.Src)
		op.RestoreBudget()
	} else {
		op.ElaborateResponse(n.withoutSelf(nb.IDs))
	}
	n.advance(op)
}

// handleProbeTimeout forgets a peer that did not answer in time and lets the
// operation pick another candidate or converge without it.
func (n *Node) handleProbeTimeout(opID uint64, peer kad.NodeID) {
	op, ok := n.ops[opID]
	if !ok || op.Phase() != kad.PhaseIterating || !op.Settle(peer) {
		return
	}
	n.env.Metrics().Timeouts++
	logrus.Debugf("[tick %07d] node %s: op %d probe to %s timed out", n.env.Now(), n.ID, op.ID, peer)
	n.table.RemoveNeighbour(peer)
	op.Prune(peer)
	op.ElaborateResponse(nil)
	n.advance(op)
}

func (n *Node) converge(op *operation) {
	op.SetPhase(kad.PhaseConverged)
	logrus.Debugf("[tick %07d] node %s: op %d converged on %v after %d hops", n.env.Now(), n.ID, op.ID, op.ClosestSet(), op.Hops)
	switch body := op.Body.(type) {
	case NodeLookup:
		n.finishLookup(op, body)
	case StoreRequest:
		n.beginStore(op, body)
	case KeyQuery:
		n.beginValuePhase(op, body)
	default:
		panic(fmt.Sprintf("node %s: op %d has unexpected body %T", n.ID, op.ID, op.Body))
	}
}

func (n *Node) finishLookup(op *operation, body NodeLookup) {
	success := body.Target == n.ID || op.Contains(body.Target)
	m := n.env.Metrics()
	if success {
		m.LookupsSucceeded++
		m.LookupHops = append(m.LookupHops, float64(op.Hops))
		m.LookupLatency = append(m.LookupLatency, float64(n.env.Now()-op.StartedAt))
	} else {
		m.LookupsFailed++
	}
	n.resolve(op, success, false)
}

// resolve ends an operation. Later replies for it are dropped.
func (n *Node) resolve(op *operation, success, fromCache bool) {
	op.SetPhase(kad.PhaseDone)
	delete(n.ops, op.ID)
	now := n.env.Now()
	n.env.Record(trace.OperationRecord{
		OperationID: op.ID,
		Kind:        op.kind(),
		Node:        n.ID.String(),
		Target:      op.Target.String(),
		Clock:       now,
		Hops:        op.Hops,
		Latency:     now - op.StartedAt,
		Success:     success,
		FromCache:   fromCache,
	})
}

// handlePhaseTimeout ends a store or value phase that stopped receiving replies.
func (n *Node) handlePhaseTimeout(opID uint64, phase kad.Phase, round int) {
	op, ok := n.ops[opID]
	if !ok || op.Phase() != phase || op.round != round {
		return
	}
	switch phase {
	case kad.PhaseStore:
		n.storeTimeout(op)
	case kad.PhaseValue:
		n.valueTimeout(op)
	}
}

// armPhaseTimeout starts a new wait for the current phase, sized from the
// slowest request just sent.
func (n *Node) armPhaseTimeout(op *operation, maxLatency int64) {
	op.round++
	n.env.ScheduleAfter(n.env.TimeoutFactor()*2*maxLatency, &PhaseTimeoutEvent{
		Node:        n.ID,
		OperationID: op.ID,
		Phase:       op.Phase(),
		Round:       op.round,
	})
}

func (n *Node) withoutSelf(ids []kad.NodeID) []kad.NodeID {
	out := make([]kad.NodeID, 0, len(ids))
	for _, id := range ids {
		if id != n.ID {
			out = append(out, id)
		}
	}
	return out
}

// liveMembers returns the closest-set members currently up, nearest first.
func (n *Node) liveMembers(op *operation) []kad.NodeID {
	var out []kad.NodeID
	for _, id := range op.ClosestSet() {
		if n.env.IsUp(id) {
			out = append(out, id)
		}
	}
	return out
}
