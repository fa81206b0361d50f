package sim

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kadsim/kadsim/sim/kad"
	"github.com/kadsim/kadsim/sim/keyword"
	"github.com/kadsim/kadsim/sim/trace"
)

// pendingQuery gathers the part results of one keyword query until every part has reported.
type pendingQuery struct {
	parent    kad.NodeID
	keywords  []string
	opIDs     []uint64
	results   map[uint64]ResultSet // by part operation
	issuedAt  int64
	hops      int
	fromCache bool // at least one part was answered from a cache
}

// valueLedger tracks FINDVALUE replies of one part operation.
type valueLedger struct {
	expected int
	replies  int
}

// StartQuery resolves the conjunction of keywords.
//
// A result already in this node's cache answers immediately. Otherwise the
// query is decomposed against the presence index and one operation is started
// per part; the parts are intersected once all of them have reported.
func (n *Node) StartQuery(keywords []string) {
	norm := keyword.Normalize(keywords)
	if len(norm) == 0 {
		return
	}
	m := n.env.Metrics()
	m.QueriesIssued++
	params := n.env.Params()
	parent := keyword.ConjunctiveKey(norm, params)

	if v, ok := n.cache.Get(parent); ok {
		m.CacheHitsPerMsg++
		m.QueryCacheHits++
		m.DuplicateQueries++
		m.QueriesSucceeded++
		m.QueryHops = append(m.QueryHops, 1)
		m.QueryLatency = append(m.QueryLatency, 0)
		n.recordSearchResult(parent, v)
		n.recordQuery(norm, parent, 0, 1, true, true)
		return
	}
	if _, inflight := n.queries[parent]; inflight {
		// The in-flight query will answer and cache this conjunction.
		m.DuplicateQueries++
		return
	}

	plan := keyword.Decompose(norm, params, n.env.Presence().Contains)
	pq := &pendingQuery{
		parent:   parent,
		keywords: norm,
		results:  make(map[uint64]ResultSet, len(plan.Parts)),
		issuedAt: n.env.Now(),
	}
	n.queries[parent] = pq

	ops := make([]*operation, 0, len(plan.Parts))
	for _, part := range plan.Parts {
		op := n.startOperation(KeyQuery{Key: part.Key, Keywords: part.Keywords, Parent: parent}, parent)
		pq.opIDs = append(pq.opIDs, op.ID)
		ops = append(ops, op)
	}
	logrus.Debugf("[tick %07d] node %s: query %v split into %d parts", n.env.Now(), n.ID, norm, len(ops))

	// A part may fail synchronously and take its siblings with it.
	for _, op := range ops {
		if _, live := n.ops[op.ID]; live {
			n.advance(op)
		}
	}
}

// beginValuePhase asks every live closest-set member for the value.
func (n *Node) beginValuePhase(op *operation, q KeyQuery) {
	op.SetPhase(kad.PhaseValue)
	op.Hops++
	op.value = &valueLedger{}

	peers := n.liveMembers(op)
	if len(peers) == 0 {
		n.failPart(op)
		return
	}
	op.value.expected = len(peers)
	var maxLatency int64
	for _, p := range peers {
		maxLatency = max(maxLatency, n.send(&Message{Type: MsgFindValue, Dest: p, OperationID: op.ID, Body: q}))
	}
	n.armPhaseTimeout(op, maxLatency)
}

// handleFindValue answers with a stored replica, else a cached result, else an explicit miss.
func (n *Node) handleFindValue(msg *Message) {
	q, ok := msg.Body.(KeyQuery)
	if !ok {
		logrus.Warnf("[tick %07d] node %s: FINDVALUE with %T body; ignoring", n.env.Now(), n.ID, msg.Body)
		return
	}
	m := n.env.Metrics()
	m.CloseNodeValExpected++
	v, found := n.storage[q.Key]
	if !found {
		v, found = n.cache.Get(q.Key)
	}
	if found {
		m.CloseNodeHadVal++
		v = v.Clone()
	}
	n.send(msg.Reply(MsgReturnValue, KeyQueryResult{Key: q.Key, Value: v, Found: found}))
}

func (n *Node) handleReturnValue(msg *Message) {
	op, ok := n.lookupOp(msg)
	if !ok || op.Phase() != kad.PhaseValue {
		return
	}
	res, ok := msg.Body.(KeyQueryResult)
	if !ok {
		logrus.Warnf("[tick %07d] node %s: op %d got %T in RETURNVALUE; counting as a miss", n.env.Now(), n.ID, op.ID, msg.Body)
	}
	op.value.replies++
	if ok && res.Found {
		n.completePart(op, res.Value, false)
		return
	}
	if op.value.replies >= op.value.expected {
		n.failPart(op)
	}
}

// handleReturnValueFromCache accepts a value a probed node had cached. The
// operation may be in any phase; if it is gone the answer is stale.
func (n *Node) handleReturnValueFromCache(msg *Message) {
	op, ok := n.lookupOp(msg)
	if !ok {
		return
	}
	res, ok := msg.Body.(KeyQueryResult)
	if !ok || !res.Found {
		logrus.Warnf("[tick %07d] node %s: op %d got an unusable RETURNVALUE_FROM_CACHE; ignoring", n.env.Now(), n.ID, op.ID)
		return
	}
	op.Settle(msg.Src)
	n.completePart(op, res.Value, true)
}

func (n *Node) valueTimeout(op *operation) {
	n.failPart(op)
}

// completePart records one part's result and merges the query once every part has one.
func (n *Node) completePart(op *operation, value ResultSet, fromCache bool) {
	q := op.Body.(KeyQuery)
	n.resolve(op, true, fromCache)
	n.recordSearchResult(q.Key, value)

	pq, ok := n.queries[op.Parent]
	if !ok {
		return
	}
	pq.results[op.ID] = value
	pq.hops += op.Hops
	pq.fromCache = pq.fromCache || fromCache
	if !fromCache && len(pq.opIDs) > 1 {
		n.storeResultInCache(q.Key, value)
	}
	if len(pq.results) < len(pq.opIDs) {
		return
	}

	var merged ResultSet
	for _, id := range pq.opIDs {
		if merged == nil {
			merged = pq.results[id].Clone()
			continue
		}
		merged = merged.Intersect(pq.results[id])
	}
	n.finishQuery(pq, merged)
}

func (n *Node) finishQuery(pq *pendingQuery, merged ResultSet) {
	delete(n.queries, pq.parent)
	n.recordSearchResult(pq.parent, merged)
	// A single part answered from a cache is already cached under the parent.
	if len(pq.opIDs) > 1 || !pq.fromCache {
		n.storeResultInCache(pq.parent, merged)
	}

	m := n.env.Metrics()
	latency := n.env.Now() - pq.issuedAt
	m.QueriesSucceeded++
	m.QueryHops = append(m.QueryHops, float64(pq.hops))
	m.QueryLatency = append(m.QueryLatency, float64(latency))
	if pq.fromCache {
		m.QueryCacheHits++
	} else {
		m.QueryCacheMisses++
	}
	logrus.Debugf("[tick %07d] node %s: query %v answered with %d documents", n.env.Now(), n.ID, pq.keywords, len(merged))
	n.recordQuery(pq.keywords, pq.parent, latency, pq.hops, true, pq.fromCache)
}

// failPart fails the whole query a part belongs to and abandons its siblings.
func (n *Node) failPart(op *operation) {
	n.resolve(op, false, false)
	pq, ok := n.queries[op.Parent]
	if !ok {
		return
	}
	delete(n.queries, op.Parent)
	for _, id := range pq.opIDs {
		if sib, live := n.ops[id]; live {
			n.resolve(sib, false, false)
		}
	}
	m := n.env.Metrics()
	m.QueriesFailed++
	if pq.fromCache {
		m.QueryCacheHits++
	} else {
		m.QueryCacheMisses++
	}
	logrus.Debugf("[tick %07d] node %s: query %v failed on part %s", n.env.Now(), n.ID, pq.keywords, op.Target)
	n.recordQuery(pq.keywords, pq.parent, n.env.Now()-pq.issuedAt, pq.hops+op.Hops, false, pq.fromCache)
}

// recordSearchResult keeps the first result seen for key.
func (n *Node) recordSearchResult(key kad.NodeID, v ResultSet) {
	if _, seen := n.searchResults[key]; seen {
		return
	}
	n.searchResults[key] = v.Clone()
}

func (n *Node) recordQuery(keywords []string, parent kad.NodeID, latency int64, hops int, success, fromCache bool) {
	n.env.Record(trace.OperationRecord{
		Kind:      trace.KindQuery,
		Node:      n.ID.String(),
		Target:    parent.String(),
		Keywords:  strings.Join(keywords, " "),
		Clock:     n.env.Now(),
		Hops:      hops,
		Latency:   latency,
		Success:   success,
		FromCache: fromCache,
	})
}
