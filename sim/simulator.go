// sim/simulator.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/kadsim/kadsim/sim/cache"
	"github.com/kadsim/kadsim/sim/kad"
	"github.com/kadsim/kadsim/sim/trace"
	"github.com/kadsim/kadsim/sim/workload"
)

// Simulator is the core object that holds simulation time, the node
// population, the network and the event loop. It implements Environment.
type Simulator struct {
	Clock   int64
	Horizon int64

	cfg    SimConfig
	params kad.Params
	events *EventHeap

	nodes     map[kad.NodeID]*Node
	order     []kad.NodeID // every node id, ascending
	up        map[kad.NodeID]bool
	directory *kad.Directory // live nodes only
	presence  cache.PresenceIndex
	transport Transport

	rng     *PartitionedRNG
	seq     *Sequence
	metrics *Metrics
	trace   *trace.SimulationTrace

	generator   *workload.Generator
	storesLeft  int
	queriesLeft int
	lookupsLeft int
}

// Option customizes a Simulator at construction.
type Option func(*options)

type options struct {
	ids       []kad.NodeID
	presence  cache.PresenceIndex
	transport Transport
	dataset   *workload.Dataset
}

// WithNodeIDs uses ids instead of drawing cfg.Nodes random identifiers.
func WithNodeIDs(ids ...kad.NodeID) Option {
	return func(o *options) { o.ids = ids }
}

// WithPresenceIndex replaces the index built from cfg.Presence.
func WithPresenceIndex(p cache.PresenceIndex) Option {
	return func(o *options) { o.presence = p }
}

// WithTransport replaces the transport built from cfg.Transport.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithDataset supplies the store workload's dataset instead of loading or synthesizing one.
func WithDataset(ds *workload.Dataset) Option {
	return func(o *options) { o.dataset = ds }
}

// NewSimulator validates cfg, creates the nodes, fills their routing tables
// and schedules the configured workload and churn.
func NewSimulator(cfg SimConfig, opts ...Option) (*Simulator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids != nil {
		cfg.Nodes = len(o.ids)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rng := NewPartitionedRNG(cfg.Seed)
	sim := &Simulator{
		Horizon:   cfg.Horizon,
		cfg:       cfg,
		params:    cfg.Kad,
		events:    NewEventHeap(),
		nodes:     make(map[kad.NodeID]*Node, cfg.Nodes),
		up:        make(map[kad.NodeID]bool, cfg.Nodes),
		directory: kad.NewDirectory(cfg.Kad),
		presence:  o.presence,
		transport: o.transport,
		rng:       rng,
		seq:       NewSequence(),
		metrics:   NewMetrics(),
	}
	if cfg.Trace.Enabled() {
		sim.trace = trace.NewSimulationTrace(cfg.Trace)
	}
	if sim.presence == nil {
		p, err := cache.NewPresenceIndex(cfg.Presence.Kind, cfg.Presence.Capacity)
		if err != nil {
			return nil, err
		}
		sim.presence = p
	}
	if sim.transport == nil {
		sim.transport = NewUnreliableTransport(cfg.Transport, rng.ForSubsystem(SubsystemTransport))
	}

	ids := o.ids
	if ids == nil {
		ids = sim.drawNodeIDs(cfg.Nodes)
	}
	if err := sim.addNodes(ids); err != nil {
		return nil, err
	}
	sim.bootstrap()

	if err := sim.scheduleWorkload(o.dataset); err != nil {
		return nil, err
	}
	if cfg.Churn.Interval > 0 && (cfg.Churn.Down > 0 || cfg.Churn.Up > 0) {
		sim.Schedule(cfg.Churn.Interval, &ChurnEvent{})
	}
	return sim, nil
}

// drawNodeIDs picks n distinct identifiers uniformly from the keyspace.
func (sim *Simulator) drawNodeIDs(n int) []kad.NodeID {
	rng := sim.rng.ForSubsystem(SubsystemNodeIDs)
	seen := make(map[kad.NodeID]bool, n)
	ids := make([]kad.NodeID, 0, n)
	for len(ids) < n {
		id := sim.params.Clamp(rng.Uint64())
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (sim *Simulator) addNodes(ids []kad.NodeID) error {
	for _, id := range ids {
		if sim.params.Clamp(uint64(id)) != id {
			return fmt.Errorf("node id %s outside the %d-bit keyspace", id, sim.params.Bits)
		}
		if _, dup := sim.nodes[id]; dup {
			return fmt.Errorf("duplicate node id %s", id)
		}
		sim.nodes[id] = NewNode(id, sim, sim.cfg.Node)
		sim.order = append(sim.order, id)
		sim.up[id] = true
		sim.directory.Register(id)
	}
	slices.Sort(sim.order)
	return nil
}

// bootstrap fills routing tables before the first event. With no contact
// limit every node offers every other node to its table in ascending id
// order, so each bucket keeps the first K ids that fit.
func (sim *Simulator) bootstrap() {
	contacts := sim.cfg.Bootstrap.Contacts
	if contacts == 0 {
		for _, id := range sim.order {
			table := sim.nodes[id].table
			for _, other := range sim.order {
				if other != id {
					table.AddNeighbour(other)
				}
			}
		}
		logrus.Infof("[tick %07d] Bootstrapped %d nodes with full membership", sim.Clock, len(sim.order))
		return
	}

	rng := sim.rng.ForSubsystem(SubsystemBootstrap)
	for _, id := range sim.order {
		table := sim.nodes[id].table
		for i := 0; i < contacts && len(sim.order) > 1; i++ {
			if other := sim.order[rng.Intn(len(sim.order))]; other != id {
				table.AddNeighbour(other)
			}
		}
		nearest := slices.Clone(sim.order)
		kad.SortByDistance(nearest, id)
		// nearest[0] is id itself.
		for _, other := range nearest[1:min(contacts+1, len(nearest))] {
			table.AddNeighbour(other)
		}
	}
	logrus.Infof("[tick %07d] Bootstrapped %d nodes with %d random and %d nearest contacts each", sim.Clock, len(sim.order), contacts, contacts)
}

// scheduleWorkload prepares the generator and schedules the first arrival of every enabled traffic kind.
func (sim *Simulator) scheduleWorkload(ds *workload.Dataset) error {
	w := sim.cfg.Workload
	sim.storesLeft, sim.queriesLeft, sim.lookupsLeft = w.Stores, w.Queries, w.Lookups

	if w.Stores > 0 || w.Queries > 0 {
		if ds == nil {
			var err error
			ds, err = sim.loadDataset()
			if err != nil {
				return err
			}
		}
		sim.generator = workload.NewGenerator(ds, sim.rng.ForSubsystem(SubsystemWorkload), uint(w.Queries))
		logrus.Infof("[tick %07d] Workload: %d dataset entries, %d stores, %d queries", sim.Clock, ds.Len(), w.Stores, w.Queries)
	}
	if w.Stores > 0 {
		sim.Schedule(0, &StoreArrivalEvent{})
	}
	if w.Queries > 0 {
		sim.Schedule(w.QueryStart, &QueryArrivalEvent{})
	}
	if w.Lookups > 0 {
		sim.Schedule(0, &LookupArrivalEvent{Generated: true})
	}
	return nil
}

func (sim *Simulator) loadDataset() (*workload.Dataset, error) {
	w := sim.cfg.Workload
	if w.DatasetPath != "" {
		return workload.LoadCSV(w.DatasetPath)
	}
	return workload.Synthetic(sim.rng.ForSubsystem(SubsystemWorkload), w.SyntheticKeywords, w.SyntheticDocs, w.SyntheticCorpus), nil
}

// Schedule stamps ev with time at and a fresh tie-breaking id and queues it.
func (sim *Simulator) Schedule(at int64, ev Event) {
	ev.stamp(at, sim.seq.NextEvent())
	sim.events.Schedule(ev)
}

// ScheduleAfter queues ev delay ticks from now.
func (sim *Simulator) ScheduleAfter(delay int64, ev Event) {
	sim.Schedule(sim.Clock+delay, ev)
}

// Run processes events until the queue drains or the next event lies past the horizon.
func (sim *Simulator) Run() {
	logrus.Infof("[tick %07d] Simulation started: %d nodes, K=%d, alpha=%d, %d-bit ids",
		sim.Clock, len(sim.order), sim.params.K, sim.params.Alpha, sim.params.Bits)
	sim.RunUntil(sim.Horizon)
	logrus.Infof("[tick %07d] Simulation ended", sim.Clock)
}

// RunUntil processes every event stamped at or before until.
func (sim *Simulator) RunUntil(until int64) {
	until = min(until, sim.Horizon)
	for sim.events.Len() > 0 {
		if sim.events.Peek().Timestamp() > until {
			return
		}
		ev := sim.events.PopNext()
		if ev.Timestamp() < sim.Clock {
			panic(fmt.Sprintf("event %T at %d precedes clock %d", ev, ev.Timestamp(), sim.Clock))
		}
		sim.Clock = ev.Timestamp()
		logrus.Tracef("[tick %07d] Executing %T", sim.Clock, ev)
		ev.Execute(sim)
	}
}

// Pending returns the number of queued events.
func (sim *Simulator) Pending() int {
	return sim.events.Len()
}

// === Environment ===

func (sim *Simulator) Now() int64                    { return sim.Clock }
func (sim *Simulator) Params() kad.Params            { return sim.params }
func (sim *Simulator) Presence() cache.PresenceIndex { return sim.presence }
func (sim *Simulator) Metrics() *Metrics             { return sim.metrics }
func (sim *Simulator) Sequence() *Sequence           { return sim.seq }
func (sim *Simulator) TimeoutFactor() int64          { return sim.cfg.Transport.TimeoutFactor }

// Send assigns msg its id and send time and hands it to the transport.
func (sim *Simulator) Send(msg *Message) int64 {
	msg.ID = sim.seq.NextMessage()
	msg.SentAt = sim.Clock
	latency, delivered := sim.transport.Sample(msg.Src, msg.Dest)
	sim.metrics.MessagesSent++
	if !delivered {
		sim.metrics.MessagesLost++
		logrus.Debugf("[tick %07d] %s %s->%s lost", sim.Clock, msg.Type, msg.Src, msg.Dest)
		return latency
	}
	sim.ScheduleAfter(latency, &DeliveryEvent{Msg: msg})
	return latency
}

// IsUp reports whether id names a live node.
func (sim *Simulator) IsUp(id kad.NodeID) bool {
	return sim.up[id]
}

// RandomActive picks a live node uniformly using the workload stream.
func (sim *Simulator) RandomActive() (kad.NodeID, bool) {
	live := sim.liveNodes()
	if len(live) == 0 {
		return 0, false
	}
	return live[sim.rng.ForSubsystem(SubsystemWorkload).Intn(len(live))], true
}

// Node returns the node with the given id, live or not.
func (sim *Simulator) Node(id kad.NodeID) (*Node, bool) {
	n, ok := sim.nodes[id]
	return n, ok
}

// NearestKGlobally returns the K live nodes nearest to key.
func (sim *Simulator) NearestKGlobally(key kad.NodeID) []kad.NodeID {
	return sim.directory.NearestKGlobally(key)
}

// Record keeps rec when tracing is enabled.
func (sim *Simulator) Record(rec trace.OperationRecord) {
	if sim.trace != nil {
		sim.trace.Record(rec)
	}
}

// Stored makes a stored keyword available to generated queries.
func (sim *Simulator) Stored(req StoreRequest) {
	if sim.generator != nil && req.Keyword != "" {
		sim.generator.MarkStored(req.Keyword)
	}
}

// === Accessors ===

// Nodes returns every node id in ascending order.
func (sim *Simulator) Nodes() []kad.NodeID {
	return slices.Clone(sim.order)
}

// Trace returns the collected operation records, or nil when tracing is off.
func (sim *Simulator) Trace() *trace.SimulationTrace {
	return sim.trace
}

// Summary builds the end-of-run report at the current clock.
func (sim *Simulator) Summary() *Summary {
	return sim.metrics.Summary(sim.Clock)
}

func (sim *Simulator) liveNodes() []kad.NodeID {
	live := make([]kad.NodeID, 0, len(sim.order))
	for _, id := range sim.order {
		if sim.up[id] {
			live = append(live, id)
		}
	}
	return live
}

// setUp changes a node's liveness. A node that goes down fails the operations
// it initiated but keeps its table, storage and cache, and is removed from
// the directory until it comes back.
func (sim *Simulator) setUp(id kad.NodeID, up bool) {
	if _, ok := sim.nodes[id]; !ok {
		logrus.Warnf("[tick %07d] liveness change for unknown node %s ignored", sim.Clock, id)
		return
	}
	if sim.up[id] == up {
		return
	}
	sim.up[id] = up
	if up {
		sim.directory.Register(id)
		sim.metrics.NodeRecoveries++
		logrus.Debugf("[tick %07d] node %s up", sim.Clock, id)
		return
	}
	sim.directory.Unregister(id)
	sim.nodes[id].abandon()
	sim.metrics.NodeFailures++
	logrus.Debugf("[tick %07d] node %s down", sim.Clock, id)
}

// === Injected traffic ===

// NewStoreRequest builds the store of a keyword and the documents containing it.
func NewStoreRequest(keyword string, documents []string, params kad.Params) StoreRequest {
	e := workload.Entry{Keyword: keyword, Documents: documents}
	return StoreRequest{
		Key:     kad.HashKey(keyword, params),
		Keyword: keyword,
		Value:   NewResultSet(documents...),
		Size:    e.Size(),
	}
}

// InjectStore schedules a store of req started by node start at tick at.
func (sim *Simulator) InjectStore(at int64, start kad.NodeID, req StoreRequest) {
	sim.Schedule(at, &StoreArrivalEvent{Start: start, Request: &req})
}

// InjectQuery schedules a keyword query started by node start at tick at.
func (sim *Simulator) InjectQuery(at int64, start kad.NodeID, keywords ...string) {
	if len(keywords) == 0 {
		return
	}
	sim.Schedule(at, &QueryArrivalEvent{Start: start, Keywords: slices.Clone(keywords)})
}

// InjectLookup schedules a lookup for target started by node start at tick at.
func (sim *Simulator) InjectLookup(at int64, start, target kad.NodeID) {
	sim.Schedule(at, &LookupArrivalEvent{Start: start, Target: target})
}

// ScheduleNodeDown takes id offline at tick at.
func (sim *Simulator) ScheduleNodeDown(at int64, id kad.NodeID) {
	sim.Schedule(at, &NodeDownEvent{Node: id})
}

// ScheduleNodeUp brings id back at tick at.
func (sim *Simulator) ScheduleNodeUp(at int64, id kad.NodeID) {
	sim.Schedule(at, &NodeUpEvent{Node: id})
}

// liveNode returns the node for start if it exists and is up.
func (sim *Simulator) liveNode(start kad.NodeID, what string) (*Node, bool) {
	node, ok := sim.nodes[start]
	if !ok || !sim.up[start] {
		logrus.Debugf("[tick %07d] %s at %s skipped: node missing or down", sim.Clock, what, start)
		return nil, false
	}
	return node, true
}

func (sim *Simulator) startStore(start kad.NodeID, req StoreRequest) {
	if node, ok := sim.liveNode(start, "store"); ok {
		node.StartStore(req)
	}
}

func (sim *Simulator) startQuery(start kad.NodeID, keywords []string) {
	if node, ok := sim.liveNode(start, "query"); ok {
		node.StartQuery(keywords)
	}
}

func (sim *Simulator) startLookup(start, target kad.NodeID) {
	if node, ok := sim.liveNode(start, "lookup"); ok {
		node.StartLookup(target)
	}
}

// === Generated traffic ===

func (sim *Simulator) nextGeneratedStore() {
	if sim.storesLeft <= 0 {
		return
	}
	sim.storesLeft--
	entry, ok := sim.generator.NextStore()
	if !ok {
		logrus.Infof("[tick %07d] All %d dataset entries issued; %d stores not issued", sim.Clock, sim.generator.Issued(), sim.storesLeft+1)
		sim.storesLeft = 0
		return
	}
	if start, ok := sim.RandomActive(); ok {
		sim.startStore(start, NewStoreRequest(entry.Keyword, entry.Documents, sim.params))
	}
	if sim.storesLeft > 0 {
		sim.ScheduleAfter(sim.cfg.Workload.StoreInterval, &StoreArrivalEvent{})
	}
}

func (sim *Simulator) nextGeneratedQuery() {
	if sim.queriesLeft <= 0 {
		return
	}
	sim.queriesLeft--
	keywords, repeated, ok := sim.generator.NextQuery(sim.cfg.Workload.KeywordsPerQuery)
	switch {
	case !ok:
		sim.metrics.QueriesSkipped++
	default:
		if repeated {
			sim.metrics.RepeatedQueries++
		}
		if start, ok := sim.RandomActive(); ok {
			sim.startQuery(start, keywords)
		}
	}
	if sim.queriesLeft > 0 {
		sim.ScheduleAfter(sim.cfg.Workload.QueryInterval, &QueryArrivalEvent{})
	}
}

func (sim *Simulator) nextGeneratedLookup() {
	if sim.lookupsLeft <= 0 {
		return
	}
	sim.lookupsLeft--
	start, ok := sim.RandomActive()
	if ok {
		target, _ := sim.RandomActive()
		sim.startLookup(start, target)
	}
	if sim.lookupsLeft > 0 {
		sim.ScheduleAfter(sim.cfg.Workload.LookupInterval, &LookupArrivalEvent{Generated: true})
	}
}

// churn fails and recovers random nodes. It stops rescheduling once nothing
// else is queued, since no further traffic could observe it.
func (sim *Simulator) churn() {
	ch := sim.cfg.Churn
	rng := sim.rng.ForSubsystem(SubsystemChurn)

	live := sim.liveNodes()
	for i := 0; i < ch.Down && len(live) > max(ch.MinActive, 1); i++ {
		j := rng.Intn(len(live))
		sim.setUp(live[j], false)
		live = slices.Delete(live, j, j+1)
	}

	var down []kad.NodeID
	for _, id := range sim.order {
		if !sim.up[id] {
			down = append(down, id)
		}
	}
	for i := 0; i < ch.Up && len(down) > 0; i++ {
		j := rng.Intn(len(down))
		sim.setUp(down[j], true)
		down = slices.Delete(down, j, j+1)
	}
	logrus.Debugf("[tick %07d] churn: %d live, %d down", sim.Clock, len(sim.liveNodes()), len(down))

	if sim.events.Len() > 0 {
		sim.ScheduleAfter(ch.Interval, &ChurnEvent{})
	}
}
