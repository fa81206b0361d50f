package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/kadsim/kadsim/sim/kad"
)

// EventType names an event kind for ordering and logging.
type EventType string

const (
	EventTypeChurn         EventType = "Churn"
	EventTypeNodeDown      EventType = "NodeDown"
	EventTypeNodeUp        EventType = "NodeUp"
	EventTypeDelivery      EventType = "Delivery"
	EventTypeProbeTimeout  EventType = "ProbeTimeout"
	EventTypePhaseTimeout  EventType = "PhaseTimeout"
	EventTypeStoreArrival  EventType = "StoreArrival"
	EventTypeQueryArrival  EventType = "QueryArrival"
	EventTypeLookupArrival EventType = "LookupArrival"
)

// EventTypePriority defines ordering for simultaneous events.
// Lower values are processed first: membership changes, then deliveries,
// then timeouts, then new traffic.
var EventTypePriority = map[EventType]int{
	EventTypeChurn:         0,
	EventTypeNodeDown:      1,
	EventTypeNodeUp:        1,
	EventTypeDelivery:      2,
	EventTypeProbeTimeout:  3,
	EventTypePhaseTimeout:  3,
	EventTypeStoreArrival:  4,
	EventTypeQueryArrival:  4,
	EventTypeLookupArrival: 4,
}

// Event is a scheduled action executed at a point in virtual time.
type Event interface {
	Timestamp() int64
	EventID() uint64
	Type() EventType
	Execute(*Simulator)

	stamp(at int64, id uint64)
}

// eventBase carries the scheduling fields set by Simulator.Schedule.
type eventBase struct {
	at int64
	id uint64
}

func (e *eventBase) Timestamp() int64 { return e.at }
func (e *eventBase) EventID() uint64  { return e.id }

func (e *eventBase) stamp(at int64, id uint64) {
	e.at = at
	e.id = id
}

// DeliveryEvent hands a message to its destination.
type DeliveryEvent struct {
	eventBase
	Msg *Message
}

func (e *DeliveryEvent) Type() EventType { return EventTypeDelivery }

// Execute drops the message if the destination went down in flight.
func (e *DeliveryEvent) Execute(sim *Simulator) {
	node, ok := sim.nodes[e.Msg.Dest]
	if !ok || !sim.IsUp(e.Msg.Dest) {
		sim.metrics.MessagesDropped++
		logrus.Debugf("[tick %07d] %s %s->%s dropped: destination down", sim.Clock, e.Msg.Type, e.Msg.Src, e.Msg.Dest)
		return
	}
	sim.metrics.MessagesDelivered++
	logrus.Tracef("[tick %07d] %s %s->%s op %d hop %d", sim.Clock, e.Msg.Type, e.Msg.Src, e.Msg.Dest, e.Msg.OperationID, e.Msg.Hops)
	node.HandleMessage(e.Msg)
}

// ProbeTimeoutEvent fires when a ROUTE probe may have gone unanswered.
type ProbeTimeoutEvent struct {
	eventBase
	Node        kad.NodeID
	OperationID uint64
	Target      kad.NodeID
}

func (e *ProbeTimeoutEvent) Type() EventType { return EventTypeProbeTimeout }

func (e *ProbeTimeoutEvent) Execute(sim *Simulator) {
	if node, ok := sim.nodes[e.Node]; ok && sim.IsUp(e.Node) {
		node.handleProbeTimeout(e.OperationID, e.Target)
	}
}

// PhaseTimeoutEvent bounds how long a store or value phase waits for replies.
// Round distinguishes successive waits of one phase so a stale timer is ignored.
type PhaseTimeoutEvent struct {
	eventBase
	Node        kad.NodeID
	OperationID uint64
	Phase       kad.Phase
	Round       int
}

func (e *PhaseTimeoutEvent) Type() EventType { return EventTypePhaseTimeout }

func (e *PhaseTimeoutEvent) Execute(sim *Simulator) {
	if node, ok := sim.nodes[e.Node]; ok && sim.IsUp(e.Node) {
		node.handlePhaseTimeout(e.OperationID, e.Phase, e.Round)
	}
}

// NodeDownEvent takes a node offline. Messages addressed to it are dropped until it comes back.
type NodeDownEvent struct {
	eventBase
	Node kad.NodeID
}

func (e *NodeDownEvent) Type() EventType { return EventTypeNodeDown }

func (e *NodeDownEvent) Execute(sim *Simulator) {
	sim.setUp(e.Node, false)
}

// NodeUpEvent brings a node back with the state it had when it went down.
type NodeUpEvent struct {
	eventBase
	Node kad.NodeID
}

func (e *NodeUpEvent) Type() EventType { return EventTypeNodeUp }

func (e *NodeUpEvent) Execute(sim *Simulator) {
	sim.setUp(e.Node, true)
}

// StoreArrivalEvent starts a store at Start. With a nil Request it draws the
// next dataset entry from the workload generator and reschedules itself.
type StoreArrivalEvent struct {
	eventBase
	Start   kad.NodeID
	Request *StoreRequest
}

func (e *StoreArrivalEvent) Type() EventType { return EventTypeStoreArrival }

func (e *StoreArrivalEvent) Execute(sim *Simulator) {
	if e.Request != nil {
		sim.startStore(e.Start, *e.Request)
		return
	}
	sim.nextGeneratedStore()
}

// QueryArrivalEvent starts a keyword query at Start. With no Keywords it
// draws the next query from the workload generator and reschedules itself.
type QueryArrivalEvent struct {
	eventBase
	Start    kad.NodeID
	Keywords []string
}

func (e *QueryArrivalEvent) Type() EventType { return EventTypeQueryArrival }

func (e *QueryArrivalEvent) Execute(sim *Simulator) {
	if len(e.Keywords) > 0 {
		sim.startQuery(e.Start, e.Keywords)
		return
	}
	sim.nextGeneratedQuery()
}

// LookupArrivalEvent starts a node lookup. With Generated set it picks a
// random start and target and reschedules itself.
type LookupArrivalEvent struct {
	eventBase
	Start     kad.NodeID
	Target    kad.NodeID
	Generated bool
}

func (e *LookupArrivalEvent) Type() EventType { return EventTypeLookupArrival }

func (e *LookupArrivalEvent) Execute(sim *Simulator) {
	if !e.Generated {
		sim.startLookup(e.Start, e.Target)
		return
	}
	sim.nextGeneratedLookup()
}

// ChurnEvent fails and recovers random nodes, then reschedules itself.
type ChurnEvent struct {
	eventBase
}

func (e *ChurnEvent) Type() EventType { return EventTypeChurn }

func (e *ChurnEvent) Execute(sim *Simulator) {
	sim.churn()
}
