package kad

import "fmt"

// Phase is the lifecycle state of a FindOperation.
type Phase int

const (
	PhaseInitiated Phase = iota
	PhaseIterating
	PhaseConverged
	PhaseValue // FINDVALUE fan-out to the closest set
	PhaseStore // space negotiation and STORE fan-out
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseInitiated: "initiated",
	PhaseIterating: "iterating",
	PhaseConverged: "converged",
	PhaseValue:     "value",
	PhaseStore:     "store",
	PhaseDone:      "done",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// FindOperation is the iterative lookup state for one target.
//
// The closest set never exceeds K entries. The probe budget starts at Alpha,
// is spent by NextNeighbour and refunded by ElaborateResponse, and always stays
// within [0, Alpha]. The operation has converged when the whole budget is back
// and no unqueried member remains.
type FindOperation struct {
	ID     uint64
	Target NodeID

	params    Params
	phase     Phase
	available int
	closest   map[NodeID]bool // id -> queried
	inflight  map[NodeID]bool // probes sent and not yet answered or timed out
	pruned    map[NodeID]bool // ids removed after a timeout; never readmitted
}

// NewFindOperation creates an operation in PhaseInitiated with a full probe budget.
func NewFindOperation(id uint64, target NodeID, params Params) *FindOperation {
	return &FindOperation{
		ID:        id,
		Target:    target,
		params:    params,
		phase:     PhaseInitiated,
		available: params.Alpha,
		closest:   make(map[NodeID]bool, params.K),
		inflight:  make(map[NodeID]bool, params.Alpha),
		pruned:    make(map[NodeID]bool),
	}
}

// Phase returns the current lifecycle state.
func (op *FindOperation) Phase() Phase {
	return op.phase
}

// SetPhase moves the operation to p.
func (op *FindOperation) SetPhase(p Phase) {
	op.phase = p
}

// Resolved reports whether the operation reached PhaseDone.
func (op *FindOperation) Resolved() bool {
	return op.phase == PhaseDone
}

// AvailableRequests returns the remaining probe budget.
func (op *FindOperation) AvailableRequests() int {
	return op.available
}

// OutstandingFindRequests returns the number of probes awaiting an answer.
func (op *FindOperation) OutstandingFindRequests() int {
	return len(op.inflight)
}

// Seed folds the initiator's own neighbours into the closest set without touching the budget.
func (op *FindOperation) Seed(ids []NodeID) {
	for _, id := range ids {
		op.admit(id)
	}
	op.phase = PhaseIterating
}

// ElaborateResponse frees one probe slot and folds newly learned ids into the closest set.
//
// Below K members every new id is admitted. At K, the farthest of the current
// members and the new id is found; if that is a current member it is evicted in
// favour of the new id, otherwise the new id is dropped.
func (op *FindOperation) ElaborateResponse(ids []NodeID) {
	op.refund()
	for _, id := range ids {
		op.admit(id)
	}
}

// RestoreBudget refunds one probe slot without folding anything. Used when a
// response cannot be interpreted.
func (op *FindOperation) RestoreBudget() {
	op.refund()
}

func (op *FindOperation) refund() {
	if op.available < op.params.Alpha {
		op.available++
	}
}

func (op *FindOperation) admit(id NodeID) {
	if op.pruned[id] {
		return
	}
	if _, ok := op.closest[id]; ok {
		return
	}
	if len(op.closest) < op.params.K {
		op.closest[id] = false
		return
	}

	farthest := id
	maxDist := Distance(id, op.Target)
	for member := range op.closest {
		if d := Distance(member, op.Target); d > maxDist {
			maxDist = d
			farthest = member
		}
	}
	if farthest != id {
		delete(op.closest, farthest)
		op.closest[id] = false
	}
}

// NextNeighbour returns the unqueried member nearest to the target, marks it
// queried and spends one probe slot. Returns false when no unqueried member
// remains or the budget is exhausted.
func (op *FindOperation) NextNeighbour() (NodeID, bool) {
	if op.available <= 0 {
		return 0, false
	}
	var (
		best  NodeID
		found bool
	)
	for id, queried := range op.closest {
		if queried {
			continue
		}
		if !found || Distance(id, op.Target) < Distance(best, op.Target) {
			best = id
			found = true
		}
	}
	if !found {
		return 0, false
	}
	op.closest[best] = true
	op.inflight[best] = true
	op.available--
	return best, true
}

// Settle marks the probe sent to id as answered. Returns false if no probe to
// id was outstanding, in which case the answer must be ignored.
func (op *FindOperation) Settle(id NodeID) bool {
	if !op.inflight[id] {
		return false
	}
	delete(op.inflight, id)
	return true
}

// Prune removes id from the closest set permanently.
func (op *FindOperation) Prune(id NodeID) {
	delete(op.closest, id)
	delete(op.inflight, id)
	op.pruned[id] = true
}

// HasUnqueried reports whether any closest-set member is still unqueried.
func (op *FindOperation) HasUnqueried() bool {
	for _, queried := range op.closest {
		if !queried {
			return true
		}
	}
	return false
}

// Converged reports whether the full budget is back and nothing is left to probe.
func (op *FindOperation) Converged() bool {
	return op.available == op.params.Alpha && !op.HasUnqueried()
}

// Contains reports whether id is in the closest set.
func (op *FindOperation) Contains(id NodeID) bool {
	_, ok := op.closest[id]
	return ok
}

// Queried reports whether id is in the closest set and has been probed.
func (op *FindOperation) Queried(id NodeID) bool {
	return op.closest[id]
}

// Len returns the closest-set size.
func (op *FindOperation) Len() int {
	return len(op.closest)
}

// ClosestSet returns the members ascending by distance to the target.
func (op *FindOperation) ClosestSet() []NodeID {
	ids := make([]NodeID, 0, len(op.closest))
	for id := range op.closest {
		ids = append(ids, id)
	}
	SortByDistance(ids, op.Target)
	return ids
}
