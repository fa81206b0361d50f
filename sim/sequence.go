package sim

import "go.uber.org/atomic"

// Sequence hands out the identifiers of one simulation run. Each Simulator
// owns its own Sequence, so ids restart at 1 for every run and parallel tests
// never share counters.
type Sequence struct {
	operations atomic.Uint64
	messages   atomic.Uint64
	events     atomic.Uint64
}

// NewSequence creates a Sequence whose first id of every kind is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NextOperation returns a fresh FindOperation id.
func (s *Sequence) NextOperation() uint64 {
	return s.operations.Inc()
}

// NextMessage returns a fresh message id.
func (s *Sequence) NextMessage() uint64 {
	return s.messages.Inc()
}

// NextEvent returns a fresh event id used to break timestamp ties.
func (s *Sequence) NextEvent() uint64 {
	return s.events.Inc()
}

// Operations returns how many operation ids were issued.
func (s *Sequence) Operations() uint64 {
	return s.operations.Load()
}
