package sim

import "container/heap"

// eventBefore orders events by timestamp, then type priority, then event ID.
// Event IDs are unique per run, so the order is total.
func eventBefore(a, b Event) bool {
	if a.Timestamp() != b.Timestamp() {
		return a.Timestamp() < b.Timestamp()
	}
	if pa, pb := EventTypePriority[a.Type()], EventTypePriority[b.Type()]; pa != pb {
		return pa < pb
	}
	return a.EventID() < b.EventID()
}

// eventQueue is the heap.Interface adapter behind EventHeap.
type eventQueue []Event

func (q eventQueue) Len() int           { return len(q) }
func (q eventQueue) Less(i, j int) bool { return eventBefore(q[i], q[j]) }
func (q eventQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	last := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return last
}

// EventHeap is the pending-event queue of one simulation.
type EventHeap struct {
	queue eventQueue
}

// NewEventHeap creates an empty EventHeap.
func NewEventHeap() *EventHeap {
	return &EventHeap{}
}

// Len returns the number of pending events.
func (h *EventHeap) Len() int {
	return h.queue.Len()
}

// Schedule adds e. e must already carry its timestamp and ID.
func (h *EventHeap) Schedule(e Event) {
	heap.Push(&h.queue, e)
}

// PopNext removes and returns the earliest event, or nil when empty.
func (h *EventHeap) PopNext() Event {
	if h.queue.Len() == 0 {
		return nil
	}
	return heap.Pop(&h.queue).(Event)
}

// Peek returns the earliest event without removing it, or nil when empty.
func (h *EventHeap) Peek() Event {
	if h.queue.Len() == 0 {
		return nil
	}
	return h.queue[0]
}
