package sim

import "testing"

func stamped(ev Event, at int64, id uint64) Event {
	ev.stamp(at, id)
	return ev
}

// TestEventHeap_TimestampOrdering tests that events are processed in timestamp order
func TestEventHeap_TimestampOrdering(t *testing.T) {
	h := NewEventHeap()
	h.Schedule(stamped(&DeliveryEvent{}, 100, 1))
	h.Schedule(stamped(&DeliveryEvent{}, 50, 2))
	h.Schedule(stamped(&DeliveryEvent{}, 150, 3))

	for _, want := range []int64{50, 100, 150} {
		if got := h.PopNext().Timestamp(); got != want {
			t.Errorf("timestamp = %d, want %d", got, want)
		}
	}
	if h.Len() != 0 {
		t.Errorf("Heap should be empty, len = %d", h.Len())
	}
	if h.PopNext() != nil || h.Peek() != nil {
		t.Errorf("empty heap should return nil")
	}
}

// TestEventHeap_TypePriorityOrdering tests same-timestamp events use type priority
func TestEventHeap_TypePriorityOrdering(t *testing.T) {
	h := NewEventHeap()
	// Scheduled in reverse priority order.
	h.Schedule(stamped(&QueryArrivalEvent{}, 100, 1))
	h.Schedule(stamped(&ProbeTimeoutEvent{}, 100, 2))
	h.Schedule(stamped(&DeliveryEvent{}, 100, 3))
	h.Schedule(stamped(&NodeDownEvent{}, 100, 4))
	h.Schedule(stamped(&ChurnEvent{}, 100, 5))

	want := []EventType{EventTypeChurn, EventTypeNodeDown, EventTypeDelivery, EventTypeProbeTimeout, EventTypeQueryArrival}
	for i, w := range want {
		if got := h.PopNext().Type(); got != w {
			t.Errorf("event %d type = %s, want %s", i, got, w)
		}
	}
}

// TestEventHeap_EventIDOrdering tests same-timestamp same-type events use EventID
func TestEventHeap_EventIDOrdering(t *testing.T) {
	h := NewEventHeap()
	h.Schedule(stamped(&DeliveryEvent{}, 100, 3))
	h.Schedule(stamped(&DeliveryEvent{}, 100, 1))
	h.Schedule(stamped(&DeliveryEvent{}, 100, 2))

	for _, want := range []uint64{1, 2, 3} {
		if got := h.PopNext().EventID(); got != want {
			t.Errorf("event id = %d, want %d", got, want)
		}
	}
}

func TestEventTypePriority_CoversEveryType(t *testing.T) {
	events := []Event{
		&ChurnEvent{}, &NodeDownEvent{}, &NodeUpEvent{}, &DeliveryEvent{},
		&ProbeTimeoutEvent{}, &PhaseTimeoutEvent{}, &StoreArrivalEvent{},
		&QueryArrivalEvent{}, &LookupArrivalEvent{},
	}
	for _, ev := range events {
		if _, ok := EventTypePriority[ev.Type()]; !ok {
			t.Errorf("no priority for %s", ev.Type())
		}
	}
}
