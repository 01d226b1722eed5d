package realtime

import "testing"

func TestSubscriptionManager_FanOutByType(t *testing.T) {
	m := NewSubscriptionManager(nil)

	var gotA, gotB []Event
	m.Subscribe("task:updated", func(ev Event) { gotA = append(gotA, ev) })
	m.Subscribe("task:updated", func(ev Event) { gotB = append(gotB, ev) })
	m.Subscribe("timer:tick", func(ev Event) { t.Fatal("timer:tick handler must not fire") })

	m.Emit(Event{Type: "task:updated", Data: "payload"})

	if len(gotA) != 1 || len(gotB) != 1 {
		t.Fatalf("expected both task:updated handlers to fire once, got %d and %d", len(gotA), len(gotB))
	}
	if gotA[0].Data != "payload" {
		t.Fatalf("unexpected payload: %v", gotA[0].Data)
	}
}

func TestSubscriptionManager_EmitWithoutSubscribersIsNoop(t *testing.T) {
	m := NewSubscriptionManager(nil)
	m.Emit(Event{Type: "task:updated"})
	if n := m.SubscriptionCount("task:updated"); n != 0 {
		t.Fatalf("expected zero subscriptions, got %d", n)
	}
}

func TestSubscriptionManager_UnsubscribeClosureIsIdempotent(t *testing.T) {
	m := NewSubscriptionManager(nil)

	calls := 0
	keep := 0
	unsub := m.Subscribe("task:updated", func(Event) { calls++ })
	m.Subscribe("task:updated", func(Event) { keep++ })

	unsub()
	unsub() // second call must not remove the sibling

	m.Emit(Event{Type: "task:updated"})
	if calls != 0 {
		t.Fatalf("removed handler fired %d times", calls)
	}
	if keep != 1 {
		t.Fatalf("surviving handler fired %d times, want 1", keep)
	}
}

func TestSubscriptionManager_EmptyTypeEntryRemoved(t *testing.T) {
	m := NewSubscriptionManager(nil)
	unsub := m.Subscribe("task:updated", func(Event) {})
	unsub()

	if types := m.ActiveEventTypes(); len(types) != 0 {
		t.Fatalf("expected no active event types after last unsubscribe, got %v", types)
	}
}

func TestSubscriptionManager_UnsubscribeByTypeClearsAll(t *testing.T) {
	m := NewSubscriptionManager(nil)
	m.Subscribe("task:updated", func(Event) { t.Fatal("should be unsubscribed") })
	m.Subscribe("task:updated", func(Event) { t.Fatal("should be unsubscribed") })

	m.Unsubscribe("task:updated")
	m.Emit(Event{Type: "task:updated"})

	if n := m.SubscriptionCount("task:updated"); n != 0 {
		t.Fatalf("expected zero subscriptions, got %d", n)
	}
}

func TestSubscriptionManager_PanickingHandlerDoesNotStopSiblings(t *testing.T) {
	m := NewSubscriptionManager(nil)

	delivered := 0
	m.Subscribe("task:updated", func(Event) { panic("boom") })
	m.Subscribe("task:updated", func(Event) { delivered++ })
	m.Subscribe("task:updated", func(Event) { delivered++ })

	m.Emit(Event{Type: "task:updated"})
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries despite panic, got %d", delivered)
	}
}

func TestSubscriptionManager_Clear(t *testing.T) {
	m := NewSubscriptionManager(nil)
	m.Subscribe("task:updated", func(Event) {})
	m.Subscribe("timer:tick", func(Event) {})

	m.Clear()
	if types := m.ActiveEventTypes(); len(types) != 0 {
		t.Fatalf("expected no event types after Clear, got %v", types)
	}
}
