package realtime

import (
	"fmt"
	"sort"
	"testing"
	"time"
)

func TestServerEventEmitter_TenantIsolation(t *testing.T) {
	e := NewServerEventEmitter(nil)

	var gotA []Event
	e.Subscribe("tenant-a", func(ev Event) { gotA = append(gotA, ev) })
	e.Subscribe("tenant-b", func(Event) { t.Fatal("tenant-b subscriber must not see tenant-a events") })

	e.Emit("tenant-a", Event{Type: EventActivityNew, Data: "hello"})

	if len(gotA) != 1 {
		t.Fatalf("expected 1 delivery to tenant-a, got %d", len(gotA))
	}
}

func TestServerEventEmitter_EmitToUnknownTenantIsNoop(t *testing.T) {
	e := NewServerEventEmitter(nil)
	e.Emit("nobody-home", Event{Type: EventActivityNew})
	if n := e.TotalSubscriberCount(); n != 0 {
		t.Fatalf("expected zero subscribers, got %d", n)
	}
}

func TestServerEventEmitter_TimestampStampedOnceAtEmit(t *testing.T) {
	e := NewServerEventEmitter(nil)

	var got Event
	e.Subscribe("tenant-a", func(ev Event) { got = ev })

	before := time.Now().UnixMilli()
	e.Emit("tenant-a", Event{Type: EventActivityNew})
	after := time.Now().UnixMilli()

	if got.Timestamp < before || got.Timestamp > after {
		t.Fatalf("timestamp %d not in [%d, %d]", got.Timestamp, before, after)
	}

	// A caller-supplied timestamp survives emission untouched.
	e.Emit("tenant-a", Event{Type: EventActivityNew, Timestamp: 42})
	if got.Timestamp != 42 {
		t.Fatalf("caller timestamp overwritten: %d", got.Timestamp)
	}
}

func TestServerEventEmitter_UnsubscribeRemovesEmptyTenantEntry(t *testing.T) {
	e := NewServerEventEmitter(nil)

	unsubA := e.Subscribe("tenant-a", func(Event) {})
	unsubB := e.Subscribe("tenant-a", func(Event) {})

	unsubA()
	if got := e.ActiveTenants(); len(got) != 1 || got[0] != "tenant-a" {
		t.Fatalf("tenant-a should still be active, got %v", got)
	}

	unsubB()
	unsubB() // idempotent
	if got := e.ActiveTenants(); len(got) != 0 {
		t.Fatalf("expected no active tenants after last unsubscribe, got %v", got)
	}
}

func TestServerEventEmitter_PanickingSubscriberIsIsolated(t *testing.T) {
	e := NewServerEventEmitter(nil)

	delivered := 0
	e.Subscribe("tenant-a", func(Event) { panic("bad dashboard") })
	e.Subscribe("tenant-a", func(Event) { delivered++ })

	e.Emit("tenant-a", Event{Type: EventActivityNew})
	if delivered != 1 {
		t.Fatalf("surviving subscriber fired %d times, want 1", delivered)
	}
}

func TestServerEventEmitter_ManySubscribersAcrossTenants(t *testing.T) {
	e := NewServerEventEmitter(nil)

	const tenants = 10
	const perTenant = 100
	counts := make(map[string]int)
	for i := 0; i < tenants; i++ {
		tenantID := fmt.Sprintf("tenant-%d", i)
		for j := 0; j < perTenant; j++ {
			e.Subscribe(tenantID, func(Event) { counts[tenantID]++ })
		}
	}

	if n := e.TotalSubscriberCount(); n != tenants*perTenant {
		t.Fatalf("TotalSubscriberCount = %d, want %d", n, tenants*perTenant)
	}
	if n := e.SubscriberCount("tenant-3"); n != perTenant {
		t.Fatalf("SubscriberCount(tenant-3) = %d, want %d", n, perTenant)
	}

	e.Emit("tenant-3", Event{Type: EventTimerTick})
	for tenantID, n := range counts {
		if tenantID == "tenant-3" {
			continue
		}
		if n != 0 {
			t.Fatalf("tenant %s received %d deliveries for a tenant-3 emit", tenantID, n)
		}
	}
	if counts["tenant-3"] != perTenant {
		t.Fatalf("tenant-3 deliveries = %d, want %d", counts["tenant-3"], perTenant)
	}

	got := e.ActiveTenants()
	sort.Strings(got)
	if len(got) != tenants {
		t.Fatalf("ActiveTenants = %v", got)
	}
}

func TestServerEventEmitter_ClearTenant(t *testing.T) {
	e := NewServerEventEmitter(nil)
	e.Subscribe("tenant-a", func(Event) { t.Fatal("cleared subscriber fired") })
	e.Subscribe("tenant-b", func(Event) {})

	e.ClearTenant("tenant-a")
	e.Emit("tenant-a", Event{Type: EventActivityNew})

	if n := e.SubscriberCount("tenant-b"); n != 1 {
		t.Fatalf("tenant-b subscribers = %d, want 1", n)
	}

	e.ClearAll()
	if n := e.TotalSubscriberCount(); n != 0 {
		t.Fatalf("subscribers remain after ClearAll: %d", n)
	}
}

func TestServerEventEmitter_EmptyTenantOrNilHandlerIgnored(t *testing.T) {
	e := NewServerEventEmitter(nil)
	unsub1 := e.Subscribe("", func(Event) {})
	unsub2 := e.Subscribe("tenant-a", nil)
	unsub1()
	unsub2()
	if n := e.TotalSubscriberCount(); n != 0 {
		t.Fatalf("expected zero subscribers, got %d", n)
	}
}
