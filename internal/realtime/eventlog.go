package realtime

import "sync"

const defaultEventLogCapacity = 100

// EventLog keeps a bounded per-tenant window of recently emitted events so
// the polling endpoint can answer "what did I miss" without touching the
// durable store. Entries are evicted oldest-first per tenant.
type EventLog struct {
	mu       sync.RWMutex
	capacity int
	events   map[string][]Event
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultEventLogCapacity
	}
	return &EventLog{
		capacity: capacity,
		events:   make(map[string][]Event),
	}
}

func (l *EventLog) Append(tenantID string, ev Event) {
	if tenantID == "" {
		return
	}
	ev = stamp(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	window := append(l.events[tenantID], ev)
	if overflow := len(window) - l.capacity; overflow > 0 {
		window = append([]Event(nil), window[overflow:]...)
	}
	l.events[tenantID] = window
}

// Recent returns the tenant's buffered events with timestamps strictly
// greater than since; since 0 returns the whole window.
func (l *EventLog) Recent(tenantID string, since int64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	window := l.events[tenantID]
	out := make([]Event, 0, len(window))
	for _, ev := range window {
		if ev.Timestamp > since {
			out = append(out, ev)
		}
	}
	return out
}

func (l *EventLog) Size(tenantID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events[tenantID])
}

func (l *EventLog) ClearTenant(tenantID string) {
	l.mu.Lock()
	delete(l.events, tenantID)
	l.mu.Unlock()
}
