package realtime

import (
	"sync"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
)

// ServerEventEmitter fans domain events out to every live subscriber
// connection of one tenant. An event emitted to tenant A can never reach a
// callback registered for tenant B; the tenant map is the isolation boundary.
//
// Single-process and in-memory. Multi-instance deployments put the redis bus
// in front (internal/realtime/bus) and keep this contract unchanged.
type ServerEventEmitter struct {
	mu          sync.RWMutex
	log         *logger.Logger
	nextID      int
	subscribers map[string]map[int]Handler
}

func NewServerEventEmitter(log *logger.Logger) *ServerEventEmitter {
	if log != nil {
		log = log.With("component", "ServerEventEmitter")
	}
	return &ServerEventEmitter{
		log:         log,
		subscribers: make(map[string]map[int]Handler),
	}
}

// Subscribe registers h for tenantID and returns an idempotent cleanup
// closure. When the last subscriber of a tenant unsubscribes the tenant
// entry is deleted immediately; ActiveTenants never reports an empty set.
func (e *ServerEventEmitter) Subscribe(tenantID string, h Handler) func() {
	if tenantID == "" || h == nil {
		return func() {}
	}
	e.mu.Lock()
	set, ok := e.subscribers[tenantID]
	if !ok {
		set = make(map[int]Handler)
		e.subscribers[tenantID] = set
	}
	id := e.nextID
	e.nextID++
	set[id] = h
	e.mu.Unlock()

	if e.log != nil {
		e.log.Debug("realtime subscriber added", "tenant_id", tenantID)
	}

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		set, ok := e.subscribers[tenantID]
		if !ok {
			return
		}
		delete(set, id)
		if len(set) == 0 {
			delete(e.subscribers, tenantID)
		}
	}
}

// Emit stamps ev's timestamp when unset and delivers it to every subscriber
// of tenantID. A tenant with no subscribers is a normal condition, not an
// error. A panicking subscriber is recovered and logged with tenant context;
// the remaining subscribers still receive the event.
func (e *ServerEventEmitter) Emit(tenantID string, ev Event) {
	e.mu.RLock()
	set, ok := e.subscribers[tenantID]
	if !ok {
		e.mu.RUnlock()
		return
	}
	callbacks := make([]Handler, 0, len(set))
	for _, h := range set {
		callbacks = append(callbacks, h)
	}
	e.mu.RUnlock()

	ev = stamp(ev)
	for _, h := range callbacks {
		e.deliver(tenantID, h, ev)
	}
}

func (e *ServerEventEmitter) deliver(tenantID string, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log.Error("realtime subscriber panicked",
				"tenant_id", tenantID,
				"event_type", ev.Type,
				"panic", r,
			)
		}
	}()
	h(ev)
}

func (e *ServerEventEmitter) SubscriberCount(tenantID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[tenantID])
}

func (e *ServerEventEmitter) TotalSubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := 0
	for _, set := range e.subscribers {
		total += len(set)
	}
	return total
}

func (e *ServerEventEmitter) ActiveTenants() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tenants := make([]string, 0, len(e.subscribers))
	for tenantID := range e.subscribers {
		tenants = append(tenants, tenantID)
	}
	return tenants
}

func (e *ServerEventEmitter) ClearTenant(tenantID string) {
	e.mu.Lock()
	delete(e.subscribers, tenantID)
	e.mu.Unlock()
}

func (e *ServerEventEmitter) ClearAll() {
	e.mu.Lock()
	e.subscribers = make(map[string]map[int]Handler)
	e.mu.Unlock()
}
