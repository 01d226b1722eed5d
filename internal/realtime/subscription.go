package realtime

import (
	"sync"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
)

// SubscriptionManager is a type-keyed fan-out registry with no tenant or
// transport knowledge. Both client transports use one internally and the
// same structure serves anywhere untenanted dispatch is needed.
//
// Go funcs are not comparable, so callbacks are tracked by id; the closure
// returned from Subscribe removes exactly the callback it registered.
type SubscriptionManager struct {
	mu       sync.RWMutex
	log      *logger.Logger
	nextID   int
	handlers map[string]map[int]Handler
}

func NewSubscriptionManager(log *logger.Logger) *SubscriptionManager {
	if log != nil {
		log = log.With("component", "SubscriptionManager")
	}
	return &SubscriptionManager{
		log:      log,
		handlers: make(map[string]map[int]Handler),
	}
}

// Subscribe registers h under eventType and returns an idempotent
// unsubscribe closure. A second call to the closure is a no-op.
func (m *SubscriptionManager) Subscribe(eventType string, h Handler) func() {
	if h == nil {
		return func() {}
	}
	m.mu.Lock()
	set, ok := m.handlers[eventType]
	if !ok {
		set = make(map[int]Handler)
		m.handlers[eventType] = set
	}
	id := m.nextID
	m.nextID++
	set[id] = h
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		set, ok := m.handlers[eventType]
		if !ok {
			return
		}
		delete(set, id)
		if len(set) == 0 {
			delete(m.handlers, eventType)
		}
	}
}

// Unsubscribe removes every callback registered for eventType. Individual
// callbacks are removed through the closure Subscribe returned.
func (m *SubscriptionManager) Unsubscribe(eventType string) {
	m.mu.Lock()
	delete(m.handlers, eventType)
	m.mu.Unlock()
}

// Emit dispatches ev to every callback registered for ev.Type, synchronously
// and in registration-set order. Zero callbacks is a normal no-op. A
// panicking callback is recovered and logged so siblings still run.
func (m *SubscriptionManager) Emit(ev Event) {
	m.mu.RLock()
	set, ok := m.handlers[ev.Type]
	if !ok {
		m.mu.RUnlock()
		return
	}
	callbacks := make([]Handler, 0, len(set))
	for _, h := range set {
		callbacks = append(callbacks, h)
	}
	m.mu.RUnlock()

	for _, h := range callbacks {
		m.invoke(h, ev)
	}
}

func (m *SubscriptionManager) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil && m.log != nil {
			m.log.Error("realtime subscriber panicked", "event_type", ev.Type, "panic", r)
		}
	}()
	h(ev)
}

func (m *SubscriptionManager) Clear() {
	m.mu.Lock()
	m.handlers = make(map[string]map[int]Handler)
	m.mu.Unlock()
}

func (m *SubscriptionManager) SubscriptionCount(eventType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[eventType])
}

func (m *SubscriptionManager) ActiveEventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]string, 0, len(m.handlers))
	for t := range m.handlers {
		types = append(types, t)
	}
	return types
}
