package realtime

import "time"

// Domain event types pushed to practice dashboards. Names are part of the
// wire contract with the web client; renaming one is a breaking change.
const (
	EventActivityNew     = "activity:new"
	EventNotificationNew = "notification:new"
	EventTaskUpdated     = "task:updated"
	EventTimerTick       = "timer:tick"
	EventInvoiceStatus   = "invoice:status"
)

// Transport lifecycle event types. These flow through the same subscription
// manager as domain events so UI code can react to connectivity changes
// without polling client state.
const (
	EventConnectionState = "connection:state"
	EventPollingStarted  = "polling:started"
	EventPollingStopped  = "polling:stopped"

	// EventPing is reserved for heartbeats; it resets staleness detection and
	// is never forwarded to subscribers.
	EventPing = "ping"
)

// Event is the unit of realtime delivery. Timestamp is unix milliseconds,
// stamped once at emission when zero and never mutated afterwards. ID is an
// opaque caller-supplied deduplication token.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	ID        string `json:"id,omitempty"`
}

// Handler receives events synchronously on the emitting goroutine. Handlers
// must be short and non-blocking; slow work belongs on their own goroutine.
type Handler func(Event)

func stamp(ev Event) Event {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	return ev
}
