package bus

import (
	"context"

	"github.com/firmdesk/firmdesk-backend/internal/realtime"
)

// Envelope wraps one event with the tenant it belongs to for transit across
// the process boundary. Tenant scoping must survive the broker hop intact.
type Envelope struct {
	TenantID string         `json:"tenant_id"`
	Event    realtime.Event `json:"event"`
}

// Bus is the fan-out seam between the emitting process and whatever carries
// events to the process holding the subscriber connections. The in-memory
// implementation loops back locally; the redis implementation lets multiple
// server instances share one logical event stream without changing the
// ServerEventEmitter contract.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	StartForwarder(ctx context.Context, onMsg func(env Envelope)) error
	Close() error
}
