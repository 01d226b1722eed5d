package services

import (
	"context"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/realtime"
	"github.com/firmdesk/firmdesk-backend/internal/realtime/bus"
)

// Emitter is what application code holds to push a realtime event to a
// tenant. Delivery is best-effort by design: the durable write has already
// happened when Emit is called, and a missed notification is recoverable by
// a client re-fetch.
type Emitter interface {
	Emit(ctx context.Context, tenantID string, ev realtime.Event)
}

// RealtimeService routes every emit through the bus and fans inbound bus
// traffic out to this instance's subscriber connections, recording it in the
// event log that backs the polling endpoint. With the local bus this is a
// synchronous loopback; with the redis bus the same path spans instances.
type RealtimeService struct {
	log      *logger.Logger
	bus      bus.Bus
	emitter  *realtime.ServerEventEmitter
	eventLog *realtime.EventLog
}

var _ Emitter = (*RealtimeService)(nil)

func NewRealtimeService(log *logger.Logger, b bus.Bus, emitter *realtime.ServerEventEmitter, eventLog *realtime.EventLog) *RealtimeService {
	return &RealtimeService{
		log:      log.With("service", "RealtimeService"),
		bus:      b,
		emitter:  emitter,
		eventLog: eventLog,
	}
}

// Start attaches the bus forwarder. Must be called before the first emit;
// ctx ends the forwarder on shutdown.
func (s *RealtimeService) Start(ctx context.Context) error {
	return s.bus.StartForwarder(ctx, func(env bus.Envelope) {
		s.eventLog.Append(env.TenantID, env.Event)
		s.emitter.Emit(env.TenantID, env.Event)
	})
}

func (s *RealtimeService) Emit(ctx context.Context, tenantID string, ev realtime.Event) {
	if tenantID == "" || ev.Type == "" {
		return
	}
	if err := s.bus.Publish(ctx, bus.Envelope{TenantID: tenantID, Event: ev}); err != nil {
		// Keep this instance's own dashboards alive even when the broker is
		// down; other instances miss the event, clients re-sync via polling.
		s.log.Warn("bus publish failed, delivering locally only", "tenant_id", tenantID, "event_type", ev.Type, "error", err)
		s.eventLog.Append(tenantID, ev)
		s.emitter.Emit(tenantID, ev)
	}
}

func (s *RealtimeService) Emitter() *realtime.ServerEventEmitter {
	return s.emitter
}

func (s *RealtimeService) EventLog() *realtime.EventLog {
	return s.eventLog
}
