package bus

import (
	"context"
	"sync"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
)

// localBus is the single-process Bus: Publish loops straight back into the
// registered forwarder on the calling goroutine. It is the default when no
// redis address is configured and the implementation the tests run against.
type localBus struct {
	log *logger.Logger

	mu    sync.RWMutex
	onMsg func(env Envelope)
}

func NewLocalBus(log *logger.Logger) Bus {
	if log != nil {
		log = log.With("component", "LocalBus")
	}
	return &localBus{log: log}
}

func (b *localBus) Publish(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	onMsg := b.onMsg
	b.mu.RUnlock()
	if onMsg == nil {
		if b.log != nil {
			b.log.Debug("local bus publish before forwarder start; dropping", "event_type", env.Event.Type)
		}
		return nil
	}
	onMsg(env)
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(env Envelope)) error {
	b.mu.Lock()
	b.onMsg = onMsg
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	b.onMsg = nil
	b.mu.Unlock()
	return nil
}
