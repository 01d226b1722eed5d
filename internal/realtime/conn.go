package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
)

// message is one decoded frame off a transport stream.
type message struct {
	Type string
	ID   string
	Data []byte
}

// messageStream is a live transport connection. ReadMessage blocks until the
// next frame or a terminal error; Close unblocks a pending read.
type messageStream interface {
	ReadMessage() (message, error)
	Close() error
}

type dialFunc func(ctx context.Context, rawURL string, opts ClientOptions) (messageStream, error)

// baseClient is the reconnection state machine shared by the SSE and
// websocket transports. Invariants: at most one retry timer pending at any
// moment, and every timer/goroutine callback is epoch-guarded so that once
// Disconnect returns nothing stale can act on the client.
type baseClient struct {
	log  *logger.Logger
	opts ClientOptions
	subs *SubscriptionManager
	dial dialFunc

	mu               sync.Mutex
	url              string
	baseCtx          context.Context
	state            ConnectionState
	attempts         int
	lastConnected    time.Time
	lastDisconnected time.Time
	lastHeartbeat    time.Time
	polling          bool

	// epoch invalidates callbacks from a previous connection generation.
	epoch        int
	streamCancel context.CancelFunc
	retryTimer   *time.Timer
	watchdog     *time.Timer
	pollCancel   context.CancelFunc
	retry        *backoff.ExponentialBackOff

	// Lifecycle events queued under the mutex, dispatched after release so a
	// subscriber can call back into the client without deadlocking.
	pending []Event
}

func newBaseClient(log *logger.Logger, opts ClientOptions, dial dialFunc, transportName string) *baseClient {
	opts = opts.withDefaults()
	if log != nil {
		log = log.With("component", transportName)
	}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = opts.ReconnectDelay
	retry.MaxInterval = opts.MaxReconnectDelay
	retry.Multiplier = 2
	// Strict doubling capped at MaxReconnectDelay, no jitter.
	retry.RandomizationFactor = 0
	retry.Reset()

	return &baseClient{
		log:   log,
		opts:  opts,
		subs:  NewSubscriptionManager(log),
		dial:  dial,
		state: StateDisconnected,
		retry: retry,
	}
}

func (c *baseClient) Connect(ctx context.Context, rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("realtime: connect requires a stream URL")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	c.cleanupLocked()
	c.baseCtx = ctx
	c.url = rawURL
	c.attempts = 0
	c.retry.Reset()
	c.queueStateLocked(StateConnecting)
	c.startStreamLocked()
	events := c.drainLocked()
	c.mu.Unlock()

	c.flush(events)
	return nil
}

func (c *baseClient) Disconnect() {
	c.mu.Lock()
	c.cleanupLocked()
	c.queueStateLocked(StateDisconnected)
	events := c.drainLocked()
	c.mu.Unlock()

	c.flush(events)
}

// Reconnect discards the current connection state, resets the attempt
// counter and retries immediately. It is the only way out of failed.
func (c *baseClient) Reconnect() {
	c.mu.Lock()
	if c.url == "" {
		c.mu.Unlock()
		if c.log != nil {
			c.log.Warn("reconnect requested before connect; ignoring")
		}
		return
	}
	c.cleanupLocked()
	c.attempts = 0
	c.retry.Reset()
	c.queueStateLocked(StateReconnecting)
	c.startStreamLocked()
	events := c.drainLocked()
	c.mu.Unlock()

	c.flush(events)
}

func (c *baseClient) Subscribe(eventType string, h Handler) func() {
	return c.subs.Subscribe(eventType, h)
}

func (c *baseClient) Unsubscribe(eventType string) {
	c.subs.Unsubscribe(eventType)
}

func (c *baseClient) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *baseClient) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *baseClient) Stats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionStats{
		State:             c.state,
		ReconnectAttempts: c.attempts,
		LastConnected:     c.lastConnected,
		LastDisconnected:  c.lastDisconnected,
		LastHeartbeat:     c.lastHeartbeat,
		Polling:           c.polling,
	}
}

func (c *baseClient) SetPollingFallback(enabled bool) {
	c.mu.Lock()
	c.opts.DisablePollingFallback = !enabled
	if !enabled {
		c.stopPollingLocked()
	} else if c.state == StateFailed {
		c.startPollingLocked()
	}
	events := c.drainLocked()
	c.mu.Unlock()

	c.flush(events)
}

// ---- stream lifecycle ----

func (c *baseClient) startStreamLocked() {
	c.epoch++
	epoch := c.epoch
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.streamCancel = cancel
	go c.runStream(ctx, epoch, c.url)
}

func (c *baseClient) runStream(ctx context.Context, epoch int, rawURL string) {
	stream, err := c.dial(ctx, rawURL, c.opts)
	if err != nil {
		if ctx.Err() == nil {
			c.transportError(epoch, err)
		}
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-done:
		}
	}()
	defer stream.Close()

	c.onOpen(epoch)

	for {
		msg, readErr := stream.ReadMessage()
		if readErr != nil {
			if ctx.Err() == nil {
				c.transportError(epoch, readErr)
			}
			return
		}
		c.handleMessage(epoch, msg)
	}
}

func (c *baseClient) onOpen(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	c.retry.Reset()
	c.lastConnected = time.Now()
	c.queueStateLocked(StateConnected)
	c.resetWatchdogLocked()
	events := c.drainLocked()
	c.mu.Unlock()

	if c.log != nil {
		c.log.Info("realtime stream connected")
	}
	c.flush(events)
}

func (c *baseClient) handleMessage(epoch int, m message) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.lastHeartbeat = time.Now()
	c.resetWatchdogLocked()
	c.mu.Unlock()

	if m.Type == EventPing {
		return
	}

	var payload any
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &payload); err != nil {
			if c.log != nil {
				c.log.Warn("dropping malformed realtime payload", "event_type", m.Type, "error", err)
			}
			return
		}
	}

	c.subs.Emit(Event{
		Type:      m.Type,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
		ID:        m.ID,
	})
}

func (c *baseClient) transportError(epoch int, err error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	if c.log != nil {
		c.log.Warn("realtime stream error", "error", err, "attempts", c.attempts)
	}
	c.failLocked()
	events := c.drainLocked()
	c.mu.Unlock()

	c.flush(events)
}

// failLocked runs the shared error path for transport errors and heartbeat
// expiry: close the stream, then either schedule the single retry timer or
// enter failed (+ polling fallback).
func (c *baseClient) failLocked() {
	c.lastDisconnected = time.Now()
	c.stopStreamLocked()
	c.stopWatchdogLocked()

	if c.attempts < c.opts.MaxReconnectAttempts {
		c.attempts++
		c.queueStateLocked(StateReconnecting)
		delay := c.retry.NextBackOff()
		epoch := c.epoch
		c.retryTimer = time.AfterFunc(delay, func() { c.retryFire(epoch) })
		if c.log != nil {
			c.log.Debug("scheduling realtime reconnect", "attempt", c.attempts, "delay", delay.String())
		}
		return
	}

	c.queueStateLocked(StateFailed)
	if c.log != nil {
		c.log.Warn("realtime reconnect attempts exhausted", "attempts", c.attempts)
	}
	if !c.opts.DisablePollingFallback {
		c.startPollingLocked()
	}
}

func (c *baseClient) retryFire(epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state != StateReconnecting {
		return
	}
	c.startStreamLocked()
}

func (c *baseClient) stopStreamLocked() {
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
	c.epoch++
}

func (c *baseClient) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *baseClient) cleanupLocked() {
	c.stopStreamLocked()
	c.stopRetryLocked()
	c.stopWatchdogLocked()
	c.stopPollingLocked()
}

// ---- heartbeat watchdog ----

func (c *baseClient) resetWatchdogLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
	epoch := c.epoch
	c.watchdog = time.AfterFunc(c.opts.HeartbeatTimeout, func() { c.watchdogFire(epoch) })
}

func (c *baseClient) stopWatchdogLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *baseClient) watchdogFire(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if c.log != nil {
		c.log.Warn("no heartbeat within timeout, treating stream as dead",
			"heartbeat_timeout", c.opts.HeartbeatTimeout.String())
	}
	c.failLocked()
	events := c.drainLocked()
	c.mu.Unlock()

	c.flush(events)
}

// ---- polling fallback ----

func (c *baseClient) startPollingLocked() {
	if c.polling || c.baseCtx == nil {
		return
	}
	c.polling = true
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.pollCancel = cancel
	c.queueLocked(Event{Type: EventPollingStarted})
	go c.runPolling(ctx, c.url)
}

func (c *baseClient) stopPollingLocked() {
	if !c.polling {
		return
	}
	c.polling = false
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.queueLocked(Event{Type: EventPollingStopped})
}

func (c *baseClient) runPolling(ctx context.Context, rawURL string) {
	if c.log != nil {
		c.log.Info("realtime polling fallback active", "interval", c.opts.PollingInterval.String())
	}
	c.pollOnce(ctx, rawURL)

	ticker := time.NewTicker(c.opts.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx, rawURL)
		}
	}
}

// pollOnce fetches missed events over plain request/response. Failures are
// logged and the loop continues on the next interval; polling never
// escalates its own backoff.
func (c *baseClient) pollOnce(ctx context.Context, rawURL string) {
	pollURL := rawURL
	if strings.Contains(pollURL, "?") {
		pollURL += "&poll=1"
	} else {
		pollURL += "?poll=1"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		if c.log != nil {
			c.log.Warn("polling request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.AuthToken)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() == nil && c.log != nil {
			c.log.Warn("polling request failed", "error", err)
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		if c.log != nil {
			c.log.Warn("polling request rejected", "status", resp.Status)
		}
		return
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		if c.log != nil {
			c.log.Warn("polling response decode failed", "error", err)
		}
		return
	}

	for _, ev := range events {
		if ev.Type == "" || ev.Type == EventPing {
			continue
		}
		c.subs.Emit(stamp(ev))
	}
}

// ---- queued lifecycle events ----

func (c *baseClient) queueLocked(ev Event) {
	c.pending = append(c.pending, stamp(ev))
}

func (c *baseClient) queueStateLocked(next ConnectionState) {
	if c.state == next {
		return
	}
	prev := c.state
	c.state = next
	if c.log != nil {
		c.log.Debug("connection state changed", "previous", string(prev), "current", string(next))
	}
	c.queueLocked(Event{
		Type: EventConnectionState,
		Data: StateChange{Previous: prev, Current: next},
	})
}

func (c *baseClient) drainLocked() []Event {
	events := c.pending
	c.pending = nil
	return events
}

func (c *baseClient) flush(events []Event) {
	for _, ev := range events {
		c.subs.Emit(ev)
	}
}
