package realtime

import (
	"context"
	"net/http"
	"time"
)

// ConnectionState is the single finite-state variable of a client instance.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateReconnecting ConnectionState = "reconnecting"
	StateFailed       ConnectionState = "failed"
)

// StateChange is the payload of connection:state events.
type StateChange struct {
	Previous ConnectionState `json:"previous"`
	Current  ConnectionState `json:"current"`
}

// ConnectionStats is a read-only telemetry snapshot, mutated only by the
// client's internal state machine.
type ConnectionStats struct {
	State             ConnectionState
	ReconnectAttempts int
	LastConnected     time.Time
	LastDisconnected  time.Time
	LastHeartbeat     time.Time
	Polling           bool
}

// Client is the stable boundary between UI/application code and the
// underlying transport. SSE and websocket implementations are provided;
// consumers must not depend on either concrete type.
//
// Nothing here surfaces transport failures as errors on the hot path:
// failures are reported through State/Stats and connection:state events.
type Client interface {
	// Connect opens the transport toward url. ctx bounds the lifetime of the
	// connection and everything spawned for it (retries, polling). The only
	// errors returned are usage errors; transport failures surface as state
	// transitions.
	Connect(ctx context.Context, url string) error
	Disconnect()
	Subscribe(eventType string, h Handler) func()
	Unsubscribe(eventType string)
	State() ConnectionState
	Stats() ConnectionStats
	// Reconnect forces a fresh connection attempt, resetting the attempt
	// counter. It is the only way out of the failed state.
	Reconnect()
	IsConnected() bool
	SetPollingFallback(enabled bool)
}

const (
	defaultMaxReconnectAttempts = 3
	defaultReconnectDelay       = 1 * time.Second
	defaultMaxReconnectDelay    = 30 * time.Second
	defaultHeartbeatTimeout     = 60 * time.Second
	defaultPollingInterval      = 30 * time.Second
)

// ClientOptions configures a transport client. The zero value is usable:
// every field falls back to the documented default, and polling fallback is
// on unless explicitly disabled.
type ClientOptions struct {
	MaxReconnectAttempts   int
	ReconnectDelay         time.Duration
	MaxReconnectDelay      time.Duration
	HeartbeatTimeout       time.Duration
	DisablePollingFallback bool
	PollingInterval        time.Duration

	// AuthToken, when set, is attached as a bearer header to the stream dial
	// and to polling requests.
	AuthToken string

	HTTPClient *http.Client
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = defaultReconnectDelay
	}
	if o.MaxReconnectDelay <= 0 {
		o.MaxReconnectDelay = defaultMaxReconnectDelay
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if o.PollingInterval <= 0 {
		o.PollingInterval = defaultPollingInterval
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	return o
}
