package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
)

// WebSocketClient is the alternate transport behind the same Client
// contract. It exists so consuming code never has to care whether events
// arrive over a unidirectional stream or a socket; reconnect, heartbeat and
// polling behavior are identical to the SSE transport.
//
// Frames are JSON text messages shaped like the full event object:
// {"type": ..., "data": ..., "timestamp": ..., "id": ...}.
type WebSocketClient struct {
	*baseClient
}

var _ Client = (*WebSocketClient)(nil)

func NewWebSocketClient(log *logger.Logger, opts ClientOptions) *WebSocketClient {
	client := &WebSocketClient{}
	client.baseClient = newBaseClient(log, opts, client.dialWS, "WebSocketClient")
	return client
}

func (c *WebSocketClient) dialWS(ctx context.Context, rawURL string, opts ClientOptions) (messageStream, error) {
	wsURL, err := toWebSocketURL(rawURL)
	if err != nil {
		return nil, err
	}
	var header http.Header
	if opts.AuthToken != "" {
		header = http.Header{"Authorization": []string{"Bearer " + opts.AuthToken}}
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsStream{conn: conn, log: c.baseClient.log}, nil
}

func toWebSocketURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("realtime: unsupported websocket scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

type wsStream struct {
	conn *websocket.Conn
	log  *logger.Logger
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	ID   string          `json:"id"`
}

// ReadMessage skips malformed frames rather than failing the connection; a
// bad producer message must not cost the client its stream.
func (s *wsStream) ReadMessage() (message, error) {
	for {
		kind, raw, err := s.conn.ReadMessage()
		if err != nil {
			return message{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		var envelope wsEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Type == "" {
			if s.log != nil {
				s.log.Warn("dropping malformed websocket frame", "error", err)
			}
			continue
		}
		return message{Type: envelope.Type, ID: envelope.ID, Data: envelope.Data}, nil
	}
}

func (s *wsStream) Close() error {
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}
