package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/realtime"
	"github.com/firmdesk/firmdesk-backend/internal/requestdata"
	"github.com/firmdesk/firmdesk-backend/internal/services"
)

const defaultPingInterval = 15 * time.Second

// RealtimeHandler owns the transport endpoints: the SSE stream (with its
// polling twin on the same URL) and the websocket stream. Each connection
// registers one subscriber callback on the tenant emitter and unregisters on
// disconnect, so ActiveTenants tracks live connections exactly.
type RealtimeHandler struct {
	log          *logger.Logger
	svc          *services.RealtimeService
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewRealtimeHandler(log *logger.Logger, svc *services.RealtimeService) *RealtimeHandler {
	return &RealtimeHandler{
		log:          log.With("handler", "RealtimeHandler"),
		svc:          svc,
		pingInterval: defaultPingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the CORS layer; the upgrade
			// itself accepts any origin the router let through.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream serves GET /realtime. With ?poll=1 it answers the polling fallback
// with a JSON array of recent events; otherwise it holds the connection open
// as an SSE stream with named events and a periodic ping.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if c.Query("poll") == "1" {
		h.servePoll(c, rd.TenantID)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	outbound := make(chan realtime.Event, 32)
	cleanup := h.svc.Emitter().Subscribe(rd.TenantID, func(ev realtime.Event) {
		select {
		case outbound <- ev:
		default:
			h.log.Warn("dropping realtime event; outbound buffer full", "tenant_id", rd.TenantID, "event_type", ev.Type)
		}
	})
	defer cleanup()

	h.log.Info("realtime stream open", "tenant_id", rd.TenantID, "user_id", rd.UserID.String())

	// Open the stream promptly so proxies and the browser commit to it.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(h.pingInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("realtime stream closed", "tenant_id", rd.TenantID, "err", ctx.Err())
			return
		case <-heartbeat.C:
			fmt.Fprint(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case ev := <-outbound:
			if err := writeSSEEvent(w, ev); err != nil {
				h.log.Warn("failed to write realtime event", "tenant_id", rd.TenantID, "error", err)
				continue
			}
			flusher.Flush()
		}
	}
}

func (h *RealtimeHandler) servePoll(c *gin.Context, tenantID string) {
	since := int64(0)
	if raw := c.Query("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		since = parsed
	}
	c.JSON(http.StatusOK, h.svc.EventLog().Recent(tenantID, since))
}

func writeSSEEvent(w io.Writer, ev realtime.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if ev.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}

// StreamWS serves GET /realtime/ws: the same tenant stream over a websocket,
// frames shaped as full event objects plus periodic ping frames.
func (h *RealtimeHandler) StreamWS(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "tenant_id", rd.TenantID, "error", err)
		return
	}
	defer conn.Close()

	outbound := make(chan realtime.Event, 32)
	cleanup := h.svc.Emitter().Subscribe(rd.TenantID, func(ev realtime.Event) {
		select {
		case outbound <- ev:
		default:
			h.log.Warn("dropping realtime event; outbound buffer full", "tenant_id", rd.TenantID, "event_type", ev.Type)
		}
	})
	defer cleanup()

	// The read side only detects disconnects; clients never send frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(h.pingInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-closed:
			return
		case <-heartbeat.C:
			if err := conn.WriteJSON(realtime.Event{Type: realtime.EventPing}); err != nil {
				return
			}
		case ev := <-outbound:
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug("websocket write failed, closing", "tenant_id", rd.TenantID, "error", err)
				return
			}
		}
	}
}

type emitRequest struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	ID   string `json:"id"`
}

// Emit serves POST /realtime/emit: application services in other processes
// push an event into the caller's tenant stream. Delivery is best-effort;
// the endpoint acknowledges acceptance, not fan-out.
func (h *RealtimeHandler) Emit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req emitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	if req.Type == realtime.EventPing {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reserved event type"})
		return
	}

	h.svc.Emit(c.Request.Context(), rd.TenantID, realtime.Event{
		Type: req.Type,
		Data: req.Data,
		ID:   req.ID,
	})
	c.JSON(http.StatusAccepted, gin.H{"message": "accepted"})
}
