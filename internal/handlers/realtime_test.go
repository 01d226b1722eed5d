package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/realtime"
	"github.com/firmdesk/firmdesk-backend/internal/realtime/bus"
	"github.com/firmdesk/firmdesk-backend/internal/requestdata"
	"github.com/firmdesk/firmdesk-backend/internal/services"
)

func newTestRealtime(t *testing.T) (*services.RealtimeService, *RealtimeHandler) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	svc := services.NewRealtimeService(log, bus.NewLocalBus(log), realtime.NewServerEventEmitter(log), realtime.NewEventLog(100))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("RealtimeService.Start: %v", err)
	}
	return svc, NewRealtimeHandler(log, svc)
}

func asTenant(tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{
			TenantID: tenantID,
			UserID:   uuid.New(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(tenantID string, h *RealtimeHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", asTenant(tenantID))
	group.GET("/realtime", h.Stream)
	group.POST("/realtime/emit", h.Emit)
	return r
}

func TestRealtimeHandler_PollReturnsRecentEvents(t *testing.T) {
	svc, h := newTestRealtime(t)
	r := newTestRouter("tenant-a", h)

	svc.Emit(context.Background(), "tenant-a", realtime.Event{Type: realtime.EventActivityNew, Data: "a", Timestamp: 100})
	svc.Emit(context.Background(), "tenant-a", realtime.Event{Type: realtime.EventTaskUpdated, Data: "b", Timestamp: 200})
	svc.Emit(context.Background(), "tenant-b", realtime.Event{Type: realtime.EventActivityNew, Data: "other tenant"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/realtime?poll=1", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var events []realtime.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("poll response is not a JSON array: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("poll returned %d events, want 2 (tenant isolation)", len(events))
	}
	if events[0].Type != realtime.EventActivityNew || events[1].Type != realtime.EventTaskUpdated {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRealtimeHandler_PollSinceFilters(t *testing.T) {
	svc, h := newTestRealtime(t)
	r := newTestRouter("tenant-a", h)

	svc.Emit(context.Background(), "tenant-a", realtime.Event{Type: realtime.EventActivityNew, Timestamp: 100})
	svc.Emit(context.Background(), "tenant-a", realtime.Event{Type: realtime.EventTaskUpdated, Timestamp: 200})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/realtime?poll=1&since=100", nil))

	var events []realtime.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].Type != realtime.EventTaskUpdated {
		t.Fatalf("since filter returned %+v", events)
	}
}

func TestRealtimeHandler_PollRejectsBadSince(t *testing.T) {
	_, h := newTestRealtime(t)
	r := newTestRouter("tenant-a", h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/realtime?poll=1&since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRealtimeHandler_StreamRequiresTenant(t *testing.T) {
	_, h := newTestRealtime(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/realtime", h.Stream)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/realtime", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRealtimeHandler_StreamDeliversSSEFrames(t *testing.T) {
	svc, h := newTestRealtime(t)
	r := newTestRouter("tenant-a", h)

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/realtime", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q", got)
	}

	// Wait until the handler registered its subscriber, then emit.
	deadline := time.Now().Add(2 * time.Second)
	for svc.Emitter().SubscriberCount("tenant-a") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	svc.Emit(context.Background(), "tenant-a", realtime.Event{
		Type: realtime.EventActivityNew,
		ID:   "ev-9",
		Data: map[string]any{"message": "invoice sent"},
	})

	reader := bufio.NewReader(resp.Body)
	var frame []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v (got %v)", err, frame)
		}
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, ":") {
			continue
		}
		if line == "" {
			if len(frame) > 0 {
				break
			}
			continue
		}
		frame = append(frame, line)
	}

	if frame[0] != "id: ev-9" {
		t.Fatalf("frame = %v, want id line first", frame)
	}
	if frame[1] != "event: activity:new" {
		t.Fatalf("frame = %v", frame)
	}
	if !strings.HasPrefix(frame[2], "data: ") || !strings.Contains(frame[2], "invoice sent") {
		t.Fatalf("frame = %v", frame)
	}
}

func TestRealtimeHandler_EmitAcceptsAndFansOut(t *testing.T) {
	svc, h := newTestRealtime(t)
	r := newTestRouter("tenant-a", h)

	got := make(chan realtime.Event, 1)
	svc.Emitter().Subscribe("tenant-a", func(ev realtime.Event) { got <- ev })

	body := bytes.NewBufferString(`{"type":"task:updated","data":{"task_id":"t-1"},"id":"emit-1"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/realtime/emit", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	select {
	case ev := <-got:
		if ev.Type != realtime.EventTaskUpdated || ev.ID != "emit-1" {
			t.Fatalf("delivered event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("emitted event never reached the tenant subscriber")
	}
}

func TestRealtimeHandler_EmitRejectsBadRequests(t *testing.T) {
	_, h := newTestRealtime(t)
	r := newTestRouter("tenant-a", h)

	cases := []struct {
		name string
		body string
	}{
		{"missing type", `{"data":{}}`},
		{"reserved ping", `{"type":"ping"}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/realtime/emit", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}
