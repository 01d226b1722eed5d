package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestToWebSocketURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://example.com/realtime", "ws://example.com/realtime"},
		{"https://example.com/realtime", "wss://example.com/realtime"},
		{"ws://example.com/realtime", "ws://example.com/realtime"},
		{"wss://example.com/realtime?x=1", "wss://example.com/realtime?x=1"},
	}
	for _, tc := range cases {
		got, err := toWebSocketURL(tc.in)
		if err != nil {
			t.Fatalf("toWebSocketURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("toWebSocketURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if _, err := toWebSocketURL("ftp://example.com"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestWebSocketClient_ReceivesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// A malformed frame and a binary frame must both be skipped.
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		payload, _ := json.Marshal(Event{Type: EventTimerTick, ID: "tick-1", Data: map[string]any{"seconds": 60}})
		conn.WriteMessage(websocket.TextMessage, payload)
		// Hold the socket open until the client walks away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewWebSocketClient(nil, ClientOptions{})
	states := make(chan Event, 16)
	events := make(chan Event, 16)
	client.Subscribe(EventConnectionState, func(ev Event) { states <- ev })
	client.Subscribe(EventTimerTick, func(ev Event) { events <- ev })

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	if err := client.Connect(context.Background(), wsURL); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	select {
	case ev := <-events:
		if ev.ID != "tick-1" {
			t.Fatalf("event = %+v", ev)
		}
		data, ok := ev.Data.(map[string]any)
		if !ok || data["seconds"] != float64(60) {
			t.Fatalf("payload = %#v", ev.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for timer:tick over websocket")
	}
}
