package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/realtime"
)

// tailevents connects to a firmdesk realtime stream and prints every event it
// receives. Useful for watching a tenant's stream during development:
//
//	tailevents -url http://localhost:8080/realtime -token <jwt> -types activity:new,notification:new
func main() {
	url := flag.String("url", "http://localhost:8080/realtime", "realtime stream URL")
	token := flag.String("token", "", "session token (falls back to FIRMDESK_TOKEN)")
	types := flag.String("types", "", "comma-separated event types to print (default: all app events)")
	flag.Parse()

	authToken := *token
	if authToken == "" {
		authToken = os.Getenv("FIRMDESK_TOKEN")
	}
	if authToken == "" {
		fmt.Fprintln(os.Stderr, "missing -token (or FIRMDESK_TOKEN)")
		os.Exit(1)
	}

	log, err := logger.New("development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	client := realtime.NewSSEClient(log, realtime.ClientOptions{AuthToken: authToken})

	print := func(ev realtime.Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			payload = []byte(fmt.Sprintf("%v", ev.Data))
		}
		fmt.Printf("%d %-24s %s\n", ev.Timestamp, ev.Type, payload)
	}

	subscribed := []string{
		realtime.EventActivityNew,
		realtime.EventNotificationNew,
		realtime.EventTaskUpdated,
		realtime.EventTimerTick,
		realtime.EventInvoiceStatus,
	}
	if *types != "" {
		subscribed = strings.Split(*types, ",")
	}
	for _, t := range subscribed {
		client.Subscribe(strings.TrimSpace(t), print)
	}
	client.Subscribe(realtime.EventConnectionState, func(ev realtime.Event) {
		fmt.Fprintf(os.Stderr, "-- connection: %v\n", ev.Data)
	})
	client.Subscribe(realtime.EventPollingStarted, func(ev realtime.Event) {
		fmt.Fprintln(os.Stderr, "-- polling fallback active")
	})
	client.Subscribe(realtime.EventPollingStopped, func(ev realtime.Event) {
		fmt.Fprintln(os.Stderr, "-- polling fallback stopped")
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx, *url); err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	<-ctx.Done()
}
