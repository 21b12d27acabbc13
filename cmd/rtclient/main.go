// Command rtclient dials a realtime endpoint, prints every connection state
// transition, and periodically pings until interrupted. It is the client-side
// counterpart of the teacher's cmd/wsserver (flag-driven entry point wiring
// one package's public constructor together) and loadtest/cmd/loadtest
// (flag.String/flag.Duration option parsing).
//
// Usage:
//
//	rtclient -url ws://localhost:8080/ws [-redis localhost:6379] [-nats nats://localhost:4222]
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rtconn "github.com/whisper/realtime-conn"
	"github.com/whisper/realtime-conn/internal/metrics"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "realtime WebSocket endpoint")
	clientID := flag.String("client-id", "", "client identity for resume/rate-limit/fanout (defaults to hostname)")
	redisAddr := flag.String("redis", "", "Redis address for resume cache + reconnect rate limiting (empty disables both)")
	natsURL := flag.String("nats", "", "NATS URL for connection-state fanout (empty disables fanout)")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	pingEvery := flag.Duration("ping-interval", 15*time.Second, "heartbeat interval")
	flag.Parse()

	id := *clientID
	if id == "" {
		id, _ = os.Hostname()
		if id == "" {
			id = "rtclient"
		}
	}

	opts := rtconn.DefaultOptions()
	opts.ClientID = id
	opts.URL = *url
	opts.RedisAddr = *redisAddr
	if *natsURL != "" {
		opts.NATS.URL = *natsURL
		opts.NATS.ReconnectWait = 2 * time.Second
		opts.NATS.MaxReconnects = 60
	}
	opts.Metrics = *metricsAddr != ""

	log.Printf("rtclient starting")
	log.Printf("  url:          %s", opts.URL)
	log.Printf("  client_id:    %s", opts.ClientID)
	log.Printf("  redis_addr:   %s", opts.RedisAddr)
	log.Printf("  nats_url:     %s", opts.NATS.URL)
	log.Printf("  metrics_addr: %s", *metricsAddr)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	conn := rtconn.New(opts)
	conn.On("connectionstate", func(c rtconn.ConnectionStateChange) {
		if c.Reason != nil {
			log.Printf("[state] %s -> %s (event=%s reason=%v)", c.Previous, c.Current, c.Event, c.Reason)
			return
		}
		log.Printf("[state] %s -> %s (event=%s)", c.Previous, c.Current, c.Event)
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.RealtimeRequestTimeout)
	if err := conn.Connect(ctx); err != nil {
		cancel()
		log.Fatalf("connect failed: %v", err)
	}
	cancel()
	log.Printf("connected, details=%+v", conn.Details())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(context.Background(), opts.RealtimeRequestTimeout)
			rtt, err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				log.Printf("[ping] error: %v", err)
				continue
			}
			log.Printf("[ping] rtt=%s", rtt)

		case sig := <-sigCh:
			log.Printf("received signal %v, closing", sig)
			closeCtx, closeCancel := context.WithTimeout(context.Background(), opts.RealtimeRequestTimeout)
			if err := conn.Close(closeCtx); err != nil {
				log.Printf("close error: %v", err)
			}
			closeCancel()
			conn.Shutdown()
			return
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Printf("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server error: %v", err)
	}
}
