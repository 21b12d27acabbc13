package rtconn

import (
	"context"
	"testing"

	"github.com/whisper/realtime-conn/internal/probe"
)

func TestDefaultOptionsFillsFSMTimings(t *testing.T) {
	opts := DefaultOptions()
	if opts.RealtimeRequestTimeout <= 0 {
		t.Error("expected a positive RealtimeRequestTimeout")
	}
	if opts.ConnectionStateTTL <= 0 {
		t.Error("expected a positive ConnectionStateTTL")
	}
	if opts.ProbeURL == "" {
		t.Error("expected a default ProbeURL")
	}
	if opts.ResumeTTL <= 0 {
		t.Error("expected a default ResumeTTL")
	}
}

func TestNewWithoutRedisOrNATSConstructsIdleConnection(t *testing.T) {
	opts := DefaultOptions()
	opts.ClientID = "test-client"
	opts.URL = "ws://127.0.0.1:0/does-not-matter"

	conn := New(opts)
	defer conn.Shutdown()

	if got := conn.State(); got != StateInitialized {
		t.Fatalf("expected freshly constructed connection to be INITIALIZED, got %s", got)
	}
	if conn.ErrorReason() != nil {
		t.Fatalf("expected no error reason before any connect attempt, got %v", conn.ErrorReason())
	}
}

func TestRateLimitedProberFallsBackToCheckerWithoutRedis(t *testing.T) {
	p := &rateLimitedProber{
		checker:  probe.NewChecker("http://127.0.0.1:0/unreachable"),
		limiter:  nil, // no Redis configured: Allow must fail open
		clientID: "client-y",
	}
	// With a nil limiter the gate always allows, so the result is whatever
	// checker.Check reports — here, false, since nothing is listening.
	if p.Check(context.Background()) {
		t.Fatal("expected Check to report false against an unreachable URL")
	}
}

func TestBuildStateObserverIsSafeWithNoPlugins(t *testing.T) {
	observe := buildStateObserver("client-x", nil, nil, nil)
	observe(ConnectionStateChange{
		Previous: StateConnecting,
		Current:  StateConnected,
		Event:    StateConnected.AsEvent(),
	})
	observe(ConnectionStateChange{
		Previous: StateConnected,
		Current:  StateSuspended,
		Event:    StateSuspended.AsEvent(),
	})
}
