package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/whisper/realtime-conn/internal/connmgr"
)

func TestRecordStateChangeUpdatesGaugeAndCounter(t *testing.T) {
	r := NewRecorder()
	transitionsBefore := testutil.ToFloat64(StateTransitionsTotal.WithLabelValues(string(connmgr.StateConnected)))
	r.RecordStateChange(connmgr.ConnectionStateChange{
		Previous: connmgr.StateConnecting,
		Current:  connmgr.StateConnected,
		Event:    connmgr.ConnectionEvent(connmgr.StateConnected),
	})

	if got := testutil.ToFloat64(StateTransitionsTotal.WithLabelValues(string(connmgr.StateConnected))); got != transitionsBefore+1 {
		t.Fatalf("expected CONNECTED transition counter to increment by 1, got %v -> %v", transitionsBefore, got)
	}

	if got := testutil.ToFloat64(CurrentState.WithLabelValues(string(connmgr.StateConnected))); got != 1 {
		t.Fatalf("expected CONNECTED gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(CurrentState.WithLabelValues(string(connmgr.StateConnecting))); got != 0 {
		t.Fatalf("expected CONNECTING gauge 0, got %v", got)
	}
}

func TestRecordPingLatencyObserves(t *testing.T) {
	r := NewRecorder()
	before := testutil.CollectAndCount(PingLatencySeconds)
	r.RecordPingLatency(25 * time.Millisecond)
	after := testutil.CollectAndCount(PingLatencySeconds)
	if after != before+1 {
		t.Fatalf("expected histogram sample count to increment by 1, got %d -> %d", before, after)
	}
}

func TestRecordSuspendAndConnectAttemptIncrement(t *testing.T) {
	r := NewRecorder()
	before := testutil.ToFloat64(SuspendActivationsTotal)
	r.RecordSuspend()
	after := testutil.ToFloat64(SuspendActivationsTotal)
	if after != before+1 {
		t.Fatalf("expected SuspendActivationsTotal to increment by 1, got %v -> %v", before, after)
	}

	beforeAttempts := testutil.ToFloat64(ConnectAttemptsTotal)
	r.RecordConnectAttempt()
	afterAttempts := testutil.ToFloat64(ConnectAttemptsTotal)
	if afterAttempts != beforeAttempts+1 {
		t.Fatalf("expected ConnectAttemptsTotal to increment by 1, got %v -> %v", beforeAttempts, afterAttempts)
	}
}
