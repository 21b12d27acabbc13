// Package metrics provides Prometheus instrumentation for the connection
// manager. It is the connection-manager's repurposing of the teacher's
// internal/metrics/metrics.go: the same global-collector-plus-init()
// registration shape and promhttp.Handler() exposure, swapped from chat
// counters (connections/messages/chats) to connection-lifecycle ones
// (current FSM state, connect attempts, suspend activations, ping latency).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whisper/realtime-conn/internal/connmgr"
)

var (
	// CurrentState is 1 for the connection manager's active ConnectionState
	// and 0 for every other label value, following the kube-state-metrics
	// "gauge per enum value" convention for exposing an FSM in Prometheus.
	CurrentState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtconn_current_state",
		Help: "1 for the connection manager's current state, 0 otherwise",
	}, []string{"state"})

	// ConnectAttemptsTotal counts every attempt to (re)establish a transport,
	// including automatic retries.
	ConnectAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtconn_connect_attempts_total",
		Help: "Total number of connect attempts, including retries",
	})

	// SuspendActivationsTotal counts suspend-timer expirations.
	SuspendActivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtconn_suspend_activations_total",
		Help: "Total number of times the suspend timer forced SUSPENDED",
	})

	// PingLatencySeconds records round-trip heartbeat latency.
	PingLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rtconn_ping_latency_seconds",
		Help:    "Round-trip heartbeat latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// StateTransitionsTotal counts transitions, labeled by the resulting
	// state, for dashboards that want rates rather than gauge snapshots.
	StateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtconn_state_transitions_total",
		Help: "Total number of transitions into each state",
	}, []string{"state"})
)

var allStates = []connmgr.ConnectionState{
	connmgr.StateInitialized,
	connmgr.StateConnecting,
	connmgr.StateConnected,
	connmgr.StateDisconnected,
	connmgr.StateClosing,
	connmgr.StateClosed,
	connmgr.StateFailed,
	connmgr.StateSuspended,
}

func init() {
	prometheus.MustRegister(
		CurrentState,
		ConnectAttemptsTotal,
		SuspendActivationsTotal,
		PingLatencySeconds,
		StateTransitionsTotal,
	)
	for _, s := range allStates {
		CurrentState.WithLabelValues(string(s)).Set(0)
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder implements connmgr.MetricsRecorder against the package-level
// collectors above. Constructed with NewRecorder and injected via
// connmgr.Options.Metrics, mirroring the teacher's constructor-injection
// style (NewNATSClient, NewStore) rather than a global recorder singleton.
type Recorder struct{}

// NewRecorder returns a ready-to-use Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordStateChange updates the current-state gauge and the per-state
// transition counter.
func (r *Recorder) RecordStateChange(c connmgr.ConnectionStateChange) {
	if c.Previous != c.Current {
		CurrentState.WithLabelValues(string(c.Previous)).Set(0)
	}
	CurrentState.WithLabelValues(string(c.Current)).Set(1)
	StateTransitionsTotal.WithLabelValues(string(c.Current)).Inc()
}

// RecordPingLatency observes a measured round-trip heartbeat latency.
func (r *Recorder) RecordPingLatency(d time.Duration) {
	PingLatencySeconds.Observe(d.Seconds())
}

// RecordSuspend counts a suspend-timer activation.
func (r *Recorder) RecordSuspend() {
	SuspendActivationsTotal.Inc()
}

// RecordConnectAttempt counts a connect attempt (including retries).
func (r *Recorder) RecordConnectAttempt() {
	ConnectAttemptsTotal.Inc()
}
