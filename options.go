// Package rtconn is the public facade: connect to a realtime endpoint, watch
// its ConnectionState transitions, send ping frames, and close down cleanly.
// It wires internal/connmgr's state machine to a concrete internal/transport
// WebSocket, and optionally to internal/resume, internal/reconnectlimit, and
// internal/fanout for the Redis/NATS-backed cross-process concerns. This
// mirrors the teacher's ServerConfig/DefaultServerConfig() and
// NATSConfig/DefaultNATSConfig() shape: a plain options struct with a
// defaults constructor, mutated by the caller before construction.
package rtconn

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/realtime-conn/internal/connmgr"
	"github.com/whisper/realtime-conn/internal/fanout"
	"github.com/whisper/realtime-conn/internal/metrics"
	"github.com/whisper/realtime-conn/internal/probe"
	"github.com/whisper/realtime-conn/internal/reconnectlimit"
	"github.com/whisper/realtime-conn/internal/resume"
)

// Options configures a Connection. Zero value fields are filled from
// DefaultOptions by New.
type Options struct {
	// ClientID identifies this connection for resume caching, reconnect rate
	// limiting, and fanout subject scoping. Required.
	ClientID string

	// URL is the realtime WebSocket endpoint to dial.
	URL string

	// HandshakeTimeout bounds the WebSocket upgrade handshake.
	HandshakeTimeout time.Duration
	// Header is sent with the upgrade request, e.g. for auth tokens.
	Header http.Header

	AutoConnect              bool
	RealtimeRequestTimeout   time.Duration
	ConnectionStateTTL       time.Duration
	DisconnectedRetryTimeout time.Duration
	SuspendedRetryTimeout    time.Duration

	// ProbeURL overrides the default connectivity-check endpoint consulted
	// before a retry attempt. Empty uses probe.DefaultURL.
	ProbeURL string

	// Channels, if set, receives every inbound protocol frame whose Channel
	// field is non-empty (spec.md's channel/message dispatch boundary).
	Channels ChannelDispatcher

	// Metrics enables Prometheus instrumentation when true, using the
	// package-level collectors in internal/metrics.
	Metrics bool

	// RedisAddr, if non-empty, enables the resume-token cache and reconnect
	// rate limiter backed by this Redis instance.
	RedisAddr string
	ResumeTTL time.Duration

	// NATS, if its URL is non-empty, enables fanout of ConnectionStateChange
	// events to other processes.
	NATS fanout.Config
}

// DefaultOptions returns sensible production defaults, mirroring
// connmgr.DefaultOptions() for the FSM-timing fields.
func DefaultOptions() Options {
	def := connmgr.DefaultOptions()
	return Options{
		HandshakeTimeout:         10 * time.Second,
		AutoConnect:              def.AutoConnect,
		RealtimeRequestTimeout:   def.RealtimeRequestTimeout,
		ConnectionStateTTL:       def.ConnectionStateTTL,
		DisconnectedRetryTimeout: def.DisconnectedRetryTimeout,
		SuspendedRetryTimeout:    def.SuspendedRetryTimeout,
		ProbeURL:                 probe.DefaultURL,
		ResumeTTL:                resume.DefaultTTL,
	}
}

// buildRedisClient dials Redis if opts.RedisAddr is set, returning nil
// otherwise. A dial error is neither returned nor logged: it also yields nil,
// which leaves the Redis-backed plug-ins disabled, since every Redis-backed
// concern this module uses fails open.
func buildRedisClient(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	client, err := resume.NewClient(addr)
	if err != nil {
		return nil
	}
	return client
}

// metricsRecorder returns a connmgr.MetricsRecorder when enabled, or nil.
func metricsRecorder(enabled bool) connmgr.MetricsRecorder {
	if !enabled {
		return nil
	}
	return metrics.NewRecorder()
}

// reconnectLimiterFor returns a reconnectlimit.Limiter bound to client, or
// nil if no Redis client is configured.
func reconnectLimiterFor(client *redis.Client) *reconnectlimit.Limiter {
	if client == nil {
		return nil
	}
	return reconnectlimit.NewLimiter(client)
}
