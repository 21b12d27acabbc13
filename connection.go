package rtconn

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/realtime-conn/internal/connmgr"
	"github.com/whisper/realtime-conn/internal/events"
	"github.com/whisper/realtime-conn/internal/fanout"
	"github.com/whisper/realtime-conn/internal/probe"
	"github.com/whisper/realtime-conn/internal/protocol"
	"github.com/whisper/realtime-conn/internal/reconnectlimit"
	"github.com/whisper/realtime-conn/internal/resume"
	"github.com/whisper/realtime-conn/internal/transport"
)

// Connection is the public handle to a realtime connection: a thin wrapper
// over *connmgr.Manager that owns the concrete transport and the optional
// Redis/NATS-backed plug-ins, mirroring the teacher's pattern of a public
// type wrapping an internal one (ws.Server wraps its internal connection
// registry the same way).
type Connection struct {
	mgr *connmgr.Manager

	clientID    string
	redisClient *redis.Client
	resumeCache *resume.Cache
	publisher   *fanout.Publisher
}

// New builds a realtime connection per opts and never blocks for the
// handshake. With opts.AutoConnect set it starts a Connect in the
// background; otherwise nothing is dialed until an explicit Connect(ctx).
func New(opts Options) *Connection {
	def := DefaultOptions()
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if opts.RealtimeRequestTimeout <= 0 {
		opts.RealtimeRequestTimeout = def.RealtimeRequestTimeout
	}
	if opts.ConnectionStateTTL <= 0 {
		opts.ConnectionStateTTL = def.ConnectionStateTTL
	}
	if opts.DisconnectedRetryTimeout <= 0 {
		opts.DisconnectedRetryTimeout = def.DisconnectedRetryTimeout
	}
	if opts.SuspendedRetryTimeout <= 0 {
		opts.SuspendedRetryTimeout = def.SuspendedRetryTimeout
	}
	if opts.ProbeURL == "" {
		opts.ProbeURL = def.ProbeURL
	}
	if opts.ResumeTTL <= 0 {
		opts.ResumeTTL = def.ResumeTTL
	}

	redisClient := buildRedisClient(opts.RedisAddr)
	var resumeCache *resume.Cache
	var limiter *reconnectlimit.Limiter
	if redisClient != nil {
		resumeCache = resume.NewCache(redisClient, opts.ResumeTTL)
		limiter = reconnectLimiterFor(redisClient)
	}

	var publisher *fanout.Publisher
	if opts.NATS.URL != "" {
		p, err := fanout.NewPublisher(opts.NATS, opts.ClientID)
		if err != nil {
			log.Printf("rtconn: fanout disabled, nats connect failed: %v", err)
		} else {
			publisher = p
		}
	}

	newTransport := func(onProtocolMessage func(*protocol.Message)) connmgr.Transport {
		return transport.New(transport.Config{
			URL:              opts.URL,
			HandshakeTimeout: opts.HandshakeTimeout,
			Header:           opts.Header,
		}, onProtocolMessage)
	}

	mgrOpts := connmgr.Options{
		AutoConnect:              opts.AutoConnect,
		RealtimeRequestTimeout:   opts.RealtimeRequestTimeout,
		ConnectionStateTTL:       opts.ConnectionStateTTL,
		DisconnectedRetryTimeout: opts.DisconnectedRetryTimeout,
		SuspendedRetryTimeout:    opts.SuspendedRetryTimeout,
		NewTransport:             newTransport,
		Prober: &rateLimitedProber{
			checker:  probe.NewChecker(opts.ProbeURL),
			limiter:  limiter,
			clientID: opts.ClientID,
		},
		Channels:      opts.Channels,
		Metrics:       metricsRecorder(opts.Metrics),
		Logger:        log.Default(),
		StateObserver: buildStateObserver(opts.ClientID, resumeCache, limiter, publisher),
	}

	return &Connection{
		mgr:         connmgr.NewManager(mgrOpts),
		clientID:    opts.ClientID,
		redisClient: redisClient,
		resumeCache: resumeCache,
		publisher:   publisher,
	}
}

// buildStateObserver composes the optional resume/reconnectlimit/fanout side
// effects into the single connmgr.Options.StateObserver hook. The rate
// limiter's gating decision itself is wired separately, into Prober (see
// rateLimitedProber below), since it must actually block the retry path
// rather than run as an inert side effect after the state has already
// changed; here it is only reset on a successful CONNECTED so a prior burst
// of retries doesn't linger against a now-healthy client. Resume-detail
// population is driven from Connect instead (see below) since
// ConnectionStateChange itself carries no ConnectionDetails payload.
func buildStateObserver(clientID string, cache *resume.Cache, limiter *reconnectlimit.Limiter, publisher *fanout.Publisher) func(connmgr.ConnectionStateChange) {
	return func(c connmgr.ConnectionStateChange) {
		ctx := context.Background()

		switch c.Current {
		case connmgr.StateConnected:
			limiter.Reset(ctx, clientID, reconnectlimit.RuleReconnect)
		case connmgr.StateSuspended:
			cache.Clear(ctx, clientID)
		}

		publisher.Publish(c)
	}
}

// rateLimitedProber gates connmgr's connectivity probe behind a per-client
// reconnect-attempt rate limit (internal/reconnectlimit), so a connection
// stuck retrying forever cannot probe (and, on eventual success, redial) past
// reconnectlimit.RuleReconnect's window. A nil limiter (no Redis configured)
// always allows, deferring entirely to checker.
type rateLimitedProber struct {
	checker  *probe.Checker
	limiter  *reconnectlimit.Limiter
	clientID string
}

func (p *rateLimitedProber) Check(ctx context.Context) bool {
	allowed, _ := p.limiter.Allow(ctx, p.clientID, reconnectlimit.RuleReconnect)
	if !allowed {
		return false
	}
	return p.checker.Check(ctx)
}

// State returns the current ConnectionState.
func (c *Connection) State() connmgr.ConnectionState { return c.mgr.State() }

// ErrorReason returns the reason for the most recent state change, if any.
func (c *Connection) ErrorReason() *connmgr.ConnError { return c.mgr.ErrorReason() }

// Details returns the server-supplied ConnectionDetails from the current or
// most recent CONNECTED frame, if any.
func (c *Connection) Details() *protocol.ConnectionDetails { return c.mgr.Details() }

// Connect establishes the connection, blocking until CONNECTED or a
// terminal/cancelled outcome. On success it caches the server-supplied
// ConnectionDetails for a future resume hint.
func (c *Connection) Connect(ctx context.Context) error {
	err := c.mgr.Connect(ctx)
	if err == nil {
		c.resumeCache.Store(ctx, c.clientID, c.mgr.Details())
	}
	return err
}

// Close gracefully closes the connection, blocking until CLOSED or ctx
// expires.
func (c *Connection) Close(ctx context.Context) error {
	return c.mgr.Close(ctx)
}

// Ping sends a heartbeat and returns the measured round-trip latency.
func (c *Connection) Ping(ctx context.Context) (time.Duration, error) {
	return c.mgr.Ping(ctx)
}

// On subscribes handler to name ("connectionstate", "update", or a specific
// ConnectionState string). It returns a Handle usable with Off.
func (c *Connection) On(name string, handler func(connmgr.ConnectionStateChange)) events.Handle {
	return c.mgr.On(name, handler)
}

// Once is like On but removes the subscription after it fires once.
func (c *Connection) Once(name string, handler func(connmgr.ConnectionStateChange)) events.Handle {
	return c.mgr.Once(name, handler)
}

// Off removes a subscription previously returned by On or Once.
func (c *Connection) Off(h events.Handle) { c.mgr.Off(h) }

// Shutdown tears down the manager's background goroutine and any optional
// Redis/NATS plug-ins. It does not send a protocol CLOSE; call Close first
// for a graceful shutdown.
func (c *Connection) Shutdown() {
	c.mgr.Shutdown()
	c.publisher.Close()
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			log.Printf("rtconn: redis client close error: %v", err)
		}
	}
}
