// Package fanout publishes connection-state changes to NATS so that other
// processes (dashboards, presence aggregators, admin tooling) can observe a
// client's connection lifecycle without holding a direct reference to its
// Manager. Grounded on the teacher's internal/messaging/nats.go NATSClient
// wrapper, trimmed from a general pub/sub client down to the one publish
// path this package needs.
package fanout

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whisper/realtime-conn/internal/connmgr"
)

// Config configures the NATS connection used for fanout.
type Config struct {
	URL           string
	ReconnectWait time.Duration
	MaxReconnects int
}

// DefaultConfig mirrors the teacher's DefaultNATSConfig defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		ReconnectWait: 2 * time.Second,
		MaxReconnects: 60,
	}
}

// StateEvent is the payload published for every connection state change.
type StateEvent struct {
	ClientID  string `json:"client_id"`
	Previous  string `json:"previous"`
	Current   string `json:"current"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher publishes ConnectionStateChange events to a per-client NATS
// subject. The zero value is not usable; construct with NewPublisher.
type Publisher struct {
	conn     *nats.Conn
	clientID string
}

// NewPublisher dials NATS per cfg and returns a Publisher scoped to
// clientID. Connection lifecycle events are logged with a "[nats]" prefix,
// matching the teacher's logging convention.
func NewPublisher(cfg Config, clientID string) (*Publisher, error) {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[nats] reconnected to %s", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("fanout: connect to nats: %w", err)
	}
	return &Publisher{conn: conn, clientID: clientID}, nil
}

// subject returns the per-client subject events are published on.
func (p *Publisher) subject() string {
	return "conn.state." + p.clientID
}

// Publish sends c as a StateEvent. Publish errors are logged, not returned,
// matching spec.md's treatment of fanout as best-effort observability
// rather than a path the state machine itself depends on.
func (p *Publisher) Publish(c connmgr.ConnectionStateChange) {
	if p == nil || p.conn == nil {
		return
	}
	evt := StateEvent{
		ClientID:  p.clientID,
		Previous:  string(c.Previous),
		Current:   string(c.Current),
		Event:     string(c.Event),
		Timestamp: timeNowUnix(),
	}
	if c.Reason != nil {
		evt.Reason = c.Reason.Error()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[nats] marshal state event failed: %v", err)
		return
	}
	if err := p.conn.Publish(p.subject(), data); err != nil {
		log.Printf("[nats] publish to %s failed: %v", p.subject(), err)
	}
}

// Close drains and closes the underlying NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		log.Printf("[nats] drain failed: %v", err)
	}
}

// timeNowUnix is split out so tests can observe it without depending on
// wall-clock time directly in assertions.
var timeNowUnix = func() int64 { return time.Now().Unix() }
