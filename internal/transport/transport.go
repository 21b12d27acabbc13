// Package transport owns a single WebSocket session to the realtime
// endpoint (spec.md §4.4). It is the client-side counterpart of the
// teacher's internal/ws/connection.go + internal/ws/server.go: the
// write-mutex-guarded send and the callback-injection pattern
// (onMessage/onDisconnect) are kept, generalized from "server accepts many
// connections" to "client dials exactly one".
//
// The teacher dials/accepts with gobwas/ws, which is tuned for a
// high-throughput epoll-based *server* accepting many sockets. A single
// outbound client connection has no use for that zero-copy upgrade path, so
// this package uses gorilla/websocket instead (the library every
// client-dialing example in the pack reaches for).
package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whisper/realtime-conn/internal/events"
	"github.com/whisper/realtime-conn/internal/protocol"
)

// EventName identifies a transport lifecycle event, emitted on Events().
type EventName string

const (
	EventConnected    EventName = "connected"
	EventFailed       EventName = "failed"
	EventDisconnected EventName = "disconnected"
)

// Event is the payload delivered alongside a lifecycle EventName.
type Event struct {
	Name  EventName
	Err   error
	Frame *protocol.Message // the CONNECTED frame for EventConnected, or the fatal ERROR frame for an EventFailed it caused; nil otherwise
}

// Config configures a single Transport instance.
type Config struct {
	URL          string
	HandshakeTimeout time.Duration
	Header           map[string][]string
}

// Transport owns one WebSocket session. It is created fresh for every
// connection attempt and disposed before a replacement is created — the
// connection manager never reuses a Transport (spec.md §3 invariant).
type Transport struct {
	cfg    Config
	events *events.Emitter[Event]

	onProtocolMessage func(*protocol.Message)

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	disposed  bool
	writeMu   sync.Mutex

	readDone chan struct{}
}

// New creates a Transport against cfg. onProtocolMessage is invoked from the
// transport's read loop for every inbound frame except CONNECTED frames and
// fatal ERROR frames, which are delivered as EventConnected and EventFailed
// instead (spec.md §4.4).
func New(cfg Config, onProtocolMessage func(*protocol.Message)) *Transport {
	return &Transport{
		cfg:               cfg,
		events:            events.NewEmitter[Event](),
		onProtocolMessage: onProtocolMessage,
		readDone:          make(chan struct{}),
	}
}

// Events returns the emitter callers subscribe to for connected/failed/
// disconnected notifications.
func (t *Transport) Events() *events.Emitter[Event] {
	return t.events
}

// Connect dials the endpoint and starts the background read loop. It emits
// EventConnected on protocol-level CONNECTED receipt, or EventFailed on
// handshake/protocol failure. Connect returns once the dial itself succeeds
// or fails; the CONNECTED/failed signal arrives asynchronously via Events().
func (t *Transport) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, t.cfg.Header)
	if err != nil {
		t.events.Emit(string(EventFailed), Event{Name: EventFailed, Err: fmt.Errorf("transport: dial failed: %w", err)})
		return fmt.Errorf("transport: dial failed: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop()
	return nil
}

func (t *Transport) readLoop() {
	defer close(t.readDone)

	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			disposed := t.disposed
			t.connected = false
			t.mu.Unlock()
			if disposed {
				return
			}
			t.events.Emit(string(EventDisconnected), Event{Name: EventDisconnected, Err: fmt.Errorf("transport: read failed: %w", err)})
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			log.Printf("transport: dropping malformed frame: %v", err)
			continue
		}

		switch msg.Action {
		case protocol.ActionConnected:
			t.mu.Lock()
			t.connected = true
			t.mu.Unlock()
			t.events.Emit(string(EventConnected), Event{Name: EventConnected, Frame: msg})
		case protocol.ActionError:
			if msg.Error != nil && !msg.Error.Nonfatal {
				t.events.Emit(string(EventFailed), Event{Name: EventFailed, Err: fmt.Errorf("transport: server error: %s", msg.Error.Message), Frame: msg})
			} else if t.onProtocolMessage != nil {
				t.onProtocolMessage(msg)
			}
		default:
			if t.onProtocolMessage != nil {
				t.onProtocolMessage(msg)
			}
		}
	}
}

// Send enqueues msg for transmission. It fails if the socket is not open.
func (t *Transport) Send(msg *protocol.Message) error {
	t.mu.Lock()
	conn := t.conn
	disposed := t.disposed
	t.mu.Unlock()

	if disposed || conn == nil {
		return fmt.Errorf("transport: send called on a closed transport")
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: send failed: %w", err)
	}
	return nil
}

// Close sends a protocol CLOSE and waits for the read loop to end (the
// socket dropping), bounded by ctx. A CLOSED echo is forwarded to
// onProtocolMessage like any other frame and does not by itself end the wait.
func (t *Transport) Close(ctx context.Context) error {
	if err := t.Send(protocol.NewClose()); err != nil {
		return err
	}

	select {
	case <-t.readDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose idempotently tears down the socket and guarantees no further
// events are emitted.
func (t *Transport) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	conn := t.conn
	t.connected = false
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// IsConnected reports whether a CONNECTED frame has been received and no
// termination has happened since.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}
