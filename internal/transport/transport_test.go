package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whisper/realtime-conn/internal/protocol"
)

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade failed: %v", err)
			return
		}
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + httpURL[len("http"):]
}

func waitForEvent(t *testing.T, ch chan Event, want EventName) Event {
	t.Helper()
	select {
	case ev := <-ch:
		if ev.Name != want {
			t.Fatalf("expected event %s, got %s (err=%v)", want, ev.Name, ev.Err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event %s", want)
	}
	return Event{}
}

func subscribeAll(tr *Transport) chan Event {
	ch := make(chan Event, 8)
	fn := func(ev Event) { ch <- ev }
	tr.Events().On(string(EventConnected), fn)
	tr.Events().On(string(EventFailed), fn)
	tr.Events().On(string(EventDisconnected), fn)
	return ch
}

func TestConnectEmitsConnectedOnHandshakeFrame(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		data, _ := protocol.Encode(&protocol.Message{Action: protocol.ActionConnected,
			ConnectionDetails: &protocol.ConnectionDetails{ConnectionID: "conn-1"}})
		_ = conn.WriteMessage(websocket.TextMessage, data)
		time.Sleep(50 * time.Millisecond)
	})

	tr := New(Config{URL: wsURL(srv.URL)}, nil)
	events := subscribeAll(tr)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ev := waitForEvent(t, events, EventConnected)
	if ev.Frame == nil || ev.Frame.ConnectionDetails == nil || ev.Frame.ConnectionDetails.ConnectionID != "conn-1" {
		t.Fatalf("expected connection details in connected frame, got %+v", ev.Frame)
	}
	if !tr.IsConnected() {
		t.Fatal("expected IsConnected to be true after CONNECTED frame")
	}
}

func TestSendWritesFrameServerCanDecode(t *testing.T) {
	received := make(chan *protocol.Message, 1)
	srv := newTestServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			t.Errorf("server failed to decode: %v", err)
			return
		}
		received <- msg
	})

	tr := New(Config{URL: wsURL(srv.URL)}, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := tr.Send(protocol.NewHeartbeat("ping-1")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Action != protocol.ActionHeartbeat || msg.ID != "ping-1" {
			t.Fatalf("unexpected frame received by server: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive frame")
	}
}

func TestFailedEmittedOnFatalErrorFrame(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		data, _ := protocol.Encode(&protocol.Message{
			Action: protocol.ActionError,
			Error:  &protocol.ErrorInfo{Message: "boom", Code: 50000, Nonfatal: false},
		})
		_ = conn.WriteMessage(websocket.TextMessage, data)
		time.Sleep(50 * time.Millisecond)
	})

	tr := New(Config{URL: wsURL(srv.URL)}, nil)
	events := subscribeAll(tr)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ev := waitForEvent(t, events, EventFailed)
	if ev.Err == nil {
		t.Fatal("expected non-nil error on fatal error frame")
	}
}

func TestNonfatalErrorFrameForwardedNotFailed(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		data, _ := protocol.Encode(&protocol.Message{
			Action: protocol.ActionError,
			Error:  &protocol.ErrorInfo{Message: "transient", Code: 40140, Nonfatal: true},
		})
		_ = conn.WriteMessage(websocket.TextMessage, data)
		time.Sleep(50 * time.Millisecond)
	})

	forwarded := make(chan *protocol.Message, 1)
	tr := New(Config{URL: wsURL(srv.URL)}, func(msg *protocol.Message) { forwarded <- msg })
	events := subscribeAll(tr)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case msg := <-forwarded:
		if msg.Action != protocol.ActionError {
			t.Fatalf("expected forwarded ERROR frame, got %v", msg.Action)
		}
	case ev := <-events:
		t.Fatalf("did not expect lifecycle event for a nonfatal error, got %s", ev.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for nonfatal error frame to be forwarded")
	}
}

func TestDisconnectedEmittedWhenServerDropsSocket(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		_ = conn.Close()
	})

	tr := New(Config{URL: wsURL(srv.URL)}, nil)
	events := subscribeAll(tr)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitForEvent(t, events, EventDisconnected)
	if tr.IsConnected() {
		t.Fatal("expected IsConnected to be false after socket drop")
	}
}

func TestDisposeIsIdempotentAndSuppressesDisconnected(t *testing.T) {
	block := make(chan struct{})
	srv := newTestServer(t, func(conn *websocket.Conn) {
		<-block
		_ = conn.Close()
	})
	t.Cleanup(func() { close(block) })

	tr := New(Config{URL: wsURL(srv.URL)}, nil)
	events := subscribeAll(tr)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	tr.Dispose()
	tr.Dispose() // must not panic

	select {
	case ev := <-events:
		t.Fatalf("did not expect any lifecycle event after Dispose, got %s", ev.Name)
	case <-time.After(100 * time.Millisecond):
	}

	if tr.IsConnected() {
		t.Fatal("expected IsConnected to be false after Dispose")
	}
}

func TestCloseSendsCloseFrameAndReturnsOnSocketDrop(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil || msg.Action != protocol.ActionClose {
			t.Errorf("expected CLOSE frame, got %+v err=%v", msg, err)
		}
		_ = conn.Close()
	})

	tr := New(Config{URL: wsURL(srv.URL)}, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}
