// Manager (C8) orchestrates C4-C7 behind a single serializing goroutine,
// exposing connect/close/ping to arbitrary caller goroutines while every
// piece of manager-owned state (current state, timers, pending slots,
// transport pointer, connection details, failState) is mutated only from
// that one goroutine's run loop (spec.md §5).
//
// Ground: teacher's internal/matching/service.go matchLoop — one goroutine
// select-ing over a ticker and NATS subscription channels, generalized here
// to a richer union of command/transport-event/timer/probe-result channels.
package connmgr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/whisper/realtime-conn/internal/events"
	"github.com/whisper/realtime-conn/internal/pending"
	"github.com/whisper/realtime-conn/internal/protocol"
	"github.com/whisper/realtime-conn/internal/transport"
)

// Transport is the interface the manager consumes (spec.md §4.4/§6). The
// concrete internal/transport.Transport implements it; tests substitute a
// scripted mock (ground: teacher's onMessage/onDisconnect injection in
// ws.NewServer).
type Transport interface {
	Connect(ctx context.Context) error
	Send(msg *protocol.Message) error
	Close(ctx context.Context) error
	Dispose()
	IsConnected() bool
	Events() *events.Emitter[transport.Event]
}

// ChannelDispatcher receives protocol messages carrying a channel field
// (spec.md §6); the manager only forwards to it.
type ChannelDispatcher interface {
	OnChannelMessage(msg *protocol.Message)
}

// ConnectivityProber is consulted by the retry path before restarting a
// connect attempt from DISCONNECTED/SUSPENDED (spec.md §4.7).
type ConnectivityProber interface {
	Check(ctx context.Context) bool
}

// MetricsRecorder receives best-effort observability callbacks. A nil
// MetricsRecorder on Options disables all recording (ground: teacher's
// internal/metrics.metrics.go Prometheus counters/gauges, generalized behind
// an interface so internal/metrics is swappable in tests).
type MetricsRecorder interface {
	RecordStateChange(ConnectionStateChange)
	RecordPingLatency(time.Duration)
	RecordSuspend()
	RecordConnectAttempt()
}

// Options configures a Manager. DefaultOptions returns production defaults;
// callers mutate the struct before calling NewManager, mirroring the
// teacher's DefaultServerConfig()/DefaultNATSConfig() convention.
type Options struct {
	AutoConnect bool

	RealtimeRequestTimeout   time.Duration
	ConnectionStateTTL       time.Duration
	DisconnectedRetryTimeout time.Duration
	SuspendedRetryTimeout    time.Duration

	// NewTransport constructs a fresh Transport for each connect attempt.
	// onProtocolMessage must be wired to the transport's inbound frame
	// callback (spec.md §4.4).
	NewTransport func(onProtocolMessage func(*protocol.Message)) Transport
	Prober       ConnectivityProber
	Channels     ChannelDispatcher
	Metrics      MetricsRecorder
	Logger       *log.Logger

	// StateObserver, if set, is invoked with every ConnectionStateChange
	// alongside the emitter and Metrics, giving callers a single extension
	// point to wire cross-cutting concerns (resume-token caching, reconnect
	// rate-limit resets, out-of-process fanout) without connmgr importing
	// any of those concrete packages itself.
	StateObserver func(ConnectionStateChange)
}

// DefaultOptions returns sensible production defaults. AutoConnect is false
// and NewTransport/Prober/Channels/Metrics are nil; callers fill those in.
func DefaultOptions() Options {
	return Options{
		AutoConnect:              false,
		RealtimeRequestTimeout:   10 * time.Second,
		ConnectionStateTTL:       2 * time.Minute,
		DisconnectedRetryTimeout: 15 * time.Second,
		SuspendedRetryTimeout:    30 * time.Second,
		Logger:                   log.Default(),
	}
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdClose
	cmdPing
	cmdCancelConnect
)

type cmdReply struct {
	await               bool
	awaitConnectedFirst bool
	err                 *ConnError
}

type command struct {
	kind  cmdKind
	reply chan cmdReply
}

type transportEvent struct {
	gen int
	ev  transport.Event
}

type protoMsgEvent struct {
	gen int
	msg *protocol.Message
}

type probeResult struct {
	gen int
	ok  bool
}

type snapshot struct {
	state       ConnectionState
	errorReason *ConnError
	details     *protocol.ConnectionDetails
}

// Manager is the connection manager (C8). Create with NewManager; stop with
// Shutdown when the manager itself is being torn down (distinct from the
// logical Close(), which can be followed by a fresh Connect()).
type Manager struct {
	opts Options

	sm        *StateMachine
	timers    *TimerFabric
	failState ConnectionState

	tr         Transport
	generation int
	details    *protocol.ConnectionDetails
	errorReason *ConnError

	pendingConnected *pending.Slot[struct{}]
	pendingClosed    *pending.Slot[struct{}]
	pendingPing      *pending.Slot[time.Duration]
	pingID           string
	pingStart        time.Time

	emitter *events.Emitter[ConnectionStateChange]
	snap    atomic.Value

	cmdCh      chan command
	evCh       chan transportEvent
	msgCh      chan protoMsgEvent
	timerCh    chan timerFired
	probeCh    chan probeResult
	shutdownCh chan struct{}
	doneCh     chan struct{}
}

// NewManager constructs a Manager from opts, filling unset durations with
// DefaultOptions' values, and starts its serializing loop goroutine.
func NewManager(opts Options) *Manager {
	def := DefaultOptions()
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
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}

	m := &Manager{
		opts:             opts,
		failState:        StateDisconnected,
		pendingConnected: pending.NewSlot[struct{}]("connected"),
		pendingClosed:    pending.NewSlot[struct{}]("closed"),
		pendingPing:      pending.NewSlot[time.Duration]("ping"),
		emitter:          events.NewEmitter[ConnectionStateChange](),
		cmdCh:            make(chan command),
		evCh:             make(chan transportEvent, 32),
		msgCh:            make(chan protoMsgEvent, 32),
		timerCh:          make(chan timerFired, 8),
		probeCh:          make(chan probeResult, 4),
		shutdownCh:       make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
	m.timers = NewTimerFabric(m.postTimer)
	m.sm = NewStateMachine(StateInitialized, m.onStateChange)
	// Re-arm the suspend timer on every entry to DISCONNECTED (spec.md §4.6
	// step 2), not just on entry to CONNECTING from beginConnecting: without
	// this, a CONNECTED->DISCONNECTED drop (onConnected already cancelled the
	// timer) would retry forever and never reach SUSPENDED.
	m.sm.SetOnEnterDisconnected(func() { m.timers.ArmSuspendIfAbsent(m.currentSuspendTTL()) })
	m.publishSnapshot()

	go m.run()

	if opts.AutoConnect {
		go func() { _ = m.Connect(context.Background()) }()
	}
	return m
}

// Shutdown stops the serializing loop and disposes any live transport. It is
// for tearing down the Manager value itself, not a logical close — after
// Shutdown the Manager must not be used again.
func (m *Manager) Shutdown() {
	close(m.shutdownCh)
	<-m.doneCh
}

// State returns the current ConnectionState. Safe for concurrent use.
func (m *Manager) State() ConnectionState {
	return m.snap.Load().(snapshot).state
}

// ErrorReason returns the most recently recorded error, or nil. Safe for
// concurrent use.
func (m *Manager) ErrorReason() *ConnError {
	return m.snap.Load().(snapshot).errorReason
}

// Details returns the most recently received ConnectionDetails, or nil. Safe
// for concurrent use.
func (m *Manager) Details() *protocol.ConnectionDetails {
	return m.snap.Load().(snapshot).details
}

// On subscribes handler to name — a ConnectionEvent string (e.g. "connected")
// or "connectionstate" for every transition regardless of specific state.
func (m *Manager) On(name string, handler func(ConnectionStateChange)) events.Handle {
	return m.emitter.On(name, handler)
}

// Once is On but the subscription is removed before its first invocation.
func (m *Manager) Once(name string, handler func(ConnectionStateChange)) events.Handle {
	return m.emitter.Once(name, handler)
}

// Off removes a subscription previously returned by On/Once.
func (m *Manager) Off(h events.Handle) {
	m.emitter.Off(h)
}

func (m *Manager) publishSnapshot() {
	m.snap.Store(snapshot{state: m.sm.State(), errorReason: m.errorReason, details: m.details})
}

func (m *Manager) onStateChange(c ConnectionStateChange) {
	m.publishSnapshot()
	m.emitter.Emit(string(c.Event), c)
	m.emitter.Emit("connectionstate", c)
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordStateChange(c)
	}
	if m.opts.StateObserver != nil {
		m.opts.StateObserver(c)
	}
}

// ---- public operations (spec.md §4.8) ----

// Connect is the idempotent connect driver.
func (m *Manager) Connect(ctx context.Context) error {
	reply := make(chan cmdReply, 1)
	select {
	case m.cmdCh <- command{kind: cmdConnect, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	r := <-reply
	if r.err != nil {
		return r.err
	}
	if !r.await {
		return nil
	}
	_, err := m.pendingConnected.Await(ctx)
	if err != nil && isContextErr(err) {
		m.postCancelConnect()
	}
	return err
}

// Close tears the connection down per the per-state rules of spec.md §4.8.
func (m *Manager) Close(ctx context.Context) error {
	for {
		reply := make(chan cmdReply, 1)
		select {
		case m.cmdCh <- command{kind: cmdClose, reply: reply}:
		case <-ctx.Done():
			return ctx.Err()
		}
		r := <-reply
		if r.err != nil {
			return r.err
		}
		if r.awaitConnectedFirst {
			_, _ = m.pendingConnected.Await(ctx)
			continue
		}
		if !r.await {
			return nil
		}
		_, err := m.pendingClosed.Await(ctx)
		return err
	}
}

// Ping sends a HEARTBEAT and returns the measured round-trip latency.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	reply := make(chan cmdReply, 1)
	select {
	case m.cmdCh <- command{kind: cmdPing, reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	r := <-reply
	if r.err != nil {
		return 0, r.err
	}

	boundedCtx, cancel := context.WithTimeout(ctx, m.opts.RealtimeRequestTimeout)
	defer cancel()
	d, err := m.pendingPing.Await(boundedCtx)
	if err != nil {
		if isContextErr(err) {
			return 0, newTimeoutError("ping timed out")
		}
		return 0, err
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordPingLatency(d)
	}
	return d, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ---- serializing loop ----

func (m *Manager) run() {
	for {
		select {
		case cmd := <-m.cmdCh:
			m.handleCommand(cmd)
		case te := <-m.evCh:
			if te.gen == m.generation {
				m.handleTransportEvent(te.ev)
			}
		case pm := <-m.msgCh:
			if pm.gen == m.generation {
				m.handleProtocolMessage(pm.msg)
			}
		case tf := <-m.timerCh:
			m.handleTimerFired(tf)
		case pr := <-m.probeCh:
			m.handleProbeResult(pr)
		case <-m.shutdownCh:
			m.timers.CancelAll()
			if m.tr != nil {
				m.tr.Dispose()
				m.tr = nil
			}
			close(m.doneCh)
			return
		}
	}
}

func (m *Manager) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		cmd.reply <- m.handleConnectCmd()
	case cmdClose:
		cmd.reply <- m.handleCloseCmd()
	case cmdPing:
		cmd.reply <- m.handlePingCmd()
	case cmdCancelConnect:
		m.onConnectCancelled()
	}
}

func (m *Manager) postEvent(gen int, ev transport.Event) {
	select {
	case m.evCh <- transportEvent{gen: gen, ev: ev}:
	default:
		log.Printf("connmgr: dropping transport event %s, channel full", ev.Name)
	}
}

func (m *Manager) postMsg(gen int, msg *protocol.Message) {
	select {
	case m.msgCh <- protoMsgEvent{gen: gen, msg: msg}:
	default:
		log.Printf("connmgr: dropping protocol message action=%s, channel full", msg.Action)
	}
}

func (m *Manager) postTimer(tf timerFired) {
	select {
	case m.timerCh <- tf:
	default:
		log.Printf("connmgr: dropping %s timer fire, channel full", tf.kind)
	}
}

func (m *Manager) postProbeResult(gen int, ok bool) {
	select {
	case m.probeCh <- probeResult{gen: gen, ok: ok}:
	default:
	}
}

func (m *Manager) postCancelConnect() {
	select {
	case m.cmdCh <- command{kind: cmdCancelConnect}:
	case <-time.After(time.Second):
	}
}

// ---- command handlers (run on the loop goroutine) ----

func (m *Manager) handleConnectCmd() cmdReply {
	switch m.sm.State() {
	case StateConnected:
		return cmdReply{await: false}
	case StateConnecting:
		return cmdReply{await: true}
	default:
		m.beginConnecting()
		return cmdReply{await: true}
	}
}

func (m *Manager) handleCloseCmd() cmdReply {
	switch m.sm.State() {
	case StateClosed:
		return cmdReply{await: false}
	case StateInitialized, StateFailed:
		m.timers.CancelAll()
		m.sm.EnactStateChange(StateClosed, nil)
		return cmdReply{await: false}
	case StateDisconnected, StateSuspended:
		m.timers.CancelAll()
		if m.tr != nil {
			m.tr.Dispose()
			m.tr = nil
		}
		m.invalidatePing(newInvalidStateError("connection closing"))
		m.sm.EnactStateChange(StateClosed, nil)
		return cmdReply{await: false}
	case StateConnecting:
		return cmdReply{awaitConnectedFirst: true}
	case StateClosing:
		return cmdReply{await: true}
	case StateConnected:
		m.timers.CancelSuspend()
		m.invalidatePing(newInvalidStateError("connection closing"))
		m.pendingClosed.Arm()
		m.timers.ArmTransition(m.opts.RealtimeRequestTimeout)
		m.sm.EnactStateChange(StateClosing, nil)
		if tr := m.tr; tr != nil {
			go func() { _ = tr.Send(protocol.NewClose()) }()
		}
		return cmdReply{await: true}
	default:
		return cmdReply{err: newInvalidStateError("close: unreachable state")}
	}
}

func (m *Manager) handlePingCmd() cmdReply {
	state := m.sm.State()
	if state != StateConnected && state != StateConnecting {
		return cmdReply{err: newInvalidStateError(fmt.Sprintf("ping not permitted in state %s", state))}
	}
	if m.pendingPing.IsArmed() {
		return cmdReply{await: true}
	}
	m.pendingPing.Arm()
	m.pingID = uuid.NewString()
	m.pingStart = time.Now()
	if tr := m.tr; tr != nil {
		id := m.pingID
		go func() { _ = tr.Send(protocol.NewHeartbeat(id)) }()
	}
	return cmdReply{await: true}
}

// ---- connect attempt lifecycle ----

func (m *Manager) beginConnecting() {
	m.generation++
	gen := m.generation

	m.pendingConnected.Arm()
	m.timers.ArmTransition(m.opts.RealtimeRequestTimeout)
	m.timers.ArmSuspendIfAbsent(m.currentSuspendTTL())
	m.sm.EnactStateChange(StateConnecting, nil)

	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordConnectAttempt()
	}

	tr := m.opts.NewTransport(func(msg *protocol.Message) { m.postMsg(gen, msg) })
	m.tr = tr

	tr.Events().On(string(transport.EventConnected), func(ev transport.Event) { m.postEvent(gen, ev) })
	tr.Events().On(string(transport.EventFailed), func(ev transport.Event) { m.postEvent(gen, ev) })
	tr.Events().On(string(transport.EventDisconnected), func(ev transport.Event) { m.postEvent(gen, ev) })

	go func() {
		dialCtx, cancel := context.WithTimeout(context.Background(), m.opts.RealtimeRequestTimeout)
		defer cancel()
		_ = tr.Connect(dialCtx) // failure surfaces as EventFailed via the subscription above
	}()
}

func (m *Manager) currentSuspendTTL() time.Duration {
	if m.details != nil && m.details.ConnectionStateTTLMs > 0 {
		return time.Duration(m.details.ConnectionStateTTLMs) * time.Millisecond
	}
	return m.opts.ConnectionStateTTL
}

func (m *Manager) armRetry() {
	delay := m.opts.DisconnectedRetryTimeout
	if m.sm.State() == StateSuspended {
		delay = m.opts.SuspendedRetryTimeout
	}
	m.timers.ArmRetry(delay)
}

func (m *Manager) invalidatePing(err *ConnError) {
	if m.pendingPing.IsArmed() {
		m.pendingPing.Reject(err)
	}
}

// ---- transport event handlers ----

func (m *Manager) handleTransportEvent(ev transport.Event) {
	switch ev.Name {
	case transport.EventConnected:
		m.onConnected(ev.Frame)
	case transport.EventFailed:
		if ev.Frame != nil && ev.Frame.Action == protocol.ActionError {
			m.onServerError(ev.Frame)
		} else {
			m.onConnectFailure(ev.Err)
		}
	case transport.EventDisconnected:
		m.onTransportDisconnected(ev.Err)
	}
}

// onConnected implements spec.md §4.8's inbound handler of the same name.
func (m *Manager) onConnected(frame *protocol.Message) {
	m.timers.CancelTransition()
	m.failState = StateDisconnected
	m.timers.CancelSuspend()
	if frame != nil && frame.ConnectionDetails != nil {
		m.details = frame.ConnectionDetails
	}
	m.errorReason = nil
	m.pendingConnected.Resolve(struct{}{})

	if m.sm.State() == StateConnected {
		m.publishSnapshot()
		m.sm.EmitUpdate(nil)
		return
	}
	m.sm.EnactStateChange(StateConnected, nil)
}

// onConnectFailure handles a handshake/protocol-level transport failure
// during an in-flight connect attempt (the "connect timeout" path of
// spec.md §4.8's connect() description, reused here for any dial failure).
func (m *Manager) onConnectFailure(cause error) {
	cerr := newTimeoutError(fmt.Sprintf("connect failed: %v", cause))
	m.disposeTransport()
	m.timers.CancelTransition()
	m.errorReason = cerr
	m.pendingConnected.Reject(cerr)
	m.invalidatePing(cerr)

	if canTransition(m.sm.State(), StateDisconnected) {
		m.sm.EnactStateChange(StateDisconnected, cerr)
	}
	m.armRetry()
}

// onConnectCancelled is taken when the caller's context is cancelled while
// Connect() is awaiting the connected slot (spec.md §5: "A pending connect
// cancelled externally must reject with a timeout-style error and trigger
// the same retry path as a natural timeout").
func (m *Manager) onConnectCancelled() {
	if m.sm.State() != StateConnecting {
		return
	}
	cerr := newCancelledError("connect cancelled by caller")
	m.disposeTransport()
	m.timers.CancelTransition()
	m.errorReason = cerr
	m.pendingConnected.Reject(cerr)
	m.invalidatePing(cerr)
	m.sm.EnactStateChange(StateDisconnected, cerr)
	m.armRetry()
}

// onServerError implements the onError handler of spec.md §4.8: a
// connection-scope ERROR frame (no channel) fails the connection outright.
func (m *Manager) onServerError(frame *protocol.Message) {
	if frame.Channel != "" {
		if m.opts.Channels != nil {
			m.opts.Channels.OnChannelMessage(frame)
		}
		return
	}

	cerr := newServerFatalError(errMessage(frame), errStatus(frame), errCode(frame))
	m.errorReason = cerr
	m.disposeTransport()
	m.timers.CancelAll()
	m.pendingConnected.Reject(cerr)
	m.pendingClosed.Reject(cerr)
	m.invalidatePing(cerr)

	if canTransition(m.sm.State(), StateFailed) {
		m.sm.EnactStateChange(StateFailed, cerr)
	}
}

// onTransportDisconnected implements spec.md §4.8's handler of the same
// name, with one addition grounded in real-world transport behavior: an
// unexpected drop while CLOSING is treated as the close completing, since
// there is nothing left to await a CLOSED echo from.
func (m *Manager) onTransportDisconnected(cause error) {
	prevState := m.sm.State()
	m.disposeTransport()
	m.timers.CancelTransition()

	if prevState == StateClosing {
		m.pendingClosed.Resolve(struct{}{})
		m.sm.EnactStateChange(StateClosed, nil)
		m.timers.CancelAll()
		return
	}

	cerr := newTimeoutError(fmt.Sprintf("transport disconnected: %v", cause))
	m.errorReason = cerr
	m.pendingConnected.Reject(cerr)
	m.invalidatePing(cerr)

	if canTransition(prevState, StateDisconnected) {
		m.sm.EnactStateChange(StateDisconnected, cerr)
	}
	m.armRetry()
}

func (m *Manager) disposeTransport() {
	if m.tr != nil {
		m.tr.Dispose()
		m.tr = nil
	}
}

// ---- protocol message handlers ----

func (m *Manager) handleProtocolMessage(msg *protocol.Message) {
	switch msg.Action {
	case protocol.ActionHeartbeat:
		m.onHeartbeat(msg.ID)
	case protocol.ActionClosed:
		m.onClosed()
	case protocol.ActionError:
		m.onNonfatalError(msg)
	default:
		if msg.Channel != "" && m.opts.Channels != nil {
			m.opts.Channels.OnChannelMessage(msg)
		}
	}
}

func (m *Manager) onHeartbeat(id string) {
	if !m.pendingPing.IsArmed() || id != m.pingID {
		return
	}
	m.pendingPing.Resolve(time.Since(m.pingStart))
}

// onClosed implements spec.md §4.8's onClosed handler plus the CLOSING ->
// CLOSED transition the close() operation is waiting on.
func (m *Manager) onClosed() {
	m.disposeTransport()
	m.timers.CancelAll()
	if canTransition(m.sm.State(), StateClosed) {
		m.sm.EnactStateChange(StateClosed, nil)
	}
	m.pendingClosed.Resolve(struct{}{})
}

// onNonfatalError forwards a nonfatal ERROR frame; it never fails the
// connection (transport.go already routes fatal ERROR frames through
// EventFailed instead of here).
func (m *Manager) onNonfatalError(msg *protocol.Message) {
	if msg.Channel != "" && m.opts.Channels != nil {
		m.opts.Channels.OnChannelMessage(msg)
		return
	}
	log.Printf("connmgr: nonfatal server error: %s", errMessage(msg))
}

// ---- timer handlers (spec.md §4.7) ----

func (m *Manager) handleTimerFired(tf timerFired) {
	switch tf.kind {
	case timerTransition:
		m.onTransitionTimeout()
	case timerSuspend:
		m.onSuspendTimeout()
	case timerRetry:
		m.onRetryTimeout()
	}
}

func (m *Manager) onTransitionTimeout() {
	switch m.sm.State() {
	case StateConnecting:
		cerr := newTimeoutError("connect timed out")
		m.disposeTransport()
		m.errorReason = cerr
		m.pendingConnected.Reject(cerr)
		m.invalidatePing(cerr)
		m.sm.EnactStateChange(StateDisconnected, cerr)
		m.armRetry()
	case StateClosing:
		cerr := newTimeoutError("close timed out")
		m.disposeTransport()
		m.errorReason = cerr
		m.pendingClosed.Reject(cerr)
		m.timers.CancelAll()
		m.sm.EnactStateChange(StateFailed, cerr)
	default:
		// stale fire racing a transition that already cancelled it; ignore.
	}
}

func (m *Manager) onSuspendTimeout() {
	cerr := newSuspendedTTLError("connection state ttl exceeded")
	m.failState = StateSuspended
	m.details = nil
	m.errorReason = cerr
	m.disposeTransport()
	m.timers.CancelTransition()
	if m.sm.State() == StateConnecting {
		// CONNECTING has no direct edge to SUSPENDED: end the in-flight attempt
		// in DISCONNECTED first. The fired suspend timer is still held, so the
		// DISCONNECTED entry hook does not arm a new one.
		m.sm.EnactStateChange(StateDisconnected, cerr)
	}
	m.timers.CancelSuspend()
	m.pendingConnected.Reject(cerr)
	m.invalidatePing(cerr)

	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordSuspend()
	}

	if canTransition(m.sm.State(), StateSuspended) {
		m.sm.EnactStateChange(StateSuspended, cerr)
	}
	m.armRetry()
}

func (m *Manager) onRetryTimeout() {
	state := m.sm.State()
	if state != StateDisconnected && state != StateSuspended {
		return
	}
	gen := m.generation
	prober := m.opts.Prober
	timeout := m.opts.RealtimeRequestTimeout
	go func() {
		ok := true
		if prober != nil {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			ok = prober.Check(ctx)
		}
		m.postProbeResult(gen, ok)
	}()
}

func (m *Manager) handleProbeResult(pr probeResult) {
	if pr.gen != m.generation {
		return
	}
	state := m.sm.State()
	if state != StateDisconnected && state != StateSuspended {
		return
	}
	if pr.ok {
		m.beginConnecting()
		return
	}
	m.errorReason = newUnreachableError("connectivity probe failed")
	m.armRetry()
}

// ---- ErrorInfo helpers ----

func errMessage(frame *protocol.Message) string {
	if frame.Error != nil {
		return frame.Error.Message
	}
	return "server error"
}

func errCode(frame *protocol.Message) int {
	if frame.Error != nil {
		return frame.Error.Code
	}
	return 50000
}

func errStatus(frame *protocol.Message) int {
	if frame.Error != nil {
		return frame.Error.StatusCode
	}
	return 500
}
