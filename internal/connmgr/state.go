// Package connmgr implements the connection state machine, timer fabric,
// and orchestrating manager described in spec.md §4.6–§4.8 (components
// C6–C8). It is grounded on the teacher's validated-status-string idiom in
// internal/session/store.go (StatusIdle/StatusMatching/StatusChatting),
// generalized here into a transition-checked finite state machine since the
// spec's core demand is exactly the rigor those loose status strings lack.
package connmgr

import "fmt"

// ConnectionState is the FSM state of a realtime connection (spec.md §3).
type ConnectionState string

const (
	StateInitialized  ConnectionState = "initialized"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateClosing      ConnectionState = "closing"
	StateClosed       ConnectionState = "closed"
	StateFailed       ConnectionState = "failed"
	StateSuspended    ConnectionState = "suspended"
)

// ConnectionEvent is the superset of ConnectionState plus EventUpdate,
// emitted when already CONNECTED and a fresh CONNECTED protocol frame
// arrives without a state change (spec.md §3).
type ConnectionEvent string

const EventUpdate ConnectionEvent = "update"

// AsEvent widens a ConnectionState to its ConnectionEvent form.
func (s ConnectionState) AsEvent() ConnectionEvent { return ConnectionEvent(s) }

// ConnectionStateChange is the payload delivered to connectionstate/update
// subscribers (spec.md §3).
type ConnectionStateChange struct {
	Previous ConnectionState
	Current  ConnectionState
	Event    ConnectionEvent
	Reason   *ConnError
}

// transitions enumerates the permitted edges of the FSM (spec.md §4.6).
// CLOSED and FAILED are terminal for their logical session; a user Connect()
// from either restarts the machine by transitioning to CONNECTING, and those
// restart edges are listed here alongside the same-session ones.
var transitions = map[ConnectionState]map[ConnectionState]bool{
	StateInitialized: {
		StateConnecting: true,
		StateClosed:     true, // close() fast path from INITIALIZED, spec.md §4.8
	},
	StateConnecting: {
		StateConnected:    true,
		StateDisconnected: true,
		StateFailed:       true,
		StateClosing:      true,
		StateClosed:       true,
	},
	StateConnected: {
		StateDisconnected: true,
		StateClosing:      true,
		StateFailed:       true,
		StateSuspended:    true,
	},
	StateDisconnected: {
		StateConnecting: true,
		StateSuspended:  true,
		StateClosed:     true,
	},
	StateSuspended: {
		StateConnecting: true,
		StateClosed:     true,
	},
	StateClosing: {
		StateClosed: true,
		StateFailed: true,
	},
	StateClosed: {
		StateConnecting: true, // user connect() restarts the machine, spec.md §4.6
	},
	StateFailed: {
		StateConnecting: true, // user connect() restarts the machine, spec.md §4.6
		StateClosed:     true, // close() fast path from FAILED, spec.md §4.8
	},
}

// canTransition reports whether from -> to is a permitted edge.
func canTransition(from, to ConnectionState) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// StateMachine holds the current ConnectionState and performs validated
// transitions, emitting ConnectionStateChange to subscribers (spec.md §4.6).
type StateMachine struct {
	state       ConnectionState
	emit        func(ConnectionStateChange)
	onEnterDisc func() // hook: start suspend-TTL tracking when entering DISCONNECTED
}

// NewStateMachine creates a StateMachine starting at initial, delivering
// every change via emit.
func NewStateMachine(initial ConnectionState, emit func(ConnectionStateChange)) *StateMachine {
	return &StateMachine{state: initial, emit: emit}
}

// SetOnEnterDisconnected registers the hook invoked whenever the machine
// enters DISCONNECTED, used by the manager to arm the suspend timer if one
// is not already running (spec.md §4.6 step 2).
func (sm *StateMachine) SetOnEnterDisconnected(fn func()) {
	sm.onEnterDisc = fn
}

// State returns the current state.
func (sm *StateMachine) State() ConnectionState {
	return sm.state
}

// EnactStateChange validates and executes a transition to newState, then
// emits a ConnectionStateChange. It panics on an invalid edge — transition
// validity is an internal invariant the manager must enforce before calling
// this, not a user-facing error condition.
func (sm *StateMachine) EnactStateChange(newState ConnectionState, reason *ConnError) ConnectionStateChange {
	if !canTransition(sm.state, newState) {
		panic(fmt.Sprintf("connmgr: invalid transition %s -> %s", sm.state, newState))
	}

	previous := sm.state
	sm.state = newState

	if newState == StateDisconnected && sm.onEnterDisc != nil {
		sm.onEnterDisc()
	}

	change := ConnectionStateChange{
		Previous: previous,
		Current:  newState,
		Event:    newState.AsEvent(),
		Reason:   reason,
	}
	if sm.emit != nil {
		sm.emit(change)
	}
	return change
}

// EmitUpdate is taken when a CONNECTED frame arrives while already
// CONNECTED: it emits EventUpdate with previous == current == CONNECTED and
// does not change state (spec.md §4.6).
func (sm *StateMachine) EmitUpdate(reason *ConnError) ConnectionStateChange {
	change := ConnectionStateChange{
		Previous: sm.state,
		Current:  sm.state,
		Event:    EventUpdate,
		Reason:   reason,
	}
	if sm.emit != nil {
		sm.emit(change)
	}
	return change
}
