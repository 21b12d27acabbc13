package rtconn

import "github.com/whisper/realtime-conn/internal/connmgr"

// ConnError is the error type surfaced by a Connection's operations and
// ErrorReason(). It is a type alias for connmgr.ConnError so callers never
// need to import the internal package to type-assert on it.
type ConnError = connmgr.ConnError

// ErrorKind classifies a ConnError.
type ErrorKind = connmgr.ErrorKind

// ConnectionState is the FSM state of a realtime connection.
type ConnectionState = connmgr.ConnectionState

// ConnectionStateChange is the payload delivered to state-change
// subscribers registered via Connection.On/Once.
type ConnectionStateChange = connmgr.ConnectionStateChange

// Re-exported ConnectionState values.
const (
	StateInitialized  = connmgr.StateInitialized
	StateConnecting   = connmgr.StateConnecting
	StateConnected    = connmgr.StateConnected
	StateDisconnected = connmgr.StateDisconnected
	StateClosing      = connmgr.StateClosing
	StateClosed       = connmgr.StateClosed
	StateFailed       = connmgr.StateFailed
	StateSuspended    = connmgr.StateSuspended
)

// EventUpdate is the pseudo-event delivered when a fresh CONNECTED frame
// arrives while already CONNECTED.
const EventUpdate = connmgr.EventUpdate

// Re-exported ErrorKind values.
const (
	ErrorTimeout      = connmgr.ErrorTimeout
	ErrorUnreachable  = connmgr.ErrorUnreachable
	ErrorSuspendedTTL = connmgr.ErrorSuspendedTTL
	ErrorServerFatal  = connmgr.ErrorServerFatal
	ErrorInvalidState = connmgr.ErrorInvalidState
	ErrorCancelled    = connmgr.ErrorCancelled
)
