// Package protocol defines the JSON wire format exchanged with the realtime
// endpoint. It is the connection-manager's re-purposing of the teacher's
// internal/protocol/messages.go: the same envelope-with-raw-payload decode
// shape, carrying connection-lifecycle actions (HEARTBEAT/CONNECT/CONNECTED/
// CLOSE/CLOSED/ERROR) instead of chat message types.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Action identifies the kind of a ProtocolMessage.
type Action int

const (
	ActionHeartbeat Action = iota
	ActionConnect
	ActionConnected
	ActionDisconnect
	ActionDisconnected
	ActionClose
	ActionClosed
	ActionError
	ActionMessage
	ActionAttach
	ActionAttached
)

func (a Action) String() string {
	switch a {
	case ActionHeartbeat:
		return "HEARTBEAT"
	case ActionConnect:
		return "CONNECT"
	case ActionConnected:
		return "CONNECTED"
	case ActionDisconnect:
		return "DISCONNECT"
	case ActionDisconnected:
		return "DISCONNECTED"
	case ActionClose:
		return "CLOSE"
	case ActionClosed:
		return "CLOSED"
	case ActionError:
		return "ERROR"
	case ActionMessage:
		return "MESSAGE"
	case ActionAttach:
		return "ATTACH"
	case ActionAttached:
		return "ATTACHED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(a))
	}
}

// ErrorInfo carries the error payload of an ERROR protocol frame.
type ErrorInfo struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Code       int    `json:"code"`
	Nonfatal   bool   `json:"nonfatal"`
}

// ConnectionDetails is the server-supplied record of interest to the core
// (spec.md §3). Extra is excluded from the JSON form and is not filled when a
// frame is decoded: fields other than connectionStateTtl and connectionId
// are dropped on decode.
type ConnectionDetails struct {
	ConnectionStateTTLMs int64           `json:"connectionStateTtl,omitempty"`
	ConnectionID         string          `json:"connectionId,omitempty"`
	Extra                json.RawMessage `json:"-"`
}

// Message is a protocol frame exchanged with the realtime endpoint.
type Message struct {
	Action            Action             `json:"action"`
	ID                string             `json:"id,omitempty"`
	Channel           string             `json:"channel,omitempty"`
	Error             *ErrorInfo         `json:"error,omitempty"`
	ConnectionDetails *ConnectionDetails `json:"connectionDetails,omitempty"`
	Payload           json.RawMessage    `json:"payload,omitempty"`
}

// wireMessage mirrors Message but lets Action round-trip as its raw int
// value, keeping the public Action type free of json tags of its own.
type wireMessage struct {
	Action            int                `json:"action"`
	ID                string             `json:"id,omitempty"`
	Channel           string             `json:"channel,omitempty"`
	Error             *ErrorInfo         `json:"error,omitempty"`
	ConnectionDetails *ConnectionDetails `json:"connectionDetails,omitempty"`
	Payload           json.RawMessage    `json:"payload,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		Action:            int(m.Action),
		ID:                m.ID,
		Channel:           m.Channel,
		Error:             m.Error,
		ConnectionDetails: m.ConnectionDetails,
		Payload:           m.Payload,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It validates that the action
// field is present, mirroring the teacher's Envelope.UnmarshalJSON which
// rejects frames with a missing type discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal message: %w", err)
	}
	var present struct {
		Action *int `json:"action"`
	}
	if err := json.Unmarshal(data, &present); err != nil || present.Action == nil {
		return fmt.Errorf("protocol: message has no action field")
	}
	m.Action = Action(w.Action)
	m.ID = w.ID
	m.Channel = w.Channel
	m.Error = w.Error
	m.ConnectionDetails = w.ConnectionDetails
	m.Payload = w.Payload
	return nil
}

// Encode serializes msg to its JSON wire form.
func Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode message: %w", err)
	}
	return data, nil
}

// Decode parses raw bytes into a Message.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: failed to decode message: %w", err)
	}
	return &msg, nil
}

// NewHeartbeat builds a client-originated HEARTBEAT frame carrying id, used
// by connmgr's Manager.Ping to probe liveness and measure round-trip time.
func NewHeartbeat(id string) *Message {
	return &Message{Action: ActionHeartbeat, ID: id}
}

// NewClose builds a client-originated CLOSE frame.
func NewClose() *Message {
	return &Message{Action: ActionClose}
}
