package rtconn

import "github.com/whisper/realtime-conn/internal/protocol"

// Message is a protocol frame whose Channel is non-empty, delivered to a
// configured Options.Channels dispatcher. Aliased from internal/protocol so
// callers implementing ChannelDispatcher never need to import an internal
// package themselves.
type Message = protocol.Message

// ChannelDispatcher receives every inbound protocol frame addressed to a
// channel (spec.md's channel/message dispatch boundary, left to the
// embedding application rather than this module).
type ChannelDispatcher interface {
	OnChannelMessage(msg *Message)
}
