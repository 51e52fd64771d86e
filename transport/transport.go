// Package transport defines the engine message-channel contract: an
// outbound command sink and an inbound event source, expressed as a
// Watermill publisher/subscriber pair over two fixed topics. Each
// transport implementation (in-memory channel, external controller
// socket) lives in its own sub-package and registers itself with the
// transport registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Topics on the engine channel. Commands flow one way, events the other;
// every event subscriber receives every event from the moment of
// subscribing onward.
const (
	TopicCommands = "engine.commands"
	TopicEvents   = "engine.events"
)

// Metadata keys carried on every channel message. These are the wire
// contract between transports and the runtime envelope codec.
const (
	MetadataType          = "message_type"
	MetadataCorrelationID = "correlation_id"
	MetadataRequestID     = "request_id"
)

// Transport combines the command publisher and event subscriber produced
// by a factory. Publish on TopicCommands is fire-and-forget: it never
// blocks on the engine and fails fast with a classified error when the
// engine process is unreachable.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close shuts down both halves of the channel.
func (t Transport) Close() error {
	var firstErr error
	if t.Publisher != nil {
		if err := t.Publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if t.Subscriber != nil {
		if err := t.Subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Builder is the function signature for creating a transport from config.
// Each transport package should provide a Builder function that can be
// registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports. The
// interface keeps transports decoupled from the full config package.
type Config interface {
	// GetTransport returns the transport type name.
	GetTransport() string

	// Controller socket.
	GetControllerURL() string
	GetControllerSecret() string
}
