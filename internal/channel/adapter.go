// Package channel normalizes per-transport webhook payloads into the
// canonical inbound message and carries replies back out. Only this package
// varies per transport; parsing and execution are channel-agnostic.
package channel

import (
	"context"

	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
	"go.uber.org/zap"
)

// Adapter converts one channel's webhook payloads to canonical messages and
// sends replies through that channel's transport.
type Adapter interface {
	// Channel identifies the transport this adapter serves.
	Channel() model.Channel
	// Normalize extracts sender key, text and the channel-native message ID
	// from a raw webhook body. Returns ErrMalformedPayload when required
	// fields are missing.
	Normalize(raw []byte) (*model.InboundMessage, error)
	// Ack is the synchronous webhook acknowledgment body. Webhooks are
	// always acked fast and independently of processing outcome.
	Ack() (contentType string, body string)
	// Send delivers reply text to a channel-native destination. Failures are
	// logged by the caller and never abort the pipeline: the state mutation
	// already committed (or was rejected) independently of delivery.
	Send(ctx context.Context, destination, text string) error
}

// Sender is the outbound delivery capability an adapter wraps. Production
// wiring injects the transport client; tests and unconfigured channels use
// LogSender.
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// LogSender logs outbound messages instead of delivering them. It stands in
// whenever a channel has no transport client configured.
type LogSender struct {
	ChannelName string
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, destination, text string) error {
	logger.FromContext(ctx).Info("Mock outbound message",
		zap.String("channel", s.ChannelName),
		zap.String("destination", destination),
		zap.String("text", text),
	)
	return nil
}

// Registry holds the adapter for each enabled channel.
type Registry struct {
	adapters map[model.Channel]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Channel]Adapter)}
	for _, a := range adapters {
		r.adapters[a.Channel()] = a
	}
	return r
}

// Get returns the adapter for a channel, or nil when the channel is unknown.
func (r *Registry) Get(ch model.Channel) Adapter {
	return r.adapters[ch]
}
