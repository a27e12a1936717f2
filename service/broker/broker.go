package broker

import "context"

// Message is one event received from the shared broker.
type Message struct {
	Topic   string
	Payload []byte
}

// Broker is the publish/subscribe collaborator behind the bridge.
// Delivery is at-least-once with no ordering guarantee across topics.
type Broker interface {
	// Publish sends payload to a single topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe consumes every topic matching the given patterns
	// (single-segment trailing wildcard, e.g. "ws.channel.*") plus any
	// literal topics. The returned channel closes when ctx is canceled or
	// the broker fails fatally; the caller does not auto-retry.
	Subscribe(ctx context.Context, patterns ...string) (<-chan Message, error)

	Close() error
}
