// Package bus defines the small event-bus contract the pipeline components
// program against, and an in-process implementation with the same delivery
// semantics as the Kafka-backed bus: at-least-once delivery, explicit
// acknowledgment, per-key ordering within a consumer group, fixed-backoff
// redelivery, and dead-letter routing after retry exhaustion.
package bus

import "context"

// Publisher publishes events to a single topic. Events sharing a key are
// delivered in publish order to each consumer group.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Handler processes one delivered message. Returning nil acknowledges the
// message; returning an error leaves it unacknowledged for redelivery.
type Handler func(ctx context.Context, key []byte, value []byte) error

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, key string, payload any) error

func (f PublisherFunc) Publish(ctx context.Context, key string, payload any) error {
	return f(ctx, key, payload)
}
