// Package broker abstracts the message transport between the outbox relay
// and the saga handlers. Delivery is at-least-once with no ordering guarantee
// across event names; consumers must be idempotent.
package broker

import "context"

// Handler processes one delivered message payload. Returning an error leaves
// the message un-acknowledged so the transport redelivers it.
type Handler func(ctx context.Context, payload []byte) error

// Broker publishes events fire-and-forget: Emit returns once the transport
// accepted the message, without waiting for any consumer.
type Broker interface {
	Emit(ctx context.Context, eventName string, payload []byte) error
}

// Subscriber registers handlers per event name.
type Subscriber interface {
	On(eventName string, h Handler)
}
