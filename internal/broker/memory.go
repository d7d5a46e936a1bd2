package broker

import (
	"context"
	"sync"
)

// MemoryBroker dispatches events synchronously in-process. It backs tests and
// local runs where Kafka is not configured, and doubles as both Broker and
// Subscriber.
type MemoryBroker struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	emitted  []Emitted
}

// Emitted records one Emit call for inspection in tests.
type Emitted struct {
	EventName string
	Payload   []byte
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{handlers: make(map[string][]Handler)}
}

func (b *MemoryBroker) On(eventName string, h Handler) {
	b.mu.Lock()
	b.handlers[eventName] = append(b.handlers[eventName], h)
	b.mu.Unlock()
}

// Emit invokes every registered handler for eventName in order. Handler errors
// are swallowed, matching fire-and-forget semantics; a real transport would
// redeliver instead.
func (b *MemoryBroker) Emit(ctx context.Context, eventName string, payload []byte) error {
	b.mu.Lock()
	b.emitted = append(b.emitted, Emitted{EventName: eventName, Payload: payload})
	hs := append([]Handler(nil), b.handlers[eventName]...)
	b.mu.Unlock()

	for _, h := range hs {
		_ = h(ctx, payload)
	}
	return nil
}

// EmittedEvents returns a copy of everything emitted so far.
func (b *MemoryBroker) EmittedEvents() []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Emitted(nil), b.emitted...)
}
