package broker

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBroker publishes events to a single topic, using the event name as the
// message key so consumers can dispatch without decoding the payload.
type KafkaBroker struct {
	writer *kafka.Writer
}

func NewKafkaBroker(w *kafka.Writer) *KafkaBroker {
	return &KafkaBroker{writer: w}
}

func (b *KafkaBroker) Emit(ctx context.Context, eventName string, payload []byte) error {
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(eventName),
		Value: payload,
		Time:  time.Now(),
	})
}

// KafkaConsumer reads the event topic and dispatches each message to the
// handler registered for its key. Offsets are committed only after the
// handler returns nil, so a failed handler gets the message redelivered.
type KafkaConsumer struct {
	reader *kafka.Reader
	log    *zap.SugaredLogger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewKafkaConsumer(r *kafka.Reader, logger *zap.SugaredLogger) *KafkaConsumer {
	return &KafkaConsumer{reader: r, log: logger, handlers: make(map[string]Handler)}
}

func (c *KafkaConsumer) On(eventName string, h Handler) {
	c.mu.Lock()
	c.handlers[eventName] = h
	c.mu.Unlock()
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Errorf("fetch message: %v", err)
			continue
		}

		name := string(msg.Key)
		c.mu.RLock()
		h, ok := c.handlers[name]
		c.mu.RUnlock()

		if !ok {
			// Nobody cares about this event name; ack so it is not redelivered.
			c.log.Warnf("no handler for event %q", name)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.log.Errorf("commit %q: %v", name, err)
			}
			continue
		}

		if err := h(ctx, msg.Value); err != nil {
			// Leave un-committed; the broker redelivers and the idempotency
			// ledger makes redelivery safe.
			c.log.Errorf("handle %q: %v", name, err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Errorf("commit %q: %v", name, err)
		}
	}
}
