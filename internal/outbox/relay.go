// Package outbox relays durably written events to the broker at-least-once.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/holydev/shopsphere/internal/model"
)

// Store is the slice of the repository the relay needs.
type Store interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
}

// Relay periodically drains unprocessed outbox rows to the broker. It runs as
// a singleton task, decoupled from the request path: a broker outage stalls
// the relay, never a business transaction.
type Relay struct {
	store    Store
	log      *zap.SugaredLogger
	interval time.Duration
	batch    int
}

// NewRelay constructs a relay. interval <= 0 defaults to 5s, batch <= 0 to 10.
func NewRelay(store Store, logger *zap.SugaredLogger, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 10
	}
	return &Relay{store: store, log: logger, interval: interval, batch: batch}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Infof("outbox relay started, interval=%s batch=%d", r.interval, r.batch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Poll(ctx)
		}
	}
}

// Poll runs a single relay cycle: fetch up to batch unprocessed events in
// creation order, then handle each row independently so one failing event
// never blocks the rest of the batch.
func (r *Relay) Poll(ctx context.Context) {
	events, err := r.store.PollOutbox(ctx, r.batch)
	if err != nil {
		r.log.Errorf("poll outbox: %v", err)
		return
	}
	if len(events) == 0 {
		return
	}
	r.log.Infof("found %d events to publish", len(events))

	for _, evt := range events {
		if err := r.store.PublishEvent(ctx, evt); err != nil {
			// Leave unprocessed; the row is retried on the next cycle.
			r.log.Errorf("publish event %d (%s): %v", evt.ID, evt.EventName, err)
			continue
		}
		if err := r.store.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			// Already published, so the next cycle may publish again.
			// Downstream idempotency absorbs the duplicate.
			r.log.Errorf("mark processed %d: %v", evt.ID, err)
			continue
		}
		r.log.Infof("event %d (%s) published", evt.ID, evt.EventName)
	}
}
