// Package saga drives order fulfillment as a chain of event handlers:
// reserve inventory, capture payment, complete the order, with compensation
// to CANCELLED when a step reports a business failure.
package saga

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/broker"
	"github.com/holydev/shopsphere/internal/event"
	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/payment"
	"github.com/holydev/shopsphere/internal/repo"
)

// transition is one row of the saga state machine: an incoming event is only
// legal when the order sits in the expected source state, carries the ledger
// step used for deduplication, and runs an action that names the follow-up
// event ("" for terminal steps).
type transition struct {
	from   model.OrderStatus
	step   string
	action func(ctx context.Context, evt event.OrderEvent) (next string, err error)
}

// Orchestrator reacts to saga events delivered by the broker. Every handler
// is safe to invoke more than once for the same logical event: the
// processed-event ledger short-circuits duplicates before any side effect.
type Orchestrator struct {
	repo    repo.RepositoryInterface
	bus     broker.Broker
	gateway payment.Gateway
	log     *zap.SugaredLogger
	table   map[string]transition
}

func NewOrchestrator(r repo.RepositoryInterface, bus broker.Broker, gw payment.Gateway, logger *zap.SugaredLogger) *Orchestrator {
	o := &Orchestrator{repo: r, bus: bus, gateway: gw, log: logger}
	o.table = map[string]transition{
		event.OrderCreated:      {from: model.OrderStatusPending, step: "inventory", action: o.reserveInventory},
		event.InventoryReserved: {from: model.OrderStatusPending, step: "payment", action: o.capturePayment},
		event.PaymentCompleted:  {from: model.OrderStatusPending, step: "complete", action: o.completeOrder},
		event.InventoryFailed:   {from: model.OrderStatusPending, step: "cancel", action: o.cancelOrder},
		event.PaymentFailed:     {from: model.OrderStatusPending, step: "cancel", action: o.cancelOrder},
	}
	return o
}

// Register subscribes every saga transition plus the user-created listener.
func (o *Orchestrator) Register(sub broker.Subscriber) {
	for name := range o.table {
		sub.On(name, o.handler(name))
	}
	sub.On(event.UserCreated, o.handleUserCreated)
}

// stepKey builds the idempotency ledger key. The step prefix keeps distinct
// saga steps for the same order from shadowing each other in the ledger.
func stepKey(step, orderID string) string { return step + ":" + orderID }

func (o *Orchestrator) handler(name string) broker.Handler {
	tr := o.table[name]
	return func(ctx context.Context, payload []byte) error {
		evt, err := event.DecodeOrderEvent(name, payload)
		if err != nil {
			// Malformed payloads are never going to get better on redelivery.
			o.log.Errorf("drop %s: %v", name, err)
			return nil
		}

		var ord model.Order
		if err := o.repo.DB(ctx).Select("status").First(&ord, "id = ?", evt.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				o.log.Warnf("drop %s: order %s not found", name, evt.OrderID)
				return nil
			}
			return err
		}
		if ord.Status != tr.from {
			// Illegal transition, e.g. PaymentCompletedEvent for an order that
			// was already cancelled. Reject instead of re-applying.
			o.log.Warnf("reject %s for order %s in state %s", name, evt.OrderID, ord.Status)
			return nil
		}

		next, err := tr.action(ctx, evt)
		switch {
		case errors.Is(err, repo.ErrDuplicateEvent):
			o.log.Warnf("event %s for order %s already processed, skipping", name, evt.OrderID)
			return nil
		case errors.Is(err, repo.ErrOrderTerminal):
			o.log.Warnf("reject %s: order %s reached a terminal state concurrently", name, evt.OrderID)
			return nil
		case err != nil:
			// Infrastructure error: propagate so the broker redelivers. The
			// ledger makes the redelivery safe.
			return err
		}

		if next == "" {
			return nil
		}
		// The local mutation is committed; only now announce the transition.
		// The payload is forwarded unchanged through the chain.
		raw, merr := json.Marshal(evt)
		if merr != nil {
			return merr
		}
		if err := o.bus.Emit(ctx, next, raw); err != nil {
			o.log.Errorf("emit %s for order %s: %v", next, evt.OrderID, err)
			return err
		}
		o.log.Infof("order %s: %s -> %s", evt.OrderID, name, next)
		return nil
	}
}

// reserveInventory decrements stock for every line item, all-or-nothing. The
// ledger insert and the decrements share one transaction; a shortfall rolls
// back any partial decrements through a savepoint while still committing the
// ledger row, because a shortfall is a terminal business outcome.
func (o *Orchestrator) reserveInventory(ctx context.Context, evt event.OrderEvent) (string, error) {
	var shortfall bool
	err := o.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.repo.InsertProcessedEvent(ctx, tx, stepKey("inventory", evt.OrderID)); err != nil {
			return err
		}
		rerr := tx.Transaction(func(inner *gorm.DB) error {
			for _, it := range evt.Items {
				if err := o.repo.ReserveStock(ctx, inner, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(rerr, repo.ErrInsufficientStock) {
			shortfall = true
			return nil
		}
		return rerr
	})
	if err != nil {
		return "", err
	}
	if shortfall {
		o.log.Warnf("stock reservation failed for order %s", evt.OrderID)
		return event.InventoryFailed, nil
	}
	return event.InventoryReserved, nil
}

// capturePayment charges the order total. A decline commits the ledger row
// and routes to compensation; a gateway outage rolls everything back so the
// broker redelivers.
func (o *Orchestrator) capturePayment(ctx context.Context, evt event.OrderEvent) (string, error) {
	var declined bool
	err := o.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.repo.InsertProcessedEvent(ctx, tx, stepKey("payment", evt.OrderID)); err != nil {
			return err
		}
		if err := o.gateway.Charge(ctx, evt.OrderID, evt.Total); err != nil {
			if errors.Is(err, payment.ErrDeclined) {
				declined = true
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if declined {
		return event.PaymentFailed, nil
	}
	return event.PaymentCompleted, nil
}

func (o *Orchestrator) completeOrder(ctx context.Context, evt event.OrderEvent) (string, error) {
	err := o.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.repo.InsertProcessedEvent(ctx, tx, stepKey("complete", evt.OrderID)); err != nil {
			return err
		}
		return o.repo.TransitionOrder(ctx, tx, evt.OrderID, model.OrderStatusPending, model.OrderStatusCompleted)
	})
	if err != nil {
		return "", err
	}
	o.log.Infof("order %s completed", evt.OrderID)
	return "", nil
}

// cancelOrder is the compensation step for both failure events.
// TODO: when payment fails after stock was reserved, emit an inventory
// release event so the reserved units are returned; needs product sign-off.
func (o *Orchestrator) cancelOrder(ctx context.Context, evt event.OrderEvent) (string, error) {
	err := o.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.repo.InsertProcessedEvent(ctx, tx, stepKey("cancel", evt.OrderID)); err != nil {
			return err
		}
		return o.repo.TransitionOrder(ctx, tx, evt.OrderID, model.OrderStatusPending, model.OrderStatusCancelled)
	})
	if err != nil {
		return "", err
	}
	o.log.Warnf("order %s cancelled", evt.OrderID)
	return "", nil
}

func (o *Orchestrator) handleUserCreated(_ context.Context, payload []byte) error {
	var evt event.UserEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		o.log.Errorf("drop %s: %v", event.UserCreated, err)
		return nil
	}
	// Hook for the notification service; today we only log the signup.
	o.log.Infof("user created: %s", evt.Email)
	return nil
}
