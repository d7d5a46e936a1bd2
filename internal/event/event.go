// Package event defines the wire contract carried through the outbox,
// the broker, and the saga handlers.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Event name constants. The order saga forwards the same OrderEvent payload
// through the whole chain, switching only the name.
const (
	OrderCreated      = "OrderCreatedEvent"
	InventoryReserved = "InventoryReservedEvent"
	InventoryFailed   = "InventoryFailedEvent"
	PaymentCompleted  = "PaymentCompletedEvent"
	PaymentFailed     = "PaymentFailedEvent"
	UserCreated       = "user_created"
)

var ErrUnknownEvent = errors.New("unknown event name")

// OrderItem is one line of an order event, with the price snapshot taken at
// checkout.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderEvent is the payload for every order-saga event name.
type OrderEvent struct {
	OrderID string          `json:"orderId"`
	UserID  string          `json:"userId"`
	Items   []OrderItem     `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

// UserEvent announces a newly registered user.
type UserEvent struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// DecodeOrderEvent validates a raw payload for one of the order-saga event
// names. Payloads are not trusted blindly: a saga event with no order id is
// rejected here rather than deep inside a handler.
func DecodeOrderEvent(name string, payload []byte) (OrderEvent, error) {
	switch name {
	case OrderCreated, InventoryReserved, InventoryFailed, PaymentCompleted, PaymentFailed:
	default:
		return OrderEvent{}, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	var evt OrderEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return OrderEvent{}, fmt.Errorf("decode %s: %w", name, err)
	}
	if evt.OrderID == "" {
		return OrderEvent{}, fmt.Errorf("decode %s: missing orderId", name)
	}
	return evt, nil
}
