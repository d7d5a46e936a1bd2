package event

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrderEvent(t *testing.T) {
	evt := OrderEvent{
		OrderID: "order-1",
		UserID:  "user-1",
		Items:   []OrderItem{{ProductID: "prod-1", Quantity: 2, Price: decimal.NewFromInt(10)}},
		Total:   decimal.NewFromInt(20),
	}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	for _, name := range []string{OrderCreated, InventoryReserved, InventoryFailed, PaymentCompleted, PaymentFailed} {
		got, err := DecodeOrderEvent(name, raw)
		require.NoError(t, err, name)
		assert.Equal(t, "order-1", got.OrderID)
		assert.True(t, got.Total.Equal(evt.Total))
	}
}

func TestDecodeOrderEvent_Rejections(t *testing.T) {
	_, err := DecodeOrderEvent("SomethingElseEvent", []byte(`{"orderId":"x"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = DecodeOrderEvent(OrderCreated, []byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeOrderEvent(OrderCreated, []byte(`{"userId":"u"}`))
	assert.Error(t, err, "missing orderId is rejected at the boundary")
}
