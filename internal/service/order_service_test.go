package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/broker"
	"github.com/holydev/shopsphere/internal/event"
	"github.com/holydev/shopsphere/internal/logger"
	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/repo"
)

func newTestRepo(t *testing.T, name string) (*gorm.DB, *repo.Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Product{}, &model.Inventory{}, &model.CartItem{},
		&model.Order{}, &model.OrderItem{}, &model.Review{},
		&model.OutboxEvent{}, &model.ProcessedEvent{},
	))
	log, err := logger.NewLogger()
	require.NoError(t, err)
	return db, repo.NewRepository(db, nil, broker.NewMemoryBroker(), log)
}

func seedProduct(t *testing.T, db *gorm.DB, id string, price int64, stock int) {
	t.Helper()
	require.NoError(t, db.Create(&model.Product{
		ID: id, Name: "p-" + id, Price: decimal.NewFromInt(price),
	}).Error)
	require.NoError(t, db.Create(&model.Inventory{ProductID: id, Quantity: stock}).Error)
}

func TestOrderService_CreateWritesOrderAndOutboxAtomically(t *testing.T) {
	db, r := newTestRepo(t, "order_create")
	log, _ := logger.NewLogger()
	svc := NewOrderService(r, log)
	ctx := context.Background()

	seedProduct(t, db, "prod-1", 10, 5)
	seedProduct(t, db, "prod-2", 7, 5)

	order, err := svc.Create(ctx, "user-1", []OrderLine{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(27)))

	var evt model.OutboxEvent
	require.NoError(t, db.First(&evt, "event_name = ?", event.OrderCreated).Error)
	assert.Nil(t, evt.ProcessedAt)

	var payload event.OrderEvent
	require.NoError(t, json.Unmarshal([]byte(evt.Payload), &payload))
	assert.Equal(t, order.ID, payload.OrderID)
	assert.Equal(t, "user-1", payload.UserID)
	require.Len(t, payload.Items, 2)
	assert.True(t, payload.Total.Equal(order.Total))
}

func TestOrderService_AbortedTransactionLeavesNothing(t *testing.T) {
	db, r := newTestRepo(t, "order_abort")
	log, _ := logger.NewLogger()
	svc := NewOrderService(r, log)
	ctx := context.Background()

	seedProduct(t, db, "prod-1", 10, 5)

	// Second line references a missing product, aborting the transaction.
	_, err := svc.Create(ctx, "user-1", []OrderLine{
		{ProductID: "prod-1", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)

	var orders, items, events int64
	require.NoError(t, db.Model(&model.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&model.OrderItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&model.OutboxEvent{}).Count(&events).Error)
	assert.Zero(t, orders, "no partial order visible")
	assert.Zero(t, items)
	assert.Zero(t, events, "no event without its mutation")
}

func TestOrderService_PriceSnapshotImmuneToCatalogChanges(t *testing.T) {
	db, r := newTestRepo(t, "order_snapshot")
	log, _ := logger.NewLogger()
	svc := NewOrderService(r, log)
	ctx := context.Background()

	seedProduct(t, db, "prod-1", 10, 5)

	order, err := svc.Create(ctx, "user-1", []OrderLine{{ProductID: "prod-1", Quantity: 2}})
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.Product{}).Where("id = ?", "prod-1").
		Update("price", decimal.NewFromInt(99)).Error)

	got, err := svc.Get(ctx, "user-1", order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(decimal.NewFromInt(10)),
		"line item keeps the checkout-time price")
	assert.True(t, got.Total.Equal(decimal.NewFromInt(20)))
}

func TestOrderService_RejectsBadQuantities(t *testing.T) {
	_, r := newTestRepo(t, "order_badqty")
	log, _ := logger.NewLogger()
	svc := NewOrderService(r, log)
	ctx := context.Background()

	_, err := svc.Create(ctx, "user-1", nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(ctx, "user-1", []OrderLine{{ProductID: "p", Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUserService_RegisterWritesOutboxAndRejectsDuplicates(t *testing.T) {
	db, r := newTestRepo(t, "user_register")
	log, _ := logger.NewLogger()
	svc := NewUserService(r, log)
	ctx := context.Background()

	u, err := svc.Register(ctx, "a@example.com", "Ada", "L")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	var evt model.OutboxEvent
	require.NoError(t, db.First(&evt, "event_name = ?", event.UserCreated).Error)
	assert.Contains(t, evt.Payload, "a@example.com")

	_, err = svc.Register(ctx, "a@example.com", "Ada", "L")
	assert.ErrorIs(t, err, ErrEmailTaken)

	var users, events int64
	require.NoError(t, db.Model(&model.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&model.OutboxEvent{}).Count(&events).Error)
	assert.EqualValues(t, 1, users)
	assert.EqualValues(t, 1, events, "failed registration leaves no event behind")
}

func TestCartService_CheckoutConvertsCartToOrder(t *testing.T) {
	db, r := newTestRepo(t, "cart_checkout")
	log, _ := logger.NewLogger()
	carts := NewCartService(r, log)
	orders := NewOrderService(r, log)
	ctx := context.Background()

	seedProduct(t, db, "prod-1", 10, 5)
	seedProduct(t, db, "prod-2", 4, 5)

	require.NoError(t, carts.AddItem(ctx, "user-1", "prod-1", 1))
	require.NoError(t, carts.AddItem(ctx, "user-1", "prod-1", 1)) // accumulates
	require.NoError(t, carts.AddItem(ctx, "user-1", "prod-2", 3))

	view, err := carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(32)))

	order, err := carts.Checkout(ctx, "user-1", orders)
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(32)))

	view, err = carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items, "checkout clears the cart")

	_, err = carts.Checkout(ctx, "user-1", orders)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestReviewService_CreateUpdatesAggregate(t *testing.T) {
	db, r := newTestRepo(t, "review_create")
	log, _ := logger.NewLogger()
	svc := NewReviewService(r, log)
	ctx := context.Background()

	seedProduct(t, db, "prod-1", 10, 5)

	_, err := svc.Create(ctx, "user-1", "prod-1", 4, "solid")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-2", "prod-1", 2, "meh")
	require.NoError(t, err)

	var p model.Product
	require.NoError(t, db.First(&p, "id = ?", "prod-1").Error)
	assert.Equal(t, 2, p.RatingCount)
	assert.InDelta(t, 3.0, p.RatingRate, 0.001)

	_, err = svc.Create(ctx, "user-1", "prod-1", 5, "again")
	assert.ErrorIs(t, err, ErrAlreadyRated)

	_, err = svc.Create(ctx, "user-3", "prod-1", 6, "")
	assert.ErrorIs(t, err, ErrInvalidRating)
}
