package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/broker"
	"github.com/holydev/shopsphere/internal/model"
)

// ErrInsufficientStock is returned when a reservation asks for more units than
// the inventory row holds.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrDuplicateEvent is returned when the idempotency ledger already contains
// the given key, i.e. the event was delivered before.
var ErrDuplicateEvent = errors.New("event already processed")

// ErrOrderTerminal is returned when a status transition is attempted on an
// order that is not in the expected source state.
var ErrOrderTerminal = errors.New("order not in expected state")

// RepositoryInterface restricts Repo methods so services can be unit-tested
// against a mock.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, eventName string, payload any) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	InsertProcessedEvent(ctx context.Context, tx *gorm.DB, key string) error
	ReserveStock(ctx context.Context, tx *gorm.DB, productID string, quantity int) error
	TransitionOrder(ctx context.Context, tx *gorm.DB, orderID string, from, to model.OrderStatus) error
	CacheProduct(ctx context.Context, p *model.Product) error
	GetCachedProduct(ctx context.Context, id string) (*model.Product, error)
}

// Repository implements RepositoryInterface on top of gorm, redis and the
// event broker.
type Repository struct {
	db  *gorm.DB
	rdb *redis.Client
	bus broker.Broker
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, bus broker.Broker, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, bus: bus, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateOutboxEvent serializes payload and inserts the event row. Must be
// called with the same tx as the business mutation it announces.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, eventName string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventName, err)
	}
	evt := &model.OutboxEvent{EventName: eventName, Payload: string(raw)}
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events oldest-first, capped at limit.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("created_at").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed stamps processed_at. The IS NULL guard keeps the stamp
// write-once even if two pollers race on the same row.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", &now).Error
}

// PublishEvent emits the event to the broker, fire-and-forget.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	return r.bus.Emit(ctx, evt.EventName, []byte(evt.Payload))
}

// InsertProcessedEvent records key in the idempotency ledger. The insert's
// unique constraint is the synchronization primitive: concurrent duplicate
// deliveries race on the constraint, not on a read-then-insert window.
func (r *Repository) InsertProcessedEvent(ctx context.Context, tx *gorm.DB, key string) error {
	err := tx.WithContext(ctx).Create(&model.ProcessedEvent{ID: key}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEvent
	}
	return err
}

// ReserveStock decrements inventory only if enough units remain. The
// check-then-act is a single conditional UPDATE so concurrent reservations
// serialize through the store and the quantity can never go negative.
func (r *Repository) ReserveStock(ctx context.Context, tx *gorm.DB, productID string, quantity int) error {
	res := tx.WithContext(ctx).Model(&model.Inventory{}).
		Where("product_id = ? AND quantity >= ?", productID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// TransitionOrder moves an order from one status to another. The WHERE on the
// source status makes transitions one-directional: a terminal order is never
// re-opened, and a stale saga event affects zero rows.
func (r *Repository) TransitionOrder(ctx context.Context, tx *gorm.DB, orderID string, from, to model.OrderStatus) error {
	res := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderTerminal
	}
	return nil
}

// CacheProduct writes the product to Redis with a short TTL.
func (r *Repository) CacheProduct(ctx context.Context, p *model.Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, "product:"+p.ID, raw, 5*time.Minute).Err()
}

// GetCachedProduct reads a product from Redis; redis.Nil means a miss.
func (r *Repository) GetCachedProduct(ctx context.Context, id string) (*model.Product, error) {
	raw, err := r.rdb.Get(ctx, "product:"+id).Bytes()
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
