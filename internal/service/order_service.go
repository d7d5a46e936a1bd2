package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/event"
	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/repo"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOrderNotFound   = errors.New("order not found")
)

// OrderLine is one requested line item at checkout.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// OrderService creates orders and writes their OrderCreatedEvent through the
// outbox, never talking to the broker directly.
type OrderService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewOrderService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *OrderService {
	return &OrderService{repo: r, log: logger}
}

// Create checks out the given lines. The order rows and the outbox event are
// written in one transaction: either both are durably visible or neither is.
// Prices are snapshotted from the catalog at this moment; later catalog
// changes never touch the order.
func (s *OrderService) Create(ctx context.Context, userID string, lines []OrderLine) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, ErrInvalidQuantity
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	order := &model.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: model.OrderStatusPending,
	}

	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(lines))
		evtItems := make([]event.OrderItem, 0, len(lines))

		for _, l := range lines {
			var p model.Product
			if err := tx.First(&p, "id = ?", l.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrProductNotFound
				}
				return err
			}
			items = append(items, model.OrderItem{
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  l.Quantity,
				Price:     p.Price,
			})
			evtItems = append(evtItems, event.OrderItem{
				ProductID: p.ID,
				Quantity:  l.Quantity,
				Price:     p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}

		order.Total = total
		order.Items = items
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		payload := event.OrderEvent{
			OrderID: order.ID,
			UserID:  order.UserID,
			Items:   evtItems,
			Total:   order.Total,
		}
		return s.repo.CreateOutboxEvent(ctx, tx, event.OrderCreated, payload)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("order %s created for user %s, total %s", order.ID, userID, order.Total)
	return order, nil
}

// Get returns one of the user's orders with its line items.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*model.Order, error) {
	var o model.Order
	err := s.repo.DB(ctx).Preload("Items").
		First(&o, "id = ? AND user_id = ?", orderID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListUserOrders returns the user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]model.Order, error) {
	var orders []model.Order
	err := s.repo.DB(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error
	return orders, err
}

// ListAll is the admin listing with optional status filter and paging.
func (s *OrderService) ListAll(ctx context.Context, status model.OrderStatus, page, pageSize int) ([]model.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	q := s.repo.DB(ctx).Model(&model.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []model.Order
	err := q.Preload("Items").
		Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	return orders, total, err
}
