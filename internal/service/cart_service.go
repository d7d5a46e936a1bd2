package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/repo"
)

var ErrCartItemNotFound = errors.New("cart item not found")

type CartService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewCartService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *CartService {
	return &CartService{repo: r, log: logger}
}

// CartView is the cart with current catalog prices; cart totals are
// informational, the binding price snapshot happens at checkout.
type CartView struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// AddItem upserts the (user, product) line, accumulating quantity.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	var exists int64
	if err := s.repo.DB(ctx).Model(&model.Product{}).Where("id = ?", productID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return ErrProductNotFound
	}
	return s.repo.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("quantity + ?", quantity)}),
	}).Create(&model.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}).Error
}

// UpdateItem sets an absolute quantity; zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	res := s.repo.DB(ctx).Model(&model.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.repo.DB(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&model.CartItem{}).Error
}

// Get returns the cart joined with current product data.
func (s *CartService) Get(ctx context.Context, userID string) (*CartView, error) {
	var items []model.CartItem
	if err := s.repo.DB(ctx).Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return nil, err
	}
	view := &CartView{Items: make([]CartLine, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		var p model.Product
		if err := s.repo.DB(ctx).First(&p, "id = ?", it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		view.Items = append(view.Items, CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			Price:     p.Price,
		})
		view.Total = view.Total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return view, nil
}

// Checkout converts the cart into an order and clears it.
func (s *CartService) Checkout(ctx context.Context, userID string, orders *OrderService) (*model.Order, error) {
	var items []model.CartItem
	if err := s.repo.DB(ctx).Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartItemNotFound
	}
	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	order, err := orders.Create(ctx, userID, lines)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DB(ctx).Where("user_id = ?", userID).Delete(&model.CartItem{}).Error; err != nil {
		s.log.Warnf("clear cart for user %s: %v", userID, err)
	}
	return order, nil
}
