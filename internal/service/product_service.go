package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/repo"
)

type ProductService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewProductService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *ProductService {
	return &ProductService{repo: r, log: logger}
}

type CreateProductInput struct {
	Name        string
	Description string
	SKU         string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
}

// Create inserts the product and seeds its inventory row together.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*model.Product, error) {
	p := &model.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		SKU:         in.SKU,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
	}
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return tx.Create(&model.Inventory{ProductID: p.ID, Quantity: in.Stock}).Error
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get serves from the Redis cache when possible, falling back to the store.
func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	if p, err := s.repo.GetCachedProduct(ctx, id); err == nil {
		return p, nil
	}
	var p model.Product
	err := s.repo.DB(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheProduct(ctx, &p); err != nil {
		s.log.Warnf("cache product %s: %v", p.ID, err)
	}
	return &p, nil
}

// List returns a page of the catalog with an optional name filter.
func (s *ProductService) List(ctx context.Context, query string, page, pageSize int) ([]model.Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	q := s.repo.DB(ctx).Model(&model.Product{})
	if query != "" {
		q = q.Where("name LIKE ?", "%"+query+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var products []model.Product
	err := q.Order("updated_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&products).Error
	return products, total, err
}

// SetStock upserts the inventory row for a product to an absolute quantity.
func (s *ProductService) SetStock(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	return s.repo.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(&model.Inventory{ProductID: productID, Quantity: quantity}).Error
}

// GetStock returns on-hand quantity, zero for products without a row.
func (s *ProductService) GetStock(ctx context.Context, productID string) (int, error) {
	var inv model.Inventory
	err := s.repo.DB(ctx).First(&inv, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return inv.Quantity, nil
}
