package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/repo"
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrAlreadyRated  = errors.New("user already reviewed this product")
)

type ReviewService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewReviewService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *ReviewService {
	return &ReviewService{repo: r, log: logger}
}

// Create inserts the review and refreshes the product's rating aggregate in
// the same transaction.
func (s *ReviewService) Create(ctx context.Context, userID, productID string, rating int, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	rev := &model.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
	}
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&model.Product{}).Where("id = ?", productID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrProductNotFound
		}
		if err := tx.Create(rev).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRated
			}
			return err
		}
		// Recompute the aggregate instead of maintaining a running average.
		var agg struct {
			Avg   float64
			Count int
		}
		if err := tx.Model(&model.Review{}).
			Select("AVG(rating) as avg, COUNT(*) as count").
			Where("product_id = ?", productID).
			Scan(&agg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Product{}).Where("id = ?", productID).
			Updates(map[string]interface{}{"rating_rate": agg.Avg, "rating_count": agg.Count}).Error
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// ListByProduct returns reviews for a product, newest first.
func (s *ReviewService) ListByProduct(ctx context.Context, productID string) ([]model.Review, error) {
	var reviews []model.Review
	err := s.repo.DB(ctx).
		Where("product_id = ?", productID).
		Order("created_at desc").
		Find(&reviews).Error
	return reviews, err
}
