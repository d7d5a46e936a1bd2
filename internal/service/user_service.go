package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/event"
	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/repo"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

type UserService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewUserService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *UserService {
	return &UserService{repo: r, log: logger}
}

// Register creates the user and its user_created outbox event in one
// transaction. A duplicate email surfaces as ErrEmailTaken to the caller,
// never silently swallowed.
func (s *UserService) Register(ctx context.Context, email, firstName, lastName string) (*model.User, error) {
	u := &model.User{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      "CUSTOMER",
	}
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		return s.repo.CreateOutboxEvent(ctx, tx, event.UserCreated, event.UserEvent{
			ID:    u.ID,
			Email: u.Email,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("user %s registered", u.Email)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.repo.DB(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
