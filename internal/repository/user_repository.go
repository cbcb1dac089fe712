package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/facelogin/internal/retry"
)

// UserRepository stores accounts.
type UserRepository struct {
	base
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{base{db: db, logger: logger.Named("user_repository"), policy: retry.DefaultPolicy}}
}

// CreateUser inserts user and fills in its id.
func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	return r.executeWithRetry(ctx, "repository.create_user", func() error {
		return r.db.WithContext(ctx).Create(user).Error
	})
}

// FindUserByLogin returns ErrNotFound when no account uses login.
func (r *UserRepository) FindUserByLogin(ctx context.Context, login string) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user_by_login", func() error {
		return notFound(r.db.WithContext(ctx).First(&user, "login = ?", login).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByID returns ErrNotFound when the id is unknown.
func (r *UserRepository) FindUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_user_by_id", func() error {
		return notFound(r.db.WithContext(ctx).First(&user, id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
