package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/facelogin/internal/retry"
)

// FaceTokenRepository keeps the ordered list of face tokens per user.
type FaceTokenRepository struct {
	base
}

// NewFaceTokenRepository creates a new repository instance.
func NewFaceTokenRepository(db *gorm.DB, logger *zap.Logger) *FaceTokenRepository {
	return &FaceTokenRepository{base{db: db, logger: logger.Named("face_token_repository"), policy: retry.DefaultPolicy}}
}

// AppendToken adds one enrollment for userID. Existing tokens are untouched.
func (r *FaceTokenRepository) AppendToken(ctx context.Context, userID uint, token string) error {
	row := &FaceToken{UserID: userID, Token: token}
	return r.executeWithRetry(ctx, "repository.append_token", func() error {
		return r.db.WithContext(ctx).Create(row).Error
	})
}

// DeleteTokens removes every enrollment of userID and reports how many rows
// went away. Deleting from an empty list is not an error.
func (r *FaceTokenRepository) DeleteTokens(ctx context.Context, userID uint) (int64, error) {
	var deleted int64
	err := r.executeWithRetry(ctx, "repository.delete_tokens", func() error {
		result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&FaceToken{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

// CountTokens reports how many enrollments userID holds.
func (r *FaceTokenRepository) CountTokens(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.executeWithRetry(ctx, "repository.count_tokens", func() error {
		return r.db.WithContext(ctx).Model(&FaceToken{}).Where("user_id = ?", userID).Count(&count).Error
	})
	return count, err
}

// FindUsersByToken returns the users holding token, ordered by when the
// token was stored (oldest enrollment first). A user appears once.
func (r *FaceTokenRepository) FindUsersByToken(ctx context.Context, token string) ([]User, error) {
	var users []User
	err := r.executeWithRetry(ctx, "repository.find_users_by_token", func() error {
		users = users[:0]
		return r.db.WithContext(ctx).
			Model(&User{}).
			Select("users.*").
			Joins("JOIN face_tokens ON face_tokens.user_id = users.id").
			Where("face_tokens.token = ?", token).
			Group("users.id").
			Order("MIN(face_tokens.id) ASC").
			Find(&users).Error
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}
