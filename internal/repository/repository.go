// Package repository persists users and their face tokens in PostgreSQL.
package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/facelogin/internal/retry"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// AutoMigrate ensures the schema is available.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&User{}, &FaceToken{})
}

type base struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

func (b *base) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(ctx, b.logger, b.policy, operation, fn)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
