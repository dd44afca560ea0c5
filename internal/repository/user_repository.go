package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type UserRepository interface {
	// 見つからなければ ErrNotFound
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByReferralCode(ctx context.Context, code string) (*model.User, error)
	SetReferredBy(ctx context.Context, userID, referrerID int64) error
}
