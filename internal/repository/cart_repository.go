package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 注文確定でカートは空になるだけで、ACTIVE のまま使い回す
type CartRepository interface {
	GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	Clear(ctx context.Context, cartID int64) error
}
