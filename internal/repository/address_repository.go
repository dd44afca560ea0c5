package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 住所帳の参照だけを行う（作成・編集は外部）
type AddressRepository interface {
	FindByID(ctx context.Context, addressID int64) (model.Address, error)
	// 既定の住所が先頭、あとは新しい順
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)
}
