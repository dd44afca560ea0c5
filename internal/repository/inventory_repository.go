package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 在庫は条件付き更新でのみ動かす（読んで計算して書く、はしない）
type InventoryRepository interface {
	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル・返品）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
	ListAdjustments(ctx context.Context, productID int64) ([]model.InventoryAdjustment, error)
}
