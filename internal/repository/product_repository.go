package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	Sort       string
}

// 商品の参照。削除済みは ErrNotFound
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
}

// 有効なカテゴリセール
type CategoryOfferRepository interface {
	// categoryID -> 割引率。同カテゴリに複数あれば最大値
	ActiveDiscounts(ctx context.Context, now time.Time) (map[int64]int64, error)
}
