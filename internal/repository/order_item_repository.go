package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type ReturnRequestFilter struct {
	Page  int
	Limit int
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) ([]model.OrderItem, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error)

	// 状態・理由・日時だけを更新する（価格列は触らない）
	UpdateState(ctx context.Context, item model.OrderItem) error

	ListReturnRequested(ctx context.Context, f ReturnRequestFilter) ([]model.OrderItem, int64, error)
}
