package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

var orderItemStateColumns = []string{
	"status", "cancel_reason", "return_reason", "return_requested_at", "return_approved_at", "updated_at",
}

func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) ([]model.OrderItem, error) {
	if len(items) == 0 {
		return []model.OrderItem{}, nil
	}
	created := make([]model.OrderItem, len(items))
	copy(created, items)
	for i := range created {
		created[i].OrderID = orderID
	}
	if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

func (r *OrderItemGormRepository) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var items []model.OrderItem
	if err := r.db.WithContext(ctx).Where("order_id IN ?", orderIDs).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, nil
}

func (r *OrderItemGormRepository) UpdateState(ctx context.Context, item model.OrderItem) error {
	res := r.db.WithContext(ctx).
		Model(&model.OrderItem{ID: item.ID}).
		Select(orderItemStateColumns).
		Updates(&item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderItemGormRepository) ListReturnRequested(ctx context.Context, f repo.ReturnRequestFilter) ([]model.OrderItem, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.OrderItem{}).Where("status = ?", model.OrderItemStatusReturnRequested)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.OrderItem{}, 0, err
	}

	offset, limit := pageOffset(f.Page, f.Limit)
	var items []model.OrderItem
	if err := q.Order("return_requested_at asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.OrderItem{}, 0, err
	}
	return items, total, nil
}
