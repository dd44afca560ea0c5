package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/domain/model"
)

type AddressGormRepository struct {
	db *gorm.DB
}

func NewAddressGormRepository(db *gorm.DB) *AddressGormRepository {
	return &AddressGormRepository{db: db}
}

func (r *AddressGormRepository) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	var a model.Address
	if err := r.db.WithContext(ctx).Where("id = ?", addressID).First(&a).Error; err != nil {
		return model.Address{}, translate(err)
	}
	return a, nil
}

func (r *AddressGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	var out []model.Address
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return out, nil
}
