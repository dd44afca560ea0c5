package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"storefront/internal/domain/model"
)

type CategoryOfferGormRepository struct {
	db *gorm.DB
}

func NewCategoryOfferGormRepository(db *gorm.DB) *CategoryOfferGormRepository {
	return &CategoryOfferGormRepository{db: db}
}

type categoryDiscountRow struct {
	CategoryID      int64
	DiscountPercent int64
}

func (r *CategoryOfferGormRepository) ActiveDiscounts(ctx context.Context, now time.Time) (map[int64]int64, error) {
	var rows []categoryDiscountRow
	err := r.db.WithContext(ctx).
		Model(&model.CategoryOffer{}).
		Select("category_id, MAX(discount_percent) AS discount_percent").
		Where("is_active = ? AND starts_at <= ? AND ends_at > ?", true, now, now).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]int64, len(rows))
	for _, row := range rows {
		out[row.CategoryID] = row.DiscountPercent
	}
	return out, nil
}
