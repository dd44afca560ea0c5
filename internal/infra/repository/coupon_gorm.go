package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/domain/model"
)

type CouponGormRepository struct {
	db *gorm.DB
}

func NewCouponGormRepository(db *gorm.DB) *CouponGormRepository {
	return &CouponGormRepository{db: db}
}

func (r *CouponGormRepository) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return model.Coupon{}, translate(err)
	}
	return c, nil
}

func (r *CouponGormRepository) FindByID(ctx context.Context, id int64) (model.Coupon, error) {
	var c model.Coupon
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return model.Coupon{}, translate(err)
	}
	return c, nil
}

func (r *CouponGormRepository) ListUsable(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	var coupons []model.Coupon
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at > ?", true, now).
		Order("min_purchase asc").
		Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

func (r *CouponGormRepository) HasUsed(ctx context.Context, couponID, userID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CouponGormRepository) UsedCouponIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&model.CouponUsage{}).
		Where("user_id = ?", userID).
		Pluck("coupon_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// (coupon_id, user_id) が既にあれば何もしない
func (r *CouponGormRepository) MarkUsed(ctx context.Context, usage model.CouponUsage) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&usage)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
