package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type CouponRepository interface {
	// コードは大文字で保存されている前提
	FindByCode(ctx context.Context, code string) (model.Coupon, error)
	FindByID(ctx context.Context, id int64) (model.Coupon, error)
	ListUsable(ctx context.Context, now time.Time) ([]model.Coupon, error)

	HasUsed(ctx context.Context, couponID, userID int64) (bool, error)
	UsedCouponIDs(ctx context.Context, userID int64) (map[int64]bool, error)

	// 未使用のときだけ記録する。記録できなければ false
	MarkUsed(ctx context.Context, usage model.CouponUsage) (bool, error)
}
