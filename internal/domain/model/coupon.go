package model

import "time"

type CouponKind string

const (
	CouponKindPercentage CouponKind = "PERCENTAGE"
	CouponKindFixed      CouponKind = "FIXED"
)

type Coupon struct {
	ID    int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Code  string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Kind  CouponKind `gorm:"type:varchar(20);not null" json:"kind"`
	Value int64      `gorm:"not null" json:"value"`

	MinPurchase int64 `gorm:"not null;default:0" json:"min_purchase"`

	//割引上限（PERCENTAGEのみ、0なら上限なし）
	MaxDiscount int64 `gorm:"not null;default:0" json:"max_discount"`

	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (c Coupon) UsableAt(now time.Time) bool {
	return c.IsActive && now.Before(c.ExpiresAt)
}

// クーポンの使用済み記録。(coupon_id, user_id) の一意制約で1人1回を保証する
type CouponUsage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID  int64     `gorm:"not null;uniqueIndex:idx_coupon_usages_coupon_user" json:"coupon_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_coupon_usages_coupon_user;index" json:"user_id"`
	OrderID   int64     `gorm:"not null;index" json:"order_id"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
