package model

import "time"

// カテゴリ単位のセール
type CategoryOffer struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID      int64     `gorm:"not null;index" json:"category_id"`
	DiscountPercent int64     `gorm:"not null" json:"discount_percent"`
	StartsAt        time.Time `gorm:"not null" json:"starts_at"`
	EndsAt          time.Time `gorm:"not null;index" json:"ends_at"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 有効フラグかつ期間内
func (o CategoryOffer) ActiveAt(now time.Time) bool {
	return o.IsActive && !now.Before(o.StartsAt) && now.Before(o.EndsAt)
}
