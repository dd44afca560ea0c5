package model

import (
	"time"

	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductStatusAvailable    ProductStatus = "AVAILABLE"
	ProductStatusOutOfStock   ProductStatus = "OUT_OF_STOCK"
	ProductStatusDiscontinued ProductStatus = "DISCONTINUED"
)

// 商品。在庫はこのエンジンの条件付き更新でのみ増減する
type Product struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID int64  `gorm:"not null;index" json:"category_id"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	ImageURL   string `gorm:"type:varchar(512)" json:"image_url"`

	//定価
	Price int64 `gorm:"not null" json:"price"`

	//商品単位の割引率（0-100）
	DiscountPercent int64 `gorm:"not null;default:0" json:"discount_percent"`

	Stock     int64          `gorm:"not null" json:"stock"`
	Status    ProductStatus  `gorm:"type:varchar(20);not null;default:'AVAILABLE';index" json:"status"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 販売停止・在庫切れ・在庫0は購入不可
func (p Product) IsPurchasable() bool {
	if p.DeletedAt.Valid {
		return false
	}
	return p.Status == ProductStatusAvailable && p.Stock > 0
}
