package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront/internal/config"
	"storefront/internal/domain/model"
)

// Connect はDBに接続して *gorm.DB を返す。
// 一意制約違反は gorm.ErrDuplicatedKey に変換される
func Connect(cfg config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsDevelopment() {
		level = gormlogger.Info
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return gdb, nil
}

// Migrate はテーブルを作成・更新する
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.CategoryOffer{},
		&model.Cart{},
		&model.CartItem{},
		&model.Coupon{},
		&model.CouponUsage{},
		&model.Order{},
		&model.OrderItem{},
		&model.Wallet{},
		&model.WalletTransaction{},
		&model.WalletTopUp{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	)
}
