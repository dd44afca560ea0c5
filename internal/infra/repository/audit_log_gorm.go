package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/domain/model"
)

type AuditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) *AuditLogGormRepository {
	return &AuditLogGormRepository{db: db}
}

// CreatedAt は呼び出し側で設定済み
func (r *AuditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("create audit log %s/%s %d: %w", log.Action, log.ResourceType, log.ResourceID, err)
	}
	return nil
}
