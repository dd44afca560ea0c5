package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 管理者操作の記録。追記のみ
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
}
