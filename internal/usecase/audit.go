package usecase

import (
	"context"
	"encoding/json"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 変更前後を JSON で残す
func writeAudit(ctx context.Context, r repo.TxRepos, actorID int64, action model.AuditAction, resource model.AuditResourceType, resourceID int64, before, after map[string]any, clock Clock) error {
	b, err := json.Marshal(before)
	if err != nil {
		return dbError(err)
	}
	a, err := json.Marshal(after)
	if err != nil {
		return dbError(err)
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   string(b),
		AfterJSON:    string(a),
		CreatedAt:    clock.Now(),
	}); err != nil {
		return dbError(err)
	}
	return nil
}
