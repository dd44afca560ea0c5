package model

import "time"

type AuditAction string

const (
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	AuditActionCancelOrder       AuditAction = "CANCEL_ORDER"
	AuditActionCancelOrderItem   AuditAction = "CANCEL_ORDER_ITEM"
	AuditActionApproveReturn     AuditAction = "APPROVE_RETURN"
	AuditActionRejectReturn      AuditAction = "REJECT_RETURN"
	AuditActionAdjustWallet      AuditAction = "ADJUST_WALLET"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder  AuditResourceType = "order"
	AuditResourceWallet AuditResourceType = "wallet"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
