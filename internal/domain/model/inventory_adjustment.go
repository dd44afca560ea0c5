package model

import "time"

type InventoryReason string

const (
	InventoryReasonSale          InventoryReason = "SALE"
	InventoryReasonCancelRestock InventoryReason = "CANCEL_RESTOCK"
	InventoryReasonReturnRestock InventoryReason = "RETURN_RESTOCK"
	InventoryReasonRollback      InventoryReason = "ROLLBACK"
)

// 在庫移動の履歴。在庫の増減1回につき1行
type InventoryAdjustment struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64           `gorm:"not null;index" json:"product_id"`
	OrderID   *int64          `gorm:"index" json:"order_id,omitempty"`
	Delta     int64           `gorm:"not null" json:"delta"`
	Reason    InventoryReason `gorm:"type:varchar(40);not null" json:"reason"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
