package model

import "time"

type OrderItemStatus string

const (
	OrderItemStatusPending         OrderItemStatus = "PENDING"
	OrderItemStatusDelivered       OrderItemStatus = "DELIVERED"
	OrderItemStatusReturnRequested OrderItemStatus = "RETURN_REQUESTED"
	OrderItemStatusReturned        OrderItemStatus = "RETURNED"
	OrderItemStatusCancelled       OrderItemStatus = "CANCELLED"
)

func (s OrderItemStatus) Terminal() bool {
	return s == OrderItemStatusCancelled || s == OrderItemStatusReturned
}

type DiscountSource string

const (
	DiscountSourceProduct  DiscountSource = "product"
	DiscountSourceCategory DiscountSource = "category"
	DiscountSourceNone     DiscountSource = "none"
)

// 注文明細。価格系の列は作成後に変更しない
type OrderItem struct {
	ID                   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID              int64  `gorm:"not null;index" json:"order_id"`
	ProductID            int64  `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot  string `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductImageSnapshot string `gorm:"type:varchar(512)" json:"product_image"`
	Quantity             int64  `gorm:"not null" json:"quantity"`

	ListPrice       int64          `gorm:"not null" json:"list_price"`
	FinalPrice      int64          `gorm:"not null" json:"final_price"`
	DiscountPercent int64          `gorm:"not null" json:"discount_percent"`
	DiscountSource  DiscountSource `gorm:"type:varchar(20);not null" json:"discount_source"`
	Subtotal        int64          `gorm:"not null" json:"subtotal"`

	Status            OrderItemStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CancelReason      string          `gorm:"type:varchar(500)" json:"cancel_reason,omitempty"`
	ReturnReason      string          `gorm:"type:varchar(500)" json:"return_reason,omitempty"`
	ReturnRequestedAt *time.Time      `json:"return_requested_at,omitempty"`
	ReturnApprovedAt  *time.Time      `json:"return_approved_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
