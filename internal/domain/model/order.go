package model

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusReturned       OrderStatus = "RETURNED"
	OrderStatusFailed         OrderStatus = "FAILED"
)

// 配送前でキャンセル可能な状態
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodWallet  PaymentMethod = "WALLET"
	PaymentMethodGateway PaymentMethod = "GATEWAY"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodWallet, PaymentMethodGateway:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// 適用時点のクーポン情報。CouponIDがnilなら未適用
type CouponSnapshot struct {
	CouponID       *int64     `json:"coupon_id,omitempty"`
	Code           string     `gorm:"type:varchar(64)" json:"code,omitempty"`
	Kind           CouponKind `gorm:"type:varchar(20)" json:"kind,omitempty"`
	Value          int64      `json:"value,omitempty"`
	DiscountAmount int64      `json:"discount_amount,omitempty"`
	MinPurchase    int64      `json:"min_purchase,omitempty"`
}

func (c CouponSnapshot) Applied() bool {
	return c.CouponID != nil
}

// 注文集約。明細(Items)は order_items に保存し、読み書きは常に注文単位で行う
type Order struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Code   string `gorm:"type:varchar(40);not null;uniqueIndex" json:"code"`
	UserID int64  `gorm:"not null;index" json:"user_id"`

	Shipping ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Coupon   CouponSnapshot  `gorm:"embedded;embeddedPrefix:coupon_" json:"coupon"`

	SubtotalAmount       int64 `gorm:"not null" json:"subtotal_amount"`
	CouponDiscountAmount int64 `gorm:"not null;default:0" json:"coupon_discount_amount"`
	TotalAmount          int64 `gorm:"not null" json:"total_amount"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`

	//在庫を確定済みか（GATEWAYは決済確認まで false）
	StockCommitted bool `gorm:"not null;default:false" json:"-"`

	GatewayOrderID   string `gorm:"type:varchar(255);index" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `gorm:"type:varchar(255)" json:"gateway_payment_id,omitempty"`

	CancelReason string `gorm:"type:varchar(500)" json:"cancel_reason,omitempty"`

	//NULL は一意制約の対象外
	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex" json:"-"`

	OrderedAt   time.Time  `gorm:"not null;index" json:"ordered_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`

	Items []OrderItem `gorm:"-" json:"items"`
}

func (o Order) ItemByID(itemID int64) (int, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i, true
		}
	}
	return -1, false
}

// 全明細が終端（キャンセル/返品済み）か
func (o Order) AllItemsIn(statuses ...OrderItemStatus) bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		ok := false
		for _, s := range statuses {
			if it.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// ゲートウェイ決済の確認待ち（在庫はまだ確保していない）
func (o Order) AwaitingGatewayPayment() bool {
	return o.PaymentMethod == PaymentMethodGateway && o.PaymentStatus == PaymentStatusPending && !o.StockCommitted
}

// キャンセル・返品済みを除いた明細
func (o Order) ActiveItems() []OrderItem {
	out := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if !it.Status.Terminal() {
			out = append(out, it)
		}
	}
	return out
}
