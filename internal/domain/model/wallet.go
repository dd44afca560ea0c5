package model

import "time"

// 残高は WalletTransaction の貸方合計 - 借方合計と常に一致する
type Wallet struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

type WalletDirection string

const (
	WalletDirectionCredit WalletDirection = "CREDIT"
	WalletDirectionDebit  WalletDirection = "DEBIT"
)

type WalletReason string

const (
	WalletReasonOrderRefund       WalletReason = "ORDER_REFUND"
	WalletReasonOrderCancelRefund WalletReason = "ORDER_CANCEL_REFUND"
	WalletReasonItemCancelRefund  WalletReason = "ITEM_CANCEL_REFUND"
	WalletReasonTopUp             WalletReason = "WALLET_TOPUP"
	WalletReasonOrderPayment      WalletReason = "ORDER_PAYMENT"
	WalletReasonReferralBonus     WalletReason = "REFERRAL_BONUS"
	WalletReasonAdminAdjustment   WalletReason = "ADMIN_ADJUSTMENT"
)

func (r WalletReason) Valid() bool {
	switch r {
	case WalletReasonOrderRefund, WalletReasonOrderCancelRefund, WalletReasonItemCancelRefund,
		WalletReasonTopUp, WalletReasonOrderPayment, WalletReasonReferralBonus, WalletReasonAdminAdjustment:
		return true
	}
	return false
}

// 追記専用。更新は OrderID の後付けのみ
type WalletTransaction struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID    int64           `gorm:"not null;index" json:"wallet_id"`
	UserID      int64           `gorm:"not null;index" json:"user_id"`
	Amount      int64           `gorm:"not null;check:amount > 0" json:"amount"`
	Direction   WalletDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Reason      WalletReason    `gorm:"type:varchar(40);not null;index" json:"reason"`
	OrderID     *int64          `gorm:"index" json:"order_id,omitempty"`
	Description string          `gorm:"type:varchar(500)" json:"description"`

	//外部決済の参照（チャージの二重計上防止）
	ExternalRef *string `gorm:"type:varchar(255);uniqueIndex" json:"external_ref,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

type WalletTopUpStatus string

const (
	WalletTopUpStatusPending  WalletTopUpStatus = "PENDING"
	WalletTopUpStatusCredited WalletTopUpStatus = "CREDITED"
)

// ウォレットチャージの決済待ち記録。金額はここで固定し、コールバック側の値は信用しない
type WalletTopUp struct {
	ID             int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64             `gorm:"not null;index" json:"user_id"`
	GatewayOrderID string            `gorm:"type:varchar(255);not null;uniqueIndex" json:"gateway_order_id"`
	Amount         int64             `gorm:"not null" json:"amount"`
	Status         WalletTopUpStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt      time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
