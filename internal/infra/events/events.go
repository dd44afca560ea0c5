// Package events はコミット後のドメインイベントを外部へ流す。
// 送信失敗は注文処理を失敗させない（呼び出し側でログのみ）。
package events

import (
	"context"
	"time"
)

const (
	OrderPlaced         = "order.placed"
	OrderPaid           = "order.paid"
	OrderPaymentFailed  = "order.payment_failed"
	OrderCancelled      = "order.cancelled"
	OrderItemCancelled  = "order.item_cancelled"
	OrderReturnApproved = "order.return_approved"
	WalletCredited      = "wallet.credited"
)

type Event struct {
	Type       string         `json:"type"`
	OrderID    int64          `json:"order_id,omitempty"`
	OrderCode  string         `json:"order_code,omitempty"`
	UserID     int64          `json:"user_id"`
	Amount     int64          `json:"amount,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
