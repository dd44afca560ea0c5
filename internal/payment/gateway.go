// Package payment は外部決済ゲートウェイとの境界。
package payment

import (
	"context"
	"errors"
)

var ErrInvalidAmount = errors.New("payment: amount must be positive")

type IntentRequest struct {
	// 通貨の最小単位ではなく整数の通貨単位
	Amount   int64
	Currency string
	// 注文コードやチャージ記録の参照
	Receipt  string
	Metadata map[string]string
}

type Intent struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// 決済インテントを作るだけ。完了通知は署名付きコールバックで受ける
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}
