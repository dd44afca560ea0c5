package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrSignatureMismatch = errors.New("payment: signature mismatch")

// ゲートウェイから届いた未検証の値
type RawCallback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// 署名検証を通った値。この型以外で注文を更新しない
type VerifiedCallback struct {
	gatewayOrderID   string
	gatewayPaymentID string
}

func (v VerifiedCallback) GatewayOrderID() string   { return v.gatewayOrderID }
func (v VerifiedCallback) GatewayPaymentID() string { return v.gatewayPaymentID }

// HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID) を16進で比較する
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) Verify(raw RawCallback) (VerifiedCallback, error) {
	orderID := strings.TrimSpace(raw.GatewayOrderID)
	paymentID := strings.TrimSpace(raw.GatewayPaymentID)
	if orderID == "" || paymentID == "" || raw.Signature == "" || len(v.secret) == 0 {
		return VerifiedCallback{}, ErrSignatureMismatch
	}

	given, err := hex.DecodeString(strings.TrimSpace(raw.Signature))
	if err != nil {
		return VerifiedCallback{}, ErrSignatureMismatch
	}
	if !hmac.Equal(given, v.mac(orderID, paymentID)) {
		return VerifiedCallback{}, ErrSignatureMismatch
	}
	return VerifiedCallback{gatewayOrderID: orderID, gatewayPaymentID: paymentID}, nil
}

// ゲートウェイ側と同じ方式で署名する（サンドボックスとテスト用）
func (v *SignatureVerifier) Sign(gatewayOrderID, gatewayPaymentID string) string {
	return hex.EncodeToString(v.mac(gatewayOrderID, gatewayPaymentID))
}

func (v *SignatureVerifier) mac(orderID, paymentID string) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(orderID + "|" + paymentID))
	return m.Sum(nil)
}
