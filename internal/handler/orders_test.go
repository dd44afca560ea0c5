package handler_test

import (
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackBody(a *app, out usecase.PlaceOrderOutput, paymentID string) map[string]any {
	return map[string]any{
		"order_id":           out.Order.ID,
		"gateway_order_id":   out.Payment.ID,
		"gateway_payment_id": paymentID,
		"signature":          a.verifier.Sign(out.Payment.ID, paymentID),
	}
}

func TestGateway_CallbackConfirmsOrder(t *testing.T) {
	a := newApp(t)
	p := a.product("Canvas Sneakers", 2500, 0, 3)

	out := a.placeOrder(p, 1, "gateway", "")
	require.NotNil(t, out.Payment)
	assert.Equal(t, "PENDING", out.Order.Status)
	assert.Equal(t, int64(2500), out.Payment.Amount)
	// 確定するまで在庫は動かない
	assert.Equal(t, int64(3), a.store.Product(p.ID).Stock)

	// 署名違いは認証なしの経路でも拒否
	bad := callbackBody(a, out, "pay_1")
	bad["signature"] = "deadbeef"
	rec := a.do(http.MethodPost, "/payments/callback", nil, bad)
	requireError(t, rec, http.StatusBadRequest, usecase.CodePaymentVerification)
	assert.Equal(t, model.PaymentStatusPending, a.store.Order(out.Order.ID).PaymentStatus)

	rec = a.do(http.MethodPost, "/payments/callback", nil, callbackBody(a, out, "pay_1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decode[usecase.OrderOutput](t, rec)
	assert.Equal(t, "CONFIRMED", order.Status)
	assert.Equal(t, "PAID", order.PaymentStatus)
	assert.Equal(t, int64(2), a.store.Product(p.ID).Stock)

	// ブラウザ側からの二重確認は何もしない
	rec = a.do(http.MethodPost, "/payments/verify", &a.user, callbackBody(a, out, "pay_1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), a.store.Product(p.ID).Stock)
}

func TestGateway_VerifyByOtherUserIsForbidden(t *testing.T) {
	a := newApp(t)
	p := a.product("Canvas Sneakers", 2500, 0, 3)
	out := a.placeOrder(p, 1, "gateway", "")

	rec := a.do(http.MethodPost, "/payments/verify", &a.other, callbackBody(a, out, "pay_1"))

	requireError(t, rec, http.StatusForbidden, usecase.CodeForbidden)
}

func TestGateway_PaymentFailed(t *testing.T) {
	a := newApp(t)
	p := a.product("Canvas Sneakers", 2500, 0, 3)
	out := a.placeOrder(p, 1, "gateway", "")

	rec := a.do(http.MethodPost, "/orders/"+itoa(out.Order.ID)+"/payment-failed", &a.user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "FAILED", decode[usecase.OrderOutput](t, rec).Status)

	// 失敗後に届いた通知は 409
	rec = a.do(http.MethodPost, "/payments/callback", nil, callbackBody(a, out, "pay_late"))
	requireError(t, rec, http.StatusConflict, usecase.CodeOrderNotAwaitingPayment)
	assert.Equal(t, int64(3), a.store.Product(p.ID).Stock)
}

func TestOrders_ListDetailCancel(t *testing.T) {
	a := newApp(t)
	p := a.product("Linen Shirt", 1000, 0, 10)
	first := a.placeOrder(p, 1, "cod", "")
	second := a.placeOrder(p, 2, "cod", "")

	rec := a.do(http.MethodGet, "/orders?page=1&limit=10", &a.user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[usecase.Page[usecase.OrderOutput]](t, rec)
	require.Len(t, page.Items, 2)
	assert.Equal(t, second.Order.ID, page.Items[0].ID)

	rec = a.do(http.MethodGet, "/orders/"+itoa(first.Order.ID), &a.other, nil)
	requireError(t, rec, http.StatusForbidden, usecase.CodeForbidden)

	rec = a.do(http.MethodPost, "/orders/"+itoa(first.Order.ID)+"/cancel", &a.user, map[string]any{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decode[usecase.OrderOutput](t, rec).Status)
	assert.Equal(t, int64(8), a.store.Product(p.ID).Stock)

	// 二度目は何もしない
	rec = a.do(http.MethodPost, "/orders/"+itoa(first.Order.ID)+"/cancel", &a.user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(8), a.store.Product(p.ID).Stock)

	requireError(t, a.do(http.MethodGet, "/orders/x", &a.user, nil), http.StatusBadRequest, usecase.CodeValidation)
}

func TestOrders_CancelItem(t *testing.T) {
	a := newApp(t)
	p := a.product("Linen Shirt", 1000, 0, 10)
	out := a.placeOrder(p, 2, "cod", "")
	itemID := itoa(out.Order.Items[0].ID)

	rec := a.do(http.MethodPost, "/orders/"+itoa(out.Order.ID)+"/items/"+itemID+"/cancel", &a.user, map[string]any{"reason": "size"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decode[usecase.OrderOutput](t, rec)
	assert.Equal(t, "CANCELLED", order.Items[0].Status)
	assert.Equal(t, int64(10), a.store.Product(p.ID).Stock)

	rec = a.do(http.MethodPost, "/orders/"+itoa(out.Order.ID)+"/items/abc/cancel", &a.user, nil)
	requireError(t, rec, http.StatusBadRequest, usecase.CodeValidation)
}
