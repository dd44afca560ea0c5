package handler_test

import (
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *app) setStatus(orderID int64, status string) {
	a.t.Helper()
	rec := a.do(http.MethodPut, "/admin/orders/"+itoa(orderID)+"/status", &a.admin, map[string]any{"status": status})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	a := newApp(t)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/admin/orders", nil, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/admin/orders", &a.user, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/admin/users/1/wallet/adjust", &a.user,
		map[string]any{"direction": "CREDIT", "amount": 100}).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/admin/orders", &a.admin, nil).Code)
}

func TestAdmin_ListFilters(t *testing.T) {
	a := newApp(t)
	p := a.product("Linen Shirt", 1000, 0, 10)
	a.placeOrder(p, 1, "cod", "")

	rec := a.do(http.MethodGet, "/admin/orders?status=CONFIRMED&user_id="+itoa(a.user.ID), &a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[usecase.Page[usecase.OrderOutput]](t, rec).Items, 1)

	rec = a.do(http.MethodGet, "/admin/orders?user_id="+itoa(a.other.ID), &a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[usecase.Page[usecase.OrderOutput]](t, rec).Items)

	requireError(t, a.do(http.MethodGet, "/admin/orders?from=yesterday", &a.admin, nil), http.StatusBadRequest, usecase.CodeValidation)
	requireError(t, a.do(http.MethodGet, "/admin/orders?user_id=x", &a.admin, nil), http.StatusBadRequest, usecase.CodeValidation)
}

func TestAdmin_DeliverThenReturnApproved(t *testing.T) {
	a := newApp(t)
	p := a.product("Linen Shirt", 1000, 0, 10)
	out := a.placeOrder(p, 1, "cod", "")
	orderPath := "/orders/" + itoa(out.Order.ID)
	itemPath := orderPath + "/items/" + itoa(out.Order.Items[0].ID)

	// 一足飛びの遷移は不可
	rec := a.do(http.MethodPut, "/admin"+orderPath+"/status", &a.admin, map[string]any{"status": "DELIVERED"})
	requireError(t, rec, http.StatusConflict, usecase.CodeInvalidState)

	for _, s := range []string{"PROCESSING", "SHIPPED", "OUT_FOR_DELIVERY", "DELIVERED"} {
		a.setStatus(out.Order.ID, s)
	}
	stored := a.store.Order(out.Order.ID)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)

	// 配送後のキャンセルは不可
	rec = a.do(http.MethodPost, orderPath+"/cancel", &a.user, nil)
	requireError(t, rec, http.StatusConflict, usecase.CodeInvalidState)

	// 理由なしの返品申請は入力エラー
	rec = a.do(http.MethodPost, itemPath+"/return", &a.user, map[string]any{})
	requireError(t, rec, http.StatusBadRequest, usecase.CodeValidation)

	rec = a.do(http.MethodPost, itemPath+"/return", &a.user, map[string]any{"reason": "torn"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "RETURN_REQUESTED", decode[usecase.OrderOutput](t, rec).Items[0].Status)

	rec = a.do(http.MethodGet, "/admin/returns", &a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[usecase.Page[usecase.ReturnRequestOutput]](t, rec)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, out.Order.ID, queue.Items[0].OrderID)

	rec = a.do(http.MethodPost, "/admin"+itemPath+"/return/approve", &a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "RETURNED", decode[usecase.OrderOutput](t, rec).Items[0].Status)

	// 返金は明細の小計、在庫は戻る
	assert.Equal(t, int64(1000), a.store.Wallet(a.user.ID).Balance)
	assert.Equal(t, int64(10), a.store.Product(p.ID).Stock)

	rec = a.do(http.MethodGet, "/admin/returns", &a.admin, nil)
	assert.Empty(t, decode[usecase.Page[usecase.ReturnRequestOutput]](t, rec).Items)
}

func TestAdmin_RejectReturn(t *testing.T) {
	a := newApp(t)
	p := a.product("Linen Shirt", 1000, 0, 10)
	out := a.placeOrder(p, 1, "cod", "")
	for _, s := range []string{"PROCESSING", "SHIPPED", "OUT_FOR_DELIVERY", "DELIVERED"} {
		a.setStatus(out.Order.ID, s)
	}
	itemPath := "/orders/" + itoa(out.Order.ID) + "/items/" + itoa(out.Order.Items[0].ID)
	a.do(http.MethodPost, itemPath+"/return", &a.user, map[string]any{"reason": "torn"})

	rec := a.do(http.MethodPost, "/admin"+itemPath+"/return/reject", &a.admin, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "DELIVERED", decode[usecase.OrderOutput](t, rec).Items[0].Status)
	assert.Equal(t, int64(0), a.store.Wallet(a.user.ID).Balance)
}

func TestAdmin_CancelItemOnBehalf(t *testing.T) {
	a := newApp(t)
	p := a.product("Linen Shirt", 1000, 0, 10)
	out := a.placeOrder(p, 1, "cod", "")
	itemPath := "/admin/orders/" + itoa(out.Order.ID) + "/items/" + itoa(out.Order.Items[0].ID) + "/cancel"

	rec := a.do(http.MethodPost, itemPath, &a.admin, map[string]any{"reason": "out of stock at warehouse"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decode[usecase.OrderOutput](t, rec).Items[0].Status)
	require.NotEmpty(t, a.store.AuditLogs())
}

func TestWallet_AdjustAndPay(t *testing.T) {
	a := newApp(t)
	p := a.product("Linen Shirt", 1000, 0, 10)

	adjust := "/admin/users/" + itoa(a.user.ID) + "/wallet/adjust"
	requireError(t, a.do(http.MethodPost, adjust, &a.admin, map[string]any{"direction": "SIDEWAYS", "amount": 10}),
		http.StatusBadRequest, usecase.CodeValidation)
	requireError(t, a.do(http.MethodPost, "/admin/users/9999/wallet/adjust", &a.admin, map[string]any{"direction": "CREDIT", "amount": 10}),
		http.StatusNotFound, usecase.CodeNotFound)

	rec := a.do(http.MethodPost, adjust, &a.admin, map[string]any{"direction": "credit", "amount": 1500, "description": "goodwill"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1500), decode[usecase.WalletOutput](t, rec).Balance)

	out := a.placeOrder(p, 1, "wallet", "")
	assert.Equal(t, "PAID", out.Order.PaymentStatus)

	rec = a.do(http.MethodGet, "/wallet", &a.user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500), decode[usecase.WalletOutput](t, rec).Balance)

	rec = a.do(http.MethodGet, "/wallet/transactions?limit=10", &a.user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txns := decode[usecase.Page[model.WalletTransaction]](t, rec)
	require.Len(t, txns.Items, 2)
	assert.Equal(t, model.WalletDirectionDebit, txns.Items[0].Direction)
	assert.Equal(t, int64(1000), txns.Items[0].Amount)
}

func TestWallet_TopUp(t *testing.T) {
	a := newApp(t)

	requireError(t, a.do(http.MethodPost, "/wallet/topups", &a.user, map[string]any{"amount": 0}),
		http.StatusBadRequest, usecase.CodeValidation)

	rec := a.do(http.MethodPost, "/wallet/topups", &a.user, map[string]any{"amount": 700})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	topUp := decode[usecase.TopUpOutput](t, rec)
	require.NotEmpty(t, topUp.Payment.ID)

	body := map[string]any{
		"gateway_order_id":   topUp.Payment.ID,
		"gateway_payment_id": "pay_topup",
		"signature":          a.verifier.Sign(topUp.Payment.ID, "pay_topup"),
	}
	rec = a.do(http.MethodPost, "/wallet/topups/verify", &a.user, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(700), decode[usecase.WalletOutput](t, rec).Balance)

	// 再送しても二重には入らない
	rec = a.do(http.MethodPost, "/wallet/topups/verify", &a.user, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(700), a.store.Wallet(a.user.ID).Balance)

	body["signature"] = "bad"
	requireError(t, a.do(http.MethodPost, "/wallet/topups/verify", &a.user, body), http.StatusBadRequest, usecase.CodePaymentVerification)
}

func TestWallet_Referral(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodPost, "/wallet/referral", &a.other, map[string]any{"code": "BUYER"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(50), decode[usecase.WalletOutput](t, rec).Balance)
	assert.Equal(t, int64(100), a.store.Wallet(a.user.ID).Balance)

	rec = a.do(http.MethodPost, "/wallet/referral", &a.other, map[string]any{"code": "BUYER"})
	assert.GreaterOrEqual(t, rec.Code, 400)
}
