package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain/model"
)

func TestAdminUpdateStatus_DeliveryMarksCODPaid(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 1)
	placed := f.place(t, model.PaymentMethodCOD, "")

	deliver(t, f, placed.Order.ID)

	stored := f.store.Order(placed.Order.ID)
	assert.Equal(t, model.OrderStatusDelivered, stored.Status)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
	require.NotNil(t, stored.DeliveredAt)
	assert.Equal(t, f.clock.Now(), *stored.DeliveredAt)
	assert.Equal(t, model.OrderItemStatusDelivered, stored.Items[0].Status)

	logs := f.store.AuditLogs()
	require.Len(t, logs, 4)
	for _, l := range logs {
		assert.Equal(t, model.AuditActionUpdateOrderStatus, l.Action)
		assert.Equal(t, placed.Order.ID, l.ResourceID)
	}
	assert.Contains(t, logs[3].BeforeJSON, `"OUT_FOR_DELIVERY"`)
	assert.Contains(t, logs[3].AfterJSON, `"DELIVERED"`)
}

func TestAdminUpdateStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 1)
	placed := f.place(t, model.PaymentMethodCOD, "")
	ctx := context.Background()

	_, err := f.admin.UpdateStatus(ctx, f.adminID, placed.Order.ID, AdminUpdateOrderStatusInput{Status: "DELIVERED"})
	he := requireCode(t, err, CodeInvalidState)
	assert.Equal(t, 409, he.Status)

	_, err = f.admin.UpdateStatus(ctx, f.adminID, placed.Order.ID, AdminUpdateOrderStatusInput{Status: "LOST"})
	requireCode(t, err, CodeValidation)

	// 同じ状態なら何もしない
	out, err := f.admin.UpdateStatus(ctx, f.adminID, placed.Order.ID, AdminUpdateOrderStatusInput{Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", out.Status)
	assert.Empty(t, f.store.AuditLogs())

	_, err = f.admin.UpdateStatus(ctx, f.adminID, 9999, AdminUpdateOrderStatusInput{Status: "PROCESSING"})
	requireCode(t, err, CodeNotFound)
}

func TestAdminUpdateStatus_FailedOrderCannotProgress(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 1)
	placed := f.place(t, model.PaymentMethodGateway, "")
	_, err := f.payments.MarkFailed(context.Background(), f.user.ID, placed.Order.ID)
	require.NoError(t, err)

	_, err = f.admin.UpdateStatus(context.Background(), f.adminID, placed.Order.ID, AdminUpdateOrderStatusInput{Status: "PROCESSING"})
	requireCode(t, err, CodeInvalidState)

	_, err = f.admin.UpdateStatus(context.Background(), f.adminID, placed.Order.ID, AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	requireCode(t, err, CodeInvalidState)
}

func TestAdminList(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 1)
	f.place(t, model.PaymentMethodGateway, "")
	f.place(t, model.PaymentMethodCOD, "")
	ctx := context.Background()

	all, err := f.admin.List(ctx, AdminOrderListInput{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	pending, err := f.admin.List(ctx, AdminOrderListInput{Page: 1, Limit: 20, Status: "pending"})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, "GATEWAY", pending.Items[0].PaymentMethod)
	require.Len(t, pending.Items[0].Items, 1)

	_, err = f.admin.List(ctx, AdminOrderListInput{Page: 0, Limit: 20})
	requireCode(t, err, CodeValidation)
	_, err = f.admin.List(ctx, AdminOrderListInput{Page: 1, Limit: 20, Status: "LOST"})
	requireCode(t, err, CodeValidation)
	_, err = f.admin.List(ctx, AdminOrderListInput{Page: 1, Limit: 20, From: "yesterday"})
	requireCode(t, err, CodeValidation)

	later, err := f.admin.List(ctx, AdminOrderListInput{Page: 1, Limit: 20, From: "2026-03-02T00:00:00Z"})
	require.NoError(t, err)
	assert.Empty(t, later.Items)
}

func TestAdminCancelItem_WritesAudit(t *testing.T) {
	f := newFixture(t)
	placed, _, _ := placeTwoItemWalletOrder(t, f)

	_, err := f.admin.CancelItem(context.Background(), f.adminID, placed.Order.ID, placed.Order.Items[1].ID, "damaged")

	require.NoError(t, err)
	logs := f.store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionCancelOrderItem, logs[0].Action)
	assert.Contains(t, logs[0].AfterJSON, `"refund":750`)
	assertWalletConsistent(t, f.store, f.user.ID)
}
