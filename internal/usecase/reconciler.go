package usecase

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/infra/events"
	repo "storefront/internal/repository"
)

const maxReasonLength = 500

// 操作者。Admin なら所有者チェックをせず監査ログを残す
type Actor struct {
	UserID int64
	Admin  bool
}

// Reconciler はキャンセル・返品を扱う。
// 1操作 = 1Tx で、明細状態・在庫・ウォレット返金は全部通るか全部戻るか
type Reconciler struct {
	tx     repo.TransactionManager
	ledger WalletLedger
	clock  Clock
	events eventSink
	logger *zap.Logger
}

func NewReconciler(tx repo.TransactionManager, publisher events.Publisher, clock Clock, logger *zap.Logger) *Reconciler {
	sink := newEventSink(publisher, logger)
	return &Reconciler{tx: tx, clock: clock, events: sink, logger: sink.logger}
}

type reconcileResult struct {
	order   model.Order
	item    *model.OrderItem
	refund  int64
	changed bool
}

// CancelOrder は配送前の注文を丸ごとキャンセルする。キャンセル済みなら何もしない
func (u *Reconciler) CancelOrder(ctx context.Context, actor Actor, orderID int64, reason string) (OrderOutput, error) {
	reason, err := u.checkInput(actor, orderID, reason, false)
	if err != nil {
		return OrderOutput{}, err
	}

	var res reconcileResult
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := u.load(ctx, r, actor, orderID)
		if err != nil {
			return err
		}
		res.order = o
		if o.Status == model.OrderStatusCancelled {
			return nil
		}
		if !o.Status.Cancellable() {
			return errInvalidOrderState(o, "cancel")
		}
		before := orderAuditState(o)

		var cancelled []model.OrderItem
		for i := range o.Items {
			it := &o.Items[i]
			if it.Status.Terminal() {
				continue
			}
			it.Status = model.OrderItemStatusCancelled
			it.CancelReason = reason
			if err := r.OrderItems().UpdateState(ctx, *it); err != nil {
				return dbError(err)
			}
			cancelled = append(cancelled, *it)
		}
		if o.StockCommitted {
			if err := restock(ctx, r, o.ID, cancelled, model.InventoryReasonCancelRestock); err != nil {
				return err
			}
		}

		o.Status = model.OrderStatusCancelled
		o.CancelReason = reason
		if err := r.Orders().UpdateState(ctx, o); err != nil {
			return dbError(err)
		}

		var refund int64
		if o.PaymentStatus == model.PaymentStatusPaid && o.TotalAmount > 0 {
			refund = o.TotalAmount
			if err := u.refund(ctx, r, o, refund, model.WalletReasonOrderCancelRefund, "refund for cancelled order "+o.Code); err != nil {
				return err
			}
		}

		if actor.Admin {
			if err := writeAudit(ctx, r, actor.UserID, model.AuditActionCancelOrder, model.AuditResourceOrder, o.ID,
				before, withRefund(orderAuditState(o), refund), u.clock); err != nil {
				return err
			}
		}
		res = reconcileResult{order: o, refund: refund, changed: true}
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if res.changed {
		u.logger.Info("order cancelled", zap.Int64("order_id", res.order.ID), zap.Int64("refund", res.refund), zap.Bool("by_admin", actor.Admin))
		u.emit(ctx, events.OrderCancelled, res)
	}
	return toOrderOutput(res.order, res.order.Items), nil
}

// CancelItem は配送前の明細を1つキャンセルする。
// 残りの小計でクーポン条件を満たさなくなったら割引を取り消し、その分をこの明細の返金から差し引く
func (u *Reconciler) CancelItem(ctx context.Context, actor Actor, orderID, itemID int64, reason string) (OrderOutput, error) {
	reason, err := u.checkInput(actor, orderID, reason, false)
	if err != nil {
		return OrderOutput{}, err
	}
	if itemID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var res reconcileResult
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := u.load(ctx, r, actor, orderID)
		if err != nil {
			return err
		}
		res.order = o
		idx, ok := o.ItemByID(itemID)
		if !ok {
			return errNotFound("order item")
		}
		it := &o.Items[idx]
		if it.Status == model.OrderItemStatusCancelled {
			return nil
		}
		if it.Status != model.OrderItemStatusPending || !o.Status.Cancellable() {
			return errInvalidItemState(o, *it, "cancel")
		}
		// インテントの金額は変えられないので、決済前は注文全体のキャンセルのみ
		if o.AwaitingGatewayPayment() {
			return NewBusinessError(http.StatusConflict, CodeInvalidState,
				"cannot cancel a single item before payment is confirmed, cancel the whole order instead",
				map[string]any{"order_id": o.ID, "order_status": o.Status, "payment_status": o.PaymentStatus, "item_id": it.ID})
		}
		before := orderAuditState(o)

		it.Status = model.OrderItemStatusCancelled
		it.CancelReason = reason
		if err := r.OrderItems().UpdateState(ctx, *it); err != nil {
			return dbError(err)
		}
		if o.StockCommitted {
			if err := restock(ctx, r, o.ID, []model.OrderItem{*it}, model.InventoryReasonCancelRestock); err != nil {
				return err
			}
		}

		newSubtotal := o.SubtotalAmount - it.Subtotal
		discount := o.CouponDiscountAmount
		refund := it.Subtotal
		if discount > 0 && (newSubtotal < o.Coupon.MinPurchase || discount >= newSubtotal) {
			refund = max(0, it.Subtotal-discount)
			discount = 0
		}
		o.SubtotalAmount = newSubtotal
		o.CouponDiscountAmount = discount
		o.TotalAmount = newSubtotal - discount
		if o.AllItemsIn(model.OrderItemStatusCancelled) {
			o.Status = model.OrderStatusCancelled
			o.CancelReason = reason
		}
		if err := r.Orders().UpdateState(ctx, o); err != nil {
			return dbError(err)
		}

		if o.PaymentStatus != model.PaymentStatusPaid {
			refund = 0
		}
		if refund > 0 {
			if err := u.refund(ctx, r, o, refund, model.WalletReasonItemCancelRefund, "refund for cancelled item "+it.ProductNameSnapshot); err != nil {
				return err
			}
		}

		if actor.Admin {
			after := withRefund(orderAuditState(o), refund)
			after["item_id"] = it.ID
			if err := writeAudit(ctx, r, actor.UserID, model.AuditActionCancelOrderItem, model.AuditResourceOrder, o.ID,
				before, after, u.clock); err != nil {
				return err
			}
		}
		item := *it
		res = reconcileResult{order: o, item: &item, refund: refund, changed: true}
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if res.changed {
		u.logger.Info("order item cancelled",
			zap.Int64("order_id", res.order.ID),
			zap.Int64("item_id", itemID),
			zap.Int64("refund", res.refund),
			zap.Int64("total", res.order.TotalAmount),
		)
		u.emit(ctx, events.OrderItemCancelled, res)
		if res.order.Status == model.OrderStatusCancelled {
			u.emit(ctx, events.OrderCancelled, reconcileResult{order: res.order})
		}
	}
	return toOrderOutput(res.order, res.order.Items), nil
}

// RequestReturn は配送済み明細の返品申請（本人のみ）
func (u *Reconciler) RequestReturn(ctx context.Context, userID, orderID, itemID int64, reason string) (OrderOutput, error) {
	reason, err := u.checkInput(Actor{UserID: userID}, orderID, reason, true)
	if err != nil {
		return OrderOutput{}, err
	}
	if itemID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var out model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := u.load(ctx, r, Actor{UserID: userID}, orderID)
		if err != nil {
			return err
		}
		idx, ok := o.ItemByID(itemID)
		if !ok {
			return errNotFound("order item")
		}
		it := &o.Items[idx]
		if it.Status != model.OrderItemStatusDelivered {
			return errInvalidItemState(o, *it, "return")
		}

		now := u.clock.Now()
		it.Status = model.OrderItemStatusReturnRequested
		it.ReturnReason = reason
		it.ReturnRequestedAt = &now
		if err := r.OrderItems().UpdateState(ctx, *it); err != nil {
			return dbError(err)
		}
		out = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(out, out.Items), nil
}

// ApproveReturn は在庫を戻し、明細の確定小計をウォレットへ返金する
func (u *Reconciler) ApproveReturn(ctx context.Context, actorAdminUserID, orderID, itemID int64) (OrderOutput, error) {
	actor := Actor{UserID: actorAdminUserID, Admin: true}
	if _, err := u.checkInput(actor, orderID, "", false); err != nil {
		return OrderOutput{}, err
	}

	var res reconcileResult
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, it, err := u.loadReturnRequested(ctx, r, actor, orderID, itemID)
		if err != nil {
			return err
		}
		before := orderAuditState(o)

		now := u.clock.Now()
		it.Status = model.OrderItemStatusReturned
		it.ReturnApprovedAt = &now
		if err := r.OrderItems().UpdateState(ctx, *it); err != nil {
			return dbError(err)
		}
		if err := restock(ctx, r, o.ID, []model.OrderItem{*it}, model.InventoryReasonReturnRestock); err != nil {
			return err
		}

		var refund int64
		if o.PaymentStatus == model.PaymentStatusPaid && it.Subtotal > 0 {
			refund = it.Subtotal
			if err := u.refund(ctx, r, o, refund, model.WalletReasonOrderRefund, "refund for returned item "+it.ProductNameSnapshot); err != nil {
				return err
			}
		}

		if o.AllItemsIn(model.OrderItemStatusReturned, model.OrderItemStatusCancelled) {
			o.Status = model.OrderStatusReturned
			if err := r.Orders().UpdateState(ctx, o); err != nil {
				return dbError(err)
			}
		}

		after := withRefund(orderAuditState(o), refund)
		after["item_id"] = it.ID
		if err := writeAudit(ctx, r, actor.UserID, model.AuditActionApproveReturn, model.AuditResourceOrder, o.ID,
			before, after, u.clock); err != nil {
			return err
		}
		item := *it
		res = reconcileResult{order: o, item: &item, refund: refund, changed: true}
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("return approved", zap.Int64("order_id", orderID), zap.Int64("item_id", itemID), zap.Int64("refund", res.refund))
	u.emit(ctx, events.OrderReturnApproved, res)
	return toOrderOutput(res.order, res.order.Items), nil
}

// RejectReturn は明細を配送済みに戻し、申請理由を消す
func (u *Reconciler) RejectReturn(ctx context.Context, actorAdminUserID, orderID, itemID int64) (OrderOutput, error) {
	actor := Actor{UserID: actorAdminUserID, Admin: true}
	if _, err := u.checkInput(actor, orderID, "", false); err != nil {
		return OrderOutput{}, err
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, it, err := u.loadReturnRequested(ctx, r, actor, orderID, itemID)
		if err != nil {
			return err
		}
		before := map[string]any{"item_id": it.ID, "item_status": it.Status, "return_reason": it.ReturnReason}

		it.Status = model.OrderItemStatusDelivered
		it.ReturnReason = ""
		it.ReturnRequestedAt = nil
		if err := r.OrderItems().UpdateState(ctx, *it); err != nil {
			return dbError(err)
		}
		if err := writeAudit(ctx, r, actor.UserID, model.AuditActionRejectReturn, model.AuditResourceOrder, o.ID,
			before, map[string]any{"item_id": it.ID, "item_status": it.Status}, u.clock); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(out, out.Items), nil
}

func (u *Reconciler) checkInput(actor Actor, orderID int64, reason string, reasonRequired bool) (string, error) {
	if actor.UserID <= 0 {
		return "", errUnauthorized()
	}
	if orderID <= 0 {
		return "", NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	reason = strings.TrimSpace(reason)
	if reasonRequired && reason == "" {
		return "", NewHTTPError(http.StatusBadRequest, "reason is required")
	}
	if len(reason) > maxReasonLength {
		return "", NewHTTPError(http.StatusBadRequest, "reason is too long")
	}
	return reason, nil
}

func (u *Reconciler) load(ctx context.Context, r repo.TxRepos, actor Actor, orderID int64) (model.Order, error) {
	o, err := loadOrder(ctx, r, orderID, true)
	if err != nil {
		return model.Order{}, err
	}
	if !actor.Admin {
		if err := ensureOwner(o, actor.UserID); err != nil {
			return model.Order{}, err
		}
	}
	return o, nil
}

func (u *Reconciler) loadReturnRequested(ctx context.Context, r repo.TxRepos, actor Actor, orderID, itemID int64) (model.Order, *model.OrderItem, error) {
	if itemID <= 0 {
		return model.Order{}, nil, NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	o, err := u.load(ctx, r, actor, orderID)
	if err != nil {
		return model.Order{}, nil, err
	}
	idx, ok := o.ItemByID(itemID)
	if !ok {
		return model.Order{}, nil, errNotFound("order item")
	}
	if o.Items[idx].Status != model.OrderItemStatusReturnRequested {
		return model.Order{}, nil, errInvalidItemState(o, o.Items[idx], "review return for")
	}
	return o, &o.Items[idx], nil
}

func (u *Reconciler) refund(ctx context.Context, r repo.TxRepos, o model.Order, amount int64, reason model.WalletReason, desc string) error {
	orderID := o.ID
	if _, err := u.ledger.Credit(ctx, r.Wallets(), LedgerEntry{
		UserID:      o.UserID,
		Amount:      amount,
		Reason:      reason,
		OrderID:     &orderID,
		Description: desc,
	}); err != nil {
		return dbError(err)
	}
	return nil
}

func (u *Reconciler) emit(ctx context.Context, typ string, res reconcileResult) {
	now := u.clock.Now()
	ev := orderEvent(typ, res.order, now)
	if res.item != nil {
		ev.Attributes["item_id"] = res.item.ID
	}
	if res.refund > 0 {
		ev.Attributes["refund"] = res.refund
	}
	u.events.emit(ctx, ev)
	if res.refund > 0 {
		u.events.emit(ctx, events.Event{
			Type:       events.WalletCredited,
			OrderID:    res.order.ID,
			OrderCode:  res.order.Code,
			UserID:     res.order.UserID,
			Amount:     res.refund,
			OccurredAt: now,
		})
	}
}

func errInvalidItemState(o model.Order, it model.OrderItem, action string) error {
	return NewBusinessError(http.StatusConflict, CodeInvalidState,
		"cannot "+action+" item in status "+string(it.Status),
		map[string]any{"order_id": o.ID, "order_status": o.Status, "item_id": it.ID, "item_status": it.Status})
}

func orderAuditState(o model.Order) map[string]any {
	return map[string]any{
		"status":                 o.Status,
		"payment_status":         o.PaymentStatus,
		"subtotal_amount":        o.SubtotalAmount,
		"coupon_discount_amount": o.CouponDiscountAmount,
		"total_amount":           o.TotalAmount,
	}
}

func withRefund(m map[string]any, refund int64) map[string]any {
	if refund > 0 {
		m["refund"] = refund
	}
	return m
}
