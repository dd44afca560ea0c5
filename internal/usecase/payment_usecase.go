package usecase

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/infra/events"
	"storefront/internal/logger"
	"storefront/internal/payment"
	repo "storefront/internal/repository"
)

// PaymentUsecase はゲートウェイ決済の完了通知を受けて注文を確定する。
// 通知は何度来てもよい（2回目以降は何もせず成功）
type PaymentUsecase struct {
	tx       repo.TransactionManager
	verifier CallbackVerifier
	clock    Clock
	events   eventSink
	logger   *zap.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, verifier CallbackVerifier, publisher events.Publisher, clock Clock, logger *zap.Logger) *PaymentUsecase {
	sink := newEventSink(publisher, logger)
	return &PaymentUsecase{tx: tx, verifier: verifier, clock: clock, events: sink, logger: sink.logger}
}

type VerifyPaymentInput struct {
	OrderID          int64
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type captureResult struct {
	order      model.Order
	duplicate  bool
	captureErr error
}

// VerifyPayment は署名を検証してから注文をロックし、在庫・クーポン・カートを確定する。
// userID が 0 のときはゲートウェイからの直接通知として所有者チェックをしない
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, userID int64, in VerifyPaymentInput) (OrderOutput, error) {
	if in.OrderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}

	verified, err := u.verifier.Verify(payment.RawCallback{
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		Signature:        in.Signature,
	})
	if err != nil {
		u.logger.Warn("payment callback rejected",
			zap.Int64("order_id", in.OrderID),
			zap.String("gateway_order_id", in.GatewayOrderID),
			zap.Error(err),
		)
		return OrderOutput{}, errPaymentVerification(in.OrderID)
	}

	var res captureResult
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := loadOrder(ctx, r, in.OrderID, true)
		if err != nil {
			return err
		}
		if userID > 0 {
			if err := ensureOwner(o, userID); err != nil {
				return err
			}
		}
		// 署名は正しくても別注文のインテント
		if o.PaymentMethod != model.PaymentMethodGateway || o.GatewayOrderID != verified.GatewayOrderID() {
			return errPaymentVerification(o.ID)
		}

		if o.PaymentStatus == model.PaymentStatusPaid {
			res = captureResult{order: o, duplicate: true}
			return nil
		}
		if o.Status != model.OrderStatusPending || o.PaymentStatus != model.PaymentStatusPending {
			res = captureResult{order: o}
			return NewBusinessError(http.StatusConflict, CodeOrderNotAwaitingPayment,
				"order is not awaiting payment",
				map[string]any{"order_id": o.ID, "status": o.Status, "payment_status": o.PaymentStatus})
		}

		o.GatewayPaymentID = verified.GatewayPaymentID()
		held := o
		held.Items = o.ActiveItems()

		// 決済ページにいる間に販売停止・削除された商品
		gone, err := unavailableProduct(ctx, r, held.Items)
		if err != nil {
			return err
		}
		if gone != 0 {
			res = captureResult{captureErr: errPostCapture(o, "product is no longer available", map[string]any{"product_id": gone})}
			return u.failCaptured(ctx, r, &o, &res)
		}
		if err := commitStock(ctx, r, held); err != nil {
			he, ok := AsHTTPError(err)
			if !ok || he.Code != CodeStockConflict {
				return err
			}
			res = captureResult{captureErr: errPostCapture(o, "stock is no longer available", he.Details)}
			return u.failCaptured(ctx, r, &o, &res)
		}
		if err := markCouponUsed(ctx, r, o); err != nil {
			he, ok := AsHTTPError(err)
			if !ok || he.Code != CodeCouponAlreadyUsed {
				return err
			}
			if err := restock(ctx, r, o.ID, held.Items, model.InventoryReasonRollback); err != nil {
				return err
			}
			res = captureResult{captureErr: errPostCapture(o, "coupon was already used", he.Details)}
			return u.failCaptured(ctx, r, &o, &res)
		}

		o.Status = model.OrderStatusConfirmed
		o.PaymentStatus = model.PaymentStatusPaid
		o.StockCommitted = true
		if err := r.Orders().UpdateState(ctx, o); err != nil {
			return dbError(err)
		}
		if err := clearCart(ctx, r, o.UserID); err != nil {
			return err
		}
		res = captureResult{order: o}
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok && he.Code == CodeOrderNotAwaitingPayment {
			u.logger.Error("verified payment for order not awaiting payment",
				zap.Int64("order_id", in.OrderID),
				zap.String("status", string(res.order.Status)),
				zap.String("gateway_payment_id", verified.GatewayPaymentID()),
				logger.ManualReconciliation(),
			)
		}
		return OrderOutput{}, err
	}

	o := res.order
	switch {
	case res.captureErr != nil:
		u.logger.Error("payment captured but order could not be fulfilled",
			zap.Int64("order_id", o.ID),
			zap.String("order_code", o.Code),
			zap.String("gateway_payment_id", o.GatewayPaymentID),
			zap.Error(res.captureErr),
			logger.ManualReconciliation(),
		)
		u.events.emit(ctx, orderEvent(events.OrderPaymentFailed, o, u.clock.Now()))
		return OrderOutput{}, res.captureErr
	case res.duplicate:
		u.logger.Info("duplicate payment callback", zap.Int64("order_id", o.ID))
	default:
		u.logger.Info("payment captured", zap.Int64("order_id", o.ID), zap.String("order_code", o.Code))
		u.events.emit(ctx, orderEvent(events.OrderPaid, o, u.clock.Now()))
	}
	return toOrderOutput(o, o.Items), nil
}

// 購入できなくなった最初の商品IDを返す（全て購入可能なら 0）
func unavailableProduct(ctx context.Context, r repo.TxRepos, items []model.OrderItem) (int64, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return 0, dbError(err)
	}
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.IsPurchasable() {
			return it.ProductID, nil
		}
	}
	return 0, nil
}

// 決済済みだが確定できない注文を FAILED で残す（Tx はコミットする）
func (u *PaymentUsecase) failCaptured(ctx context.Context, r repo.TxRepos, o *model.Order, res *captureResult) error {
	o.Status = model.OrderStatusFailed
	o.PaymentStatus = model.PaymentStatusFailed
	o.StockCommitted = false
	if err := r.Orders().UpdateState(ctx, *o); err != nil {
		return dbError(err)
	}
	res.order = *o
	return nil
}

// MarkFailed は決済待ちのまま放置された注文を FAILED にする
func (u *PaymentUsecase) MarkFailed(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		out     model.Order
		changed bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := loadOrder(ctx, r, orderID, true)
		if err != nil {
			return err
		}
		if err := ensureOwner(o, userID); err != nil {
			return err
		}
		out = o
		if o.Status == model.OrderStatusFailed {
			return nil
		}
		if o.Status != model.OrderStatusPending || o.PaymentStatus != model.PaymentStatusPending {
			return errInvalidOrderState(o, "fail")
		}

		o.Status = model.OrderStatusFailed
		o.PaymentStatus = model.PaymentStatusFailed
		if err := r.Orders().UpdateState(ctx, o); err != nil {
			return dbError(err)
		}
		out, changed = o, true
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	if changed {
		u.logger.Info("order marked payment failed", zap.Int64("order_id", out.ID))
		u.events.emit(ctx, orderEvent(events.OrderPaymentFailed, out, u.clock.Now()))
	}
	return toOrderOutput(out, out.Items), nil
}

func errPaymentVerification(orderID int64) error {
	return NewBusinessError(http.StatusBadRequest, CodePaymentVerification, "payment verification failed",
		map[string]any{"order_id": orderID})
}

func errPostCapture(o model.Order, reason string, details map[string]any) error {
	d := map[string]any{
		"order_id":              o.ID,
		"order_code":            o.Code,
		"gateway_payment_id":    o.GatewayPaymentID,
		"manual_reconciliation": true,
	}
	for k, v := range details {
		if k != "retryable" {
			d[k] = v
		}
	}
	return NewBusinessError(http.StatusConflict, CodePostCaptureInconsistency,
		"payment received but order could not be completed: "+reason, d)
}
