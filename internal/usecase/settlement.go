package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/infra/events"
	"storefront/internal/payment"
	repo "storefront/internal/repository"
)

// 支払い方法ごとの確定処理。settle は Tx 内、afterCommit はコミット後に呼ばれる
type settlement interface {
	settle(ctx context.Context, r repo.TxRepos, draft model.Order) (model.Order, error)
	afterCommit(ctx context.Context, order model.Order) (*payment.Intent, error)
}

// 代引き：注文確定 → 在庫確定 → クーポン使用済み → カートを空に
type codSettlement struct{}

func (codSettlement) settle(ctx context.Context, r repo.TxRepos, draft model.Order) (model.Order, error) {
	order, err := createOrder(ctx, r, draft, model.OrderStatusConfirmed, model.PaymentStatusPending, true)
	if err != nil {
		return model.Order{}, err
	}
	if err := commitStock(ctx, r, order); err != nil {
		return model.Order{}, err
	}
	if err := markCouponUsed(ctx, r, order); err != nil {
		return model.Order{}, err
	}
	if err := clearCart(ctx, r, order.UserID); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (codSettlement) afterCommit(context.Context, model.Order) (*payment.Intent, error) {
	return nil, nil
}

// ウォレット：先に条件付きで引き落とし、足りなければ注文を作らない
type walletSettlement struct {
	ledger WalletLedger
}

func (s walletSettlement) settle(ctx context.Context, r repo.TxRepos, draft model.Order) (model.Order, error) {
	// 全額割引なら引き落としなしで支払済み
	if draft.TotalAmount == 0 {
		return commitPaid(ctx, r, draft, nil)
	}
	txn, err := s.ledger.Debit(ctx, r.Wallets(), LedgerEntry{
		UserID:      draft.UserID,
		Amount:      draft.TotalAmount,
		Reason:      model.WalletReasonOrderPayment,
		Description: "payment for order " + draft.Code,
	})
	if errors.Is(err, ErrInsufficientBalance) {
		w, werr := r.Wallets().GetOrCreate(ctx, draft.UserID)
		if werr != nil {
			return model.Order{}, dbError(werr)
		}
		return model.Order{}, NewBusinessError(http.StatusUnprocessableEntity, CodeInsufficientWallet,
			fmt.Sprintf("wallet balance %d is less than order total %d", w.Balance, draft.TotalAmount),
			map[string]any{"balance": w.Balance, "required": draft.TotalAmount})
	}
	if err != nil {
		return model.Order{}, dbError(err)
	}
	return commitPaid(ctx, r, draft, &txn)
}

func commitPaid(ctx context.Context, r repo.TxRepos, draft model.Order, txn *model.WalletTransaction) (model.Order, error) {
	order, err := createOrder(ctx, r, draft, model.OrderStatusConfirmed, model.PaymentStatusPaid, true)
	if err != nil {
		return model.Order{}, err
	}
	if err := commitStock(ctx, r, order); err != nil {
		return model.Order{}, err
	}
	if txn != nil {
		if err := r.Wallets().LinkTransactionOrder(ctx, txn.ID, order.ID); err != nil {
			return model.Order{}, dbError(err)
		}
	}
	if err := markCouponUsed(ctx, r, order); err != nil {
		return model.Order{}, err
	}
	if err := clearCart(ctx, r, order.UserID); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (walletSettlement) afterCommit(context.Context, model.Order) (*payment.Intent, error) {
	return nil, nil
}

// ゲートウェイ：注文だけ PENDING で作る。在庫・カート・クーポンは決済確認のコールバックで確定
type gatewaySettlement struct {
	tx       repo.TransactionManager
	gateway  payment.Gateway
	currency string
	clock    Clock
	events   eventSink
}

func (gatewaySettlement) settle(ctx context.Context, r repo.TxRepos, draft model.Order) (model.Order, error) {
	return createOrder(ctx, r, draft, model.OrderStatusPending, model.PaymentStatusPending, false)
}

// 決済インテントを作って注文に紐づける。作れなければ注文を FAILED にして 502
func (s gatewaySettlement) afterCommit(ctx context.Context, order model.Order) (*payment.Intent, error) {
	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:   order.TotalAmount,
		Currency: s.currency,
		Receipt:  order.Code,
		Metadata: map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"user_id":  strconv.FormatInt(order.UserID, 10),
		},
	})
	if err != nil {
		s.events.logger.Error("create payment intent failed",
			zap.Int64("order_id", order.ID),
			zap.String("order_code", order.Code),
			zap.Error(err),
		)
		if ferr := s.failOrder(ctx, order.ID); ferr != nil {
			s.events.logger.Error("mark order failed after gateway error", zap.Int64("order_id", order.ID), zap.Error(ferr))
		}
		return nil, NewBusinessError(http.StatusBadGateway, CodeGateway, "payment gateway unavailable",
			map[string]any{"order_id": order.ID, "order_code": order.Code})
	}

	if err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Orders().SetGatewayOrderID(ctx, order.ID, intent.ID)
	}); err != nil {
		return nil, dbError(err)
	}
	return &intent, nil
}

func (s gatewaySettlement) failOrder(ctx context.Context, orderID int64) error {
	var failed model.Order
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != model.OrderStatusPending || o.PaymentStatus != model.PaymentStatusPending {
			return nil
		}
		o.Status = model.OrderStatusFailed
		o.PaymentStatus = model.PaymentStatusFailed
		if err := r.Orders().UpdateState(ctx, o); err != nil {
			return err
		}
		failed = o
		return nil
	})
	if err == nil && failed.ID != 0 {
		s.events.emit(ctx, orderEvent(events.OrderPaymentFailed, failed, s.clock.Now()))
	}
	return err
}
