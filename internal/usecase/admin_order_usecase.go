package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 管理者が進められる前進遷移
var adminTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusConfirmed:      {model.OrderStatusProcessing},
	model.OrderStatusPaid:           {model.OrderStatusProcessing},
	model.OrderStatusProcessing:     {model.OrderStatusShipped},
	model.OrderStatusShipped:        {model.OrderStatusOutForDelivery},
	model.OrderStatusOutForDelivery: {model.OrderStatusDelivered},
}

type AdminOrderUsecase struct {
	tx         repo.TransactionManager
	reconciler *Reconciler
	clock      Clock
	logger     *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, reconciler *Reconciler, clock Clock, logger *zap.Logger) *AdminOrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, reconciler: reconciler, clock: clock, logger: logger}
}

type AdminOrderListInput struct {
	Page   int
	Limit  int
	Status string
	UserID int64
	From   string
	To     string
}

type AdminUpdateOrderStatusInput struct {
	Status string
	Reason string
}

type ReturnRequestOutput struct {
	OrderID int64           `json:"order_id"`
	Item    OrderItemOutput `json:"item"`
}

// 注文一覧（期間は RFC3339）
func (u *AdminOrderUsecase) List(ctx context.Context, in AdminOrderListInput) (Page[OrderOutput], error) {
	if in.Page < 1 {
		return Page[OrderOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return Page[OrderOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	f := repo.AdminOrderListFilter{Page: in.Page, Limit: in.Limit}
	if s := strings.ToUpper(strings.TrimSpace(in.Status)); s != "" {
		if !knownOrderStatus(model.OrderStatus(s)) {
			return Page[OrderOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = s
	}
	if in.UserID > 0 {
		uid := in.UserID
		f.UserID = &uid
	}
	if in.From != "" {
		t, ok := parseDateTimeRFC3339(in.From)
		if !ok {
			return Page[OrderOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid from")
		}
		f.From = t
	}
	if in.To != "" {
		t, ok := parseDateTimeRFC3339(in.To)
		if !ok {
			return Page[OrderOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid to")
		}
		f.To = t
	}

	out := Page[OrderOutput]{Page: in.Page, Limit: in.Limit, Items: []OrderOutput{}}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return dbError(err)
		}
		ids := make([]int64, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
		items, err := r.OrderItems().ListByOrderIDs(ctx, ids)
		if err != nil {
			return dbError(err)
		}
		for _, o := range orders {
			out.Items = append(out.Items, toOrderOutput(o, items[o.ID]))
		}
		out.Total = total
		return nil
	})
	if err != nil {
		return Page[OrderOutput]{}, err
	}
	return out, nil
}

// UpdateStatus は前進遷移のみ。CANCELLED はキャンセル処理（在庫戻し・返金）に回す
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	next := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if next == model.OrderStatusCancelled {
		return u.reconciler.CancelOrder(ctx, Actor{UserID: actorAdminUserID, Admin: true}, orderID, in.Reason)
	}
	if !knownOrderStatus(next) {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := loadOrder(ctx, r, orderID, true)
		if err != nil {
			return err
		}
		// すでに同じなら何もしない
		if o.Status == next {
			out = o
			return nil
		}
		if !canTransition(o.Status, next) {
			return NewBusinessError(http.StatusConflict, CodeInvalidState,
				"cannot change status from "+string(o.Status)+" to "+string(next),
				map[string]any{"order_id": o.ID, "from": o.Status, "to": next})
		}

		before := orderAuditState(o)
		o.Status = next
		if next == model.OrderStatusDelivered {
			now := u.clock.Now()
			o.DeliveredAt = &now
			if o.PaymentMethod == model.PaymentMethodCOD {
				o.PaymentStatus = model.PaymentStatusPaid
			}
			for i := range o.Items {
				if o.Items[i].Status != model.OrderItemStatusPending {
					continue
				}
				o.Items[i].Status = model.OrderItemStatusDelivered
				if err := r.OrderItems().UpdateState(ctx, o.Items[i]); err != nil {
					return dbError(err)
				}
			}
		}
		if err := r.Orders().UpdateState(ctx, o); err != nil {
			return dbError(err)
		}

		if err := writeAudit(ctx, r, actorAdminUserID, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID,
			before, orderAuditState(o), u.clock); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", string(out.Status)),
		zap.Int64("actor_user_id", actorAdminUserID),
	)
	return toOrderOutput(out, out.Items), nil
}

// CancelItem は管理者による明細キャンセル
func (u *AdminOrderUsecase) CancelItem(ctx context.Context, actorAdminUserID, orderID, itemID int64, reason string) (OrderOutput, error) {
	return u.reconciler.CancelItem(ctx, Actor{UserID: actorAdminUserID, Admin: true}, orderID, itemID, reason)
}

// 返品申請中の明細（古い順）
func (u *AdminOrderUsecase) ListReturnRequests(ctx context.Context, page, limit int) (Page[ReturnRequestOutput], error) {
	page, limit = pageOrDefault(page, limit)

	out := Page[ReturnRequestOutput]{Page: page, Limit: limit, Items: []ReturnRequestOutput{}}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, total, err := r.OrderItems().ListReturnRequested(ctx, repo.ReturnRequestFilter{Page: page, Limit: limit})
		if err != nil {
			return dbError(err)
		}
		for _, it := range items {
			out.Items = append(out.Items, ReturnRequestOutput{OrderID: it.OrderID, Item: toOrderItemOutput(it)})
		}
		out.Total = total
		return nil
	})
	if err != nil {
		return Page[ReturnRequestOutput]{}, err
	}
	return out, nil
}

func canTransition(from, to model.OrderStatus) bool {
	for _, s := range adminTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func knownOrderStatus(s model.OrderStatus) bool {
	switch s {
	case model.OrderStatusPending, model.OrderStatusConfirmed, model.OrderStatusPaid,
		model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusOutForDelivery,
		model.OrderStatusDelivered, model.OrderStatusCancelled, model.OrderStatusReturned, model.OrderStatusFailed:
		return true
	}
	return false
}

// 期間パラメータでtime.Timeが必要なら、handlerでtime.Parseしてここに入れる
func parseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
