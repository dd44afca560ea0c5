package usecase

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 注文に付随する在庫・クーポン・カートの副作用。全て呼び出し側の Tx の中で動く

// commitStock は明細ごとに条件付きで在庫を減らす。
// 途中で失敗したら減らした分を戻してから STOCK_CONFLICT を返す
func commitStock(ctx context.Context, r repo.TxRepos, order model.Order) error {
	done := make([]model.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
		if err != nil {
			if cerr := restock(ctx, r, order.ID, done, model.InventoryReasonRollback); cerr != nil {
				return cerr
			}
			return dbError(err)
		}
		if !ok {
			if cerr := restock(ctx, r, order.ID, done, model.InventoryReasonRollback); cerr != nil {
				return cerr
			}
			return errStockConflict(it.ProductID)
		}
		done = append(done, it)
		if err := recordAdjustment(ctx, r, order.ID, it.ProductID, -it.Quantity, model.InventoryReasonSale); err != nil {
			return err
		}
	}
	return nil
}

func restock(ctx context.Context, r repo.TxRepos, orderID int64, items []model.OrderItem, reason model.InventoryReason) error {
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return dbError(err)
		}
		if err := recordAdjustment(ctx, r, orderID, it.ProductID, it.Quantity, reason); err != nil {
			return err
		}
	}
	return nil
}

func recordAdjustment(ctx context.Context, r repo.TxRepos, orderID, productID, delta int64, reason model.InventoryReason) error {
	var ref *int64
	if orderID > 0 {
		ref = &orderID
	}
	if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID: productID,
		OrderID:   ref,
		Delta:     delta,
		Reason:    reason,
	}); err != nil {
		return dbError(err)
	}
	return nil
}

// 未使用のときだけ記録する。同じユーザーの並行注文は片方だけ通る
func markCouponUsed(ctx context.Context, r repo.TxRepos, order model.Order) error {
	if !order.Coupon.Applied() {
		return nil
	}
	ok, err := r.Coupons().MarkUsed(ctx, model.CouponUsage{
		CouponID: *order.Coupon.CouponID,
		UserID:   order.UserID,
		OrderID:  order.ID,
	})
	if err != nil {
		return dbError(err)
	}
	if !ok {
		return errCouponAlreadyUsed(order.Coupon.Code)
	}
	return nil
}

// カートが無ければ何もしない
func clearCart(ctx context.Context, r repo.TxRepos, userID int64) error {
	cart, err := r.Carts().FindActiveByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dbError(err)
	}
	if err := r.Carts().Clear(ctx, cart.ID); err != nil {
		return dbError(err)
	}
	return nil
}

// 注文と明細をまとめて読む（更新用はロック付き）
func loadOrder(ctx context.Context, r repo.TxRepos, orderID int64, forUpdate bool) (model.Order, error) {
	var (
		o   model.Order
		err error
	)
	if forUpdate {
		o, err = r.Orders().FindByIDForUpdate(ctx, orderID)
	} else {
		o, err = r.Orders().FindByID(ctx, orderID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, errNotFound("order")
	}
	if err != nil {
		return model.Order{}, dbError(err)
	}
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.Order{}, dbError(err)
	}
	o.Items = items
	return o, nil
}

// 本人の注文か（管理者操作では呼ばない）
func ensureOwner(o model.Order, userID int64) error {
	if o.UserID != userID {
		return errForbidden()
	}
	return nil
}

func errInvalidOrderState(o model.Order, action string) error {
	return NewBusinessError(http.StatusConflict, CodeInvalidState,
		"cannot "+action+" order in status "+string(o.Status),
		map[string]any{"order_id": o.ID, "status": o.Status, "payment_status": o.PaymentStatus})
}
