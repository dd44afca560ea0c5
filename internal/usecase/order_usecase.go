package usecase

import (
	"context"
	"net/http"

	repo "storefront/internal/repository"
)

// OrderUsecase は本人の注文の参照
type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

// 新しい順
func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) (Page[OrderOutput], error) {
	if userID <= 0 {
		return Page[OrderOutput]{}, errUnauthorized()
	}
	page, limit = pageOrDefault(page, limit)

	out := Page[OrderOutput]{Page: page, Limit: limit, Items: []OrderOutput{}}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
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

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := loadOrder(ctx, r, orderID, false)
		if err != nil {
			return err
		}
		// 他人の注文は存在しない扱い
		if o.UserID != userID {
			return errNotFound("order")
		}
		out = toOrderOutput(o, o.Items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}
