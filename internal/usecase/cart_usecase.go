package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"
)

// CartUsecase は /cart の業務ロジック。
// 表示のたびにカートを評価し直し、買えない明細は消して数量は在庫に合わせる。
type CartUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewCartUsecase(tx repo.TransactionManager, clock Clock) *CartUsecase {
	return &CartUsecase{tx: tx, clock: clock}
}

type CartLine struct {
	CartItemID      int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	Name            string `json:"name"`
	ImageURL        string `json:"image_url,omitempty"`
	Quantity        int64  `json:"quantity"`
	ListPrice       int64  `json:"list_price"`
	UnitPrice       int64  `json:"unit_price"`
	DiscountPercent int64  `json:"discount_percent"`
	DiscountSource  string `json:"discount_source"`
	Subtotal        int64  `json:"subtotal"`
}

// 評価済みカート
type PricedCart struct {
	Lines []CartLine `json:"items"`
	Total int64      `json:"total"`

	// 削除・数量調整が起きた明細の商品ID
	Adjusted []int64 `json:"adjusted_product_ids,omitempty"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカートを評価して返す。カートが無くても空で返す
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (PricedCart, error) {
	if userID <= 0 {
		return PricedCart{}, errUnauthorized()
	}

	var out PricedCart
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = valuateCart(ctx, r, userID, u.clock.Now())
		return err
	})
	if err != nil {
		return PricedCart{}, err
	}
	return out, nil
}

// AddToCart は同一商品なら数量を加算する（上限は5と在庫の小さい方）
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (PricedCart, error) {
	if userID <= 0 {
		return PricedCart{}, errUnauthorized()
	}
	if in.ProductID <= 0 {
		return PricedCart{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 || in.Quantity > model.MaxCartItemQuantity {
		return PricedCart{}, NewBusinessError(http.StatusBadRequest, CodeValidation, "invalid quantity",
			map[string]any{"max": model.MaxCartItemQuantity})
	}

	var out PricedCart
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("product")
		}
		if err != nil {
			return dbError(err)
		}
		if !p.IsPurchasable() {
			return errProductUnavailable(p)
		}

		cart, err := r.Carts().GetOrCreateActiveByUserID(ctx, userID)
		if err != nil {
			return dbError(err)
		}
		limit := min(model.MaxCartItemQuantity, p.Stock)
		if err := r.CartItems().UpsertByCartAndProduct(ctx, cart.ID, p.ID, in.Quantity, limit); err != nil {
			return dbError(err)
		}

		out, err = valuateCart(ctx, r, userID, u.clock.Now())
		return err
	})
	if err != nil {
		return PricedCart{}, err
	}
	return out, nil
}

// 数量変更（所有チェック＋在庫チェック）
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (PricedCart, error) {
	if userID <= 0 {
		return PricedCart{}, errUnauthorized()
	}
	if cartItemID <= 0 {
		return PricedCart{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Quantity < 1 || in.Quantity > model.MaxCartItemQuantity {
		return PricedCart{}, NewBusinessError(http.StatusBadRequest, CodeValidation, "invalid quantity",
			map[string]any{"max": model.MaxCartItemQuantity})
	}

	var out PricedCart
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := ownedCartItem(ctx, r, userID, cartItemID)
		if err != nil {
			return err
		}

		p, err := r.Products().FindByID(ctx, item.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("product")
		}
		if err != nil {
			return dbError(err)
		}
		if !p.IsPurchasable() {
			return errProductUnavailable(p)
		}
		if in.Quantity > p.Stock {
			return errInsufficientStock(p, in.Quantity)
		}

		if err := r.CartItems().UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
			return dbError(err)
		}
		out, err = valuateCart(ctx, r, userID, u.clock.Now())
		return err
	})
	if err != nil {
		return PricedCart{}, err
	}
	return out, nil
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (PricedCart, error) {
	if userID <= 0 {
		return PricedCart{}, errUnauthorized()
	}
	if cartItemID <= 0 {
		return PricedCart{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out PricedCart
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := ownedCartItem(ctx, r, userID, cartItemID); err != nil {
			return err
		}
		if err := r.CartItems().DeleteByID(ctx, cartItemID); err != nil {
			return dbError(err)
		}
		var err error
		out, err = valuateCart(ctx, r, userID, u.clock.Now())
		return err
	})
	if err != nil {
		return PricedCart{}, err
	}
	return out, nil
}

func ownedCartItem(ctx context.Context, r repo.TxRepos, userID, cartItemID int64) (model.CartItem, error) {
	owned, err := r.CartItems().IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return model.CartItem{}, dbError(err)
	}
	if !owned {
		return model.CartItem{}, errNotFound("cart item")
	}
	item, err := r.CartItems().FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, errNotFound("cart item")
	}
	if err != nil {
		return model.CartItem{}, dbError(err)
	}
	return item, nil
}

// valuateCart は現在の商品情報でカートを値付けし、買えない明細の削除と数量の切り詰めを保存する
func valuateCart(ctx context.Context, r repo.TxRepos, userID int64, now time.Time) (PricedCart, error) {
	out := PricedCart{Lines: []CartLine{}}

	cart, err := r.Carts().FindActiveByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return PricedCart{}, dbError(err)
	}

	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return PricedCart{}, dbError(err)
	}
	if len(items) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return PricedCart{}, dbError(err)
	}
	offers, err := r.CategoryOffers().ActiveDiscounts(ctx, now)
	if err != nil {
		return PricedCart{}, dbError(err)
	}

	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.IsPurchasable() {
			if err := r.CartItems().DeleteByID(ctx, it.ID); err != nil {
				return PricedCart{}, dbError(err)
			}
			out.Adjusted = append(out.Adjusted, it.ProductID)
			continue
		}

		qty := min(it.Quantity, p.Stock, model.MaxCartItemQuantity)
		if qty != it.Quantity {
			if err := r.CartItems().UpdateQuantity(ctx, it.ID, qty); err != nil {
				return PricedCart{}, dbError(err)
			}
			out.Adjusted = append(out.Adjusted, it.ProductID)
		}

		q := pricing.ResolveProduct(p, offers)
		line := CartLine{
			CartItemID:      it.ID,
			ProductID:       p.ID,
			Name:            p.Name,
			ImageURL:        p.ImageURL,
			Quantity:        qty,
			ListPrice:       q.ListPrice,
			UnitPrice:       q.UnitPrice,
			DiscountPercent: q.DiscountPercent,
			DiscountSource:  string(q.Source),
			Subtotal:        q.UnitPrice * qty,
		}
		out.Lines = append(out.Lines, line)
		out.Total += line.Subtotal
	}
	return out, nil
}

func errProductUnavailable(p model.Product) error {
	return NewBusinessError(http.StatusUnprocessableEntity, CodeProductUnavailable,
		p.Name+" is no longer available",
		map[string]any{"product_id": p.ID, "product_name": p.Name})
}

func errInsufficientStock(p model.Product, requested int64) error {
	return NewBusinessError(http.StatusUnprocessableEntity, CodeInsufficientStock,
		fmt.Sprintf("only %d left for %s", p.Stock, p.Name),
		map[string]any{"product_id": p.ID, "product_name": p.Name, "available": p.Stock, "requested": requested})
}
