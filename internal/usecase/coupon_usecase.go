package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"
)

// 検証済みクーポンと割引額
type CouponQuote struct {
	Coupon   model.Coupon
	Discount int64
}

func (q CouponQuote) Snapshot() model.CouponSnapshot {
	id := q.Coupon.ID
	return model.CouponSnapshot{
		CouponID:       &id,
		Code:           q.Coupon.Code,
		Kind:           q.Coupon.Kind,
		Value:          q.Coupon.Value,
		DiscountAmount: q.Discount,
		MinPurchase:    q.Coupon.MinPurchase,
	}
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validateCoupon は 有効期限 → 最低購入額 → 使用済み → 割引額 の順に判定する。何も書き換えない
func validateCoupon(ctx context.Context, coupons repo.CouponRepository, code string, userID, subtotal int64, now time.Time) (CouponQuote, error) {
	code = normalizeCouponCode(code)
	if code == "" || len(code) > 64 {
		return CouponQuote{}, NewHTTPError(http.StatusBadRequest, "invalid coupon code")
	}

	c, err := coupons.FindByCode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		return CouponQuote{}, errInvalidCoupon(code)
	}
	if err != nil {
		return CouponQuote{}, dbError(err)
	}
	if !c.UsableAt(now) {
		return CouponQuote{}, errInvalidCoupon(code)
	}

	if subtotal < c.MinPurchase {
		return CouponQuote{}, NewBusinessError(http.StatusUnprocessableEntity, CodeBelowMinimumPurchase,
			fmt.Sprintf("coupon %s requires a minimum purchase of %d", c.Code, c.MinPurchase),
			map[string]any{"code": c.Code, "min_purchase": c.MinPurchase, "subtotal": subtotal})
	}

	used, err := coupons.HasUsed(ctx, c.ID, userID)
	if err != nil {
		return CouponQuote{}, dbError(err)
	}
	if used {
		return CouponQuote{}, errCouponAlreadyUsed(c.Code)
	}

	discount := couponDiscount(c, subtotal)
	if discount >= subtotal {
		return CouponQuote{}, NewBusinessError(http.StatusUnprocessableEntity, CodeCouponExceedsTotal,
			fmt.Sprintf("coupon %s discount must be less than the order subtotal", c.Code),
			map[string]any{"code": c.Code, "discount": discount, "subtotal": subtotal})
	}
	return CouponQuote{Coupon: c, Discount: discount}, nil
}

// PERCENTAGE は上限あり、FIXED は額面どおり
func couponDiscount(c model.Coupon, subtotal int64) int64 {
	switch c.Kind {
	case model.CouponKindPercentage:
		d := pricing.ApplyPercent(subtotal, c.Value)
		if c.MaxDiscount > 0 && d > c.MaxDiscount {
			d = c.MaxDiscount
		}
		return d
	case model.CouponKindFixed:
		return c.Value
	}
	return 0
}

func errInvalidCoupon(code string) error {
	return NewBusinessError(http.StatusUnprocessableEntity, CodeInvalidOrExpiredCoupon,
		"coupon is invalid or expired", map[string]any{"code": code})
}

func errCouponAlreadyUsed(code string) error {
	return NewBusinessError(http.StatusUnprocessableEntity, CodeCouponAlreadyUsed,
		"coupon already used", map[string]any{"code": code})
}

// CouponUsecase はチェックアウト画面のクーポン表示
type CouponUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewCouponUsecase(tx repo.TransactionManager, clock Clock) *CouponUsecase {
	return &CouponUsecase{tx: tx, clock: clock}
}

type CouponPreview struct {
	Code     string `json:"code"`
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

type ApplicableCoupon struct {
	Code        string    `json:"code"`
	Kind        string    `json:"kind"`
	Value       int64     `json:"value"`
	MinPurchase int64     `json:"min_purchase"`
	MaxDiscount int64     `json:"max_discount,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	Discount    int64     `json:"discount"`
}

// Preview は現在のカート小計でクーポンを試算する（使用済みにはしない）
func (u *CouponUsecase) Preview(ctx context.Context, userID int64, code string) (CouponPreview, error) {
	if userID <= 0 {
		return CouponPreview{}, errUnauthorized()
	}

	var out CouponPreview
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()
		cart, err := valuateCart(ctx, r, userID, now)
		if err != nil {
			return err
		}
		if len(cart.Lines) == 0 {
			return errCartEmpty()
		}
		q, err := validateCoupon(ctx, r.Coupons(), code, userID, cart.Total, now)
		if err != nil {
			return err
		}
		out = CouponPreview{
			Code:     q.Coupon.Code,
			Subtotal: cart.Total,
			Discount: q.Discount,
			Total:    cart.Total - q.Discount,
		}
		return nil
	})
	if err != nil {
		return CouponPreview{}, err
	}
	return out, nil
}

// ListApplicable は小計に対して今使えるクーポンだけを返す
func (u *CouponUsecase) ListApplicable(ctx context.Context, userID int64) ([]ApplicableCoupon, error) {
	if userID <= 0 {
		return nil, errUnauthorized()
	}

	out := []ApplicableCoupon{}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()
		cart, err := valuateCart(ctx, r, userID, now)
		if err != nil {
			return err
		}
		out, err = applicableCoupons(ctx, r, userID, cart.Total, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applicableCoupons(ctx context.Context, r repo.TxRepos, userID, subtotal int64, now time.Time) ([]ApplicableCoupon, error) {
	out := []ApplicableCoupon{}
	if subtotal <= 0 {
		return out, nil
	}
	coupons, err := r.Coupons().ListUsable(ctx, now)
	if err != nil {
		return nil, dbError(err)
	}
	used, err := r.Coupons().UsedCouponIDs(ctx, userID)
	if err != nil {
		return nil, dbError(err)
	}
	for _, c := range coupons {
		if used[c.ID] || subtotal < c.MinPurchase {
			continue
		}
		d := couponDiscount(c, subtotal)
		if d >= subtotal {
			continue
		}
		out = append(out, ApplicableCoupon{
			Code:        c.Code,
			Kind:        string(c.Kind),
			Value:       c.Value,
			MinPurchase: c.MinPurchase,
			MaxDiscount: c.MaxDiscount,
			ExpiresAt:   c.ExpiresAt,
			Discount:    d,
		})
	}
	return out, nil
}

func errCartEmpty() error {
	return NewBusinessError(http.StatusBadRequest, CodeCartEmpty, "cart is empty", nil)
}
