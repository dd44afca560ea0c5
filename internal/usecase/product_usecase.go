package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"
)

// ProductUsecase は商品の参照。価格は毎回カテゴリセールと合わせて解決する
type ProductUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewProductUsecase(tx repo.TransactionManager, clock Clock) *ProductUsecase {
	return &ProductUsecase{tx: tx, clock: clock}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	Sort       string
}

type ProductOutput struct {
	ID              int64  `json:"id"`
	CategoryID      int64  `json:"category_id"`
	Name            string `json:"name"`
	ImageURL        string `json:"image_url,omitempty"`
	ListPrice       int64  `json:"list_price"`
	UnitPrice       int64  `json:"unit_price"`
	DiscountPercent int64  `json:"discount_percent"`
	DiscountSource  string `json:"discount_source"`
	Stock           int64  `json:"stock"`
	Status          string `json:"status"`
	Purchasable     bool   `json:"purchasable"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (Page[ProductOutput], error) {
	if in.Page < 1 {
		return Page[ProductOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return Page[ProductOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return Page[ProductOutput]{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return Page[ProductOutput]{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	out := Page[ProductOutput]{Page: in.Page, Limit: in.Limit, Items: []ProductOutput{}}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, total, err := r.Products().ListPublic(ctx, repo.ProductListQuery{
			Page:       in.Page,
			Limit:      in.Limit,
			Q:          strings.TrimSpace(in.Q),
			CategoryID: in.CategoryID,
			Sort:       in.Sort,
		})
		if err != nil {
			return dbError(err)
		}
		offers, err := r.CategoryOffers().ActiveDiscounts(ctx, u.clock.Now())
		if err != nil {
			return dbError(err)
		}
		for _, p := range items {
			out.Items = append(out.Items, toProductOutput(p, offers))
		}
		out.Total = total
		return nil
	})
	if err != nil {
		return Page[ProductOutput]{}, err
	}
	return out, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (ProductOutput, error) {
	if productID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("product")
		}
		if err != nil {
			return dbError(err)
		}
		if p.Status == model.ProductStatusDiscontinued {
			return errNotFound("product")
		}
		offers, err := r.CategoryOffers().ActiveDiscounts(ctx, u.clock.Now())
		if err != nil {
			return dbError(err)
		}
		out = toProductOutput(p, offers)
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

func toProductOutput(p model.Product, offers map[int64]int64) ProductOutput {
	q := pricing.ResolveProduct(p, offers)
	return ProductOutput{
		ID:              p.ID,
		CategoryID:      p.CategoryID,
		Name:            p.Name,
		ImageURL:        p.ImageURL,
		ListPrice:       q.ListPrice,
		UnitPrice:       q.UnitPrice,
		DiscountPercent: q.DiscountPercent,
		DiscountSource:  string(q.Source),
		Stock:           p.Stock,
		Status:          string(p.Status),
		Purchasable:     p.IsPurchasable(),
	}
}
