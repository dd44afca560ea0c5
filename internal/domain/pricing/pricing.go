// Package pricing は商品単価の解決を行う。副作用なし。
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain/model"
)

type Quote struct {
	ListPrice       int64
	DiscountPercent int64
	UnitPrice       int64
	Source          model.DiscountSource
}

// 商品割引とカテゴリ割引の大きい方を採用する。同率なら商品側
func Resolve(listPrice, productDiscount, categoryDiscount int64) Quote {
	productDiscount = clampPercent(productDiscount)
	categoryDiscount = clampPercent(categoryDiscount)

	q := Quote{ListPrice: listPrice, Source: model.DiscountSourceNone}
	switch {
	case productDiscount == 0 && categoryDiscount == 0:
	case productDiscount >= categoryDiscount:
		q.DiscountPercent = productDiscount
		q.Source = model.DiscountSourceProduct
	default:
		q.DiscountPercent = categoryDiscount
		q.Source = model.DiscountSourceCategory
	}
	q.UnitPrice = ApplyPercent(listPrice, 100-q.DiscountPercent)
	return q
}

// 商品と有効なカテゴリ割引マップから解決する
func ResolveProduct(p model.Product, categoryDiscounts map[int64]int64) Quote {
	return Resolve(p.Price, p.DiscountPercent, categoryDiscounts[p.CategoryID])
}

// amount * percent / 100 を四捨五入（0.5は切り上げ）
func ApplyPercent(amount, percent int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func clampPercent(p int64) int64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
