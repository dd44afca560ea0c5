package usecase

import (
	"time"

	"storefront/internal/domain/model"
)

type OrderItemOutput struct {
	ID                int64      `json:"id"`
	ProductID         int64      `json:"product_id"`
	Name              string     `json:"name"`
	ImageURL          string     `json:"image_url,omitempty"`
	Quantity          int64      `json:"quantity"`
	ListPrice         int64      `json:"list_price"`
	FinalPrice        int64      `json:"final_price"`
	DiscountPercent   int64      `json:"discount_percent"`
	DiscountSource    string     `json:"discount_source"`
	Subtotal          int64      `json:"subtotal"`
	Status            string     `json:"status"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	ReturnReason      string     `json:"return_reason,omitempty"`
	ReturnRequestedAt *time.Time `json:"return_requested_at,omitempty"`
	ReturnApprovedAt  *time.Time `json:"return_approved_at,omitempty"`
}

type OrderOutput struct {
	ID                   int64                 `json:"id"`
	Code                 string                `json:"code"`
	UserID               int64                 `json:"user_id"`
	Status               string                `json:"status"`
	PaymentMethod        string                `json:"payment_method"`
	PaymentStatus        string                `json:"payment_status"`
	SubtotalAmount       int64                 `json:"subtotal_amount"`
	CouponDiscountAmount int64                 `json:"coupon_discount_amount"`
	TotalAmount          int64                 `json:"total_amount"`
	Coupon               *model.CouponSnapshot `json:"coupon,omitempty"`
	ShippingAddress      model.ShippingAddress `json:"shipping_address"`
	CancelReason         string                `json:"cancel_reason,omitempty"`
	OrderedAt            time.Time             `json:"ordered_at"`
	DeliveredAt          *time.Time            `json:"delivered_at,omitempty"`
	Items                []OrderItemOutput     `json:"items"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	out := OrderOutput{
		ID:                   o.ID,
		Code:                 o.Code,
		UserID:               o.UserID,
		Status:               string(o.Status),
		PaymentMethod:        string(o.PaymentMethod),
		PaymentStatus:        string(o.PaymentStatus),
		SubtotalAmount:       o.SubtotalAmount,
		CouponDiscountAmount: o.CouponDiscountAmount,
		TotalAmount:          o.TotalAmount,
		ShippingAddress:      o.Shipping,
		CancelReason:         o.CancelReason,
		OrderedAt:            o.OrderedAt,
		DeliveredAt:          o.DeliveredAt,
		Items:                make([]OrderItemOutput, 0, len(items)),
	}
	if o.Coupon.Applied() {
		c := o.Coupon
		out.Coupon = &c
	}
	for _, it := range items {
		out.Items = append(out.Items, toOrderItemOutput(it))
	}
	return out
}

func toOrderItemOutput(it model.OrderItem) OrderItemOutput {
	return OrderItemOutput{
		ID:                it.ID,
		ProductID:         it.ProductID,
		Name:              it.ProductNameSnapshot,
		ImageURL:          it.ProductImageSnapshot,
		Quantity:          it.Quantity,
		ListPrice:         it.ListPrice,
		FinalPrice:        it.FinalPrice,
		DiscountPercent:   it.DiscountPercent,
		DiscountSource:    string(it.DiscountSource),
		Subtotal:          it.Subtotal,
		Status:            string(it.Status),
		CancelReason:      it.CancelReason,
		ReturnReason:      it.ReturnReason,
		ReturnRequestedAt: it.ReturnRequestedAt,
		ReturnApprovedAt:  it.ReturnApprovedAt,
	}
}

// ページ付き一覧
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}
