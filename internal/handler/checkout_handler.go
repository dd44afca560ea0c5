package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /checkout と /coupons
type CheckoutHandler struct {
	checkout *usecase.CheckoutUsecase
	coupons  *usecase.CouponUsecase
}

func NewCheckoutHandler(checkout *usecase.CheckoutUsecase, coupons *usecase.CouponUsecase) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, coupons: coupons}
}

type PlaceOrderRequest struct {
	AddressID     int64  `json:"address_id" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	CouponCode    string `json:"coupon_code" validate:"omitempty,max=64"`
}

type CouponPreviewRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	auth := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
	}

	g := e.Group("/checkout", auth...)
	g.GET("", h.preview)
	// 注文作成だけはユーザー単位で回数制限
	g.POST("", h.placeOrder, middleware.RateLimit(cfg.CheckoutRatePerMinute))

	cg := e.Group("/coupons", auth...)
	cg.GET("/applicable", h.applicableCoupons)
	cg.POST("/preview", h.previewCoupon)
}

func (h *CheckoutHandler) preview(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.checkout.Preview(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) placeOrder(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req PlaceOrderRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	out, err := h.checkout.PlaceOrder(c.Request().Context(), userID, usecase.PlaceOrderInput{
		AddressID:      req.AddressID,
		PaymentMethod:  req.PaymentMethod,
		CouponCode:     req.CouponCode,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	if out.Replayed {
		return c.JSON(http.StatusOK, out)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CheckoutHandler) applicableCoupons(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.coupons.ListApplicable(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) previewCoupon(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req CouponPreviewRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.coupons.Preview(c.Request().Context(), userID, req.Code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
