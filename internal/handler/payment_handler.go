package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ゲートウェイ決済の確定
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type VerifyPaymentRequest struct {
	OrderID          int64  `json:"order_id" validate:"required,gt=0"`
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/payments")

	// ブラウザ経由（本人の注文だけ）
	g.POST("/verify", h.verify,
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
	)

	// ゲートウェイからの直接通知。認証は署名だけ
	g.POST("/callback", h.callback, middleware.RateLimit(cfg.CheckoutRatePerMinute*10))
}

func (h *PaymentHandler) verify(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	return h.capture(c, userID)
}

func (h *PaymentHandler) callback(c echo.Context) error {
	return h.capture(c, 0)
}

func (h *PaymentHandler) capture(c echo.Context, userID int64) error {
	var req VerifyPaymentRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.uc.VerifyPayment(c.Request().Context(), userID, usecase.VerifyPaymentInput{
		OrderID:          req.OrderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
