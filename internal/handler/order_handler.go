package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /orders（本人の注文）
type OrderHandler struct {
	uc         *usecase.OrderUsecase
	reconciler *usecase.Reconciler
	payments   *usecase.PaymentUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase, reconciler *usecase.Reconciler, payments *usecase.PaymentUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, reconciler: reconciler, payments: payments}
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ReturnRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/payment-failed", h.paymentFailed)
	g.POST("/:id/items/:itemId/cancel", h.cancelItem)
	g.POST("/:id/items/:itemId/return", h.requestReturn)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, limit, msg := paging(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req CancelRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.reconciler.CancelOrder(c.Request().Context(), usecase.Actor{UserID: userID}, id, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ゲートウェイ画面で支払いを諦めたとき
func (h *OrderHandler) paymentFailed(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.payments.MarkFailed(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancelItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return badRequest(c, "invalid item id")
	}

	var req CancelRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.reconciler.CancelItem(c.Request().Context(), usecase.Actor{UserID: userID}, orderID, itemID, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) requestReturn(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return badRequest(c, "invalid item id")
	}

	var req ReturnRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.reconciler.RequestReturn(c.Request().Context(), userID, orderID, itemID, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
