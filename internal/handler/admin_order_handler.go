package handler

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc         *usecase.AdminOrderUsecase
	reconciler *usecase.Reconciler
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase, reconciler *usecase.Reconciler) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc, reconciler: reconciler}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/orders", h.list)
	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.POST("/orders/:id/items/:itemId/cancel", h.cancelItem)

	admin.GET("/returns", h.listReturns)
	admin.POST("/orders/:id/items/:itemId/return/approve", h.approveReturn)
	admin.POST("/orders/:id/items/:itemId/return/reject", h.rejectReturn)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit, msg := paging(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	var userID int64
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, "invalid user_id")
		}
		userID = id
	}

	// 期間はここで形式だけ見る
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if from != "" {
		if _, err := time.Parse(time.RFC3339, from); err != nil {
			return badRequest(c, "invalid from")
		}
	}
	if to != "" {
		if _, err := time.Parse(time.RFC3339, to); err != nil {
			return badRequest(c, "invalid to")
		}
	}

	out, err := h.uc.List(c.Request().Context(), usecase.AdminOrderListInput{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		UserID: userID,
		From:   from,
		To:     to,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	// ★操作した管理者IDを取得（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.UpdateStatus(c.Request().Context(), adminID, orderID, usecase.AdminUpdateOrderStatusInput{
		Status: req.Status,
		Reason: req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) cancelItem(c echo.Context) error {
	adminID, orderID, itemID, ok := h.itemTarget(c)
	if !ok {
		return nil
	}

	var req CancelRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.uc.CancelItem(c.Request().Context(), adminID, orderID, itemID, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) listReturns(c echo.Context) error {
	page, limit, msg := paging(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	out, err := h.uc.ListReturnRequests(c.Request().Context(), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) approveReturn(c echo.Context) error {
	adminID, orderID, itemID, ok := h.itemTarget(c)
	if !ok {
		return nil
	}

	out, err := h.reconciler.ApproveReturn(c.Request().Context(), adminID, orderID, itemID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) rejectReturn(c echo.Context) error {
	adminID, orderID, itemID, ok := h.itemTarget(c)
	if !ok {
		return nil
	}

	out, err := h.reconciler.RejectReturn(c.Request().Context(), adminID, orderID, itemID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 管理者ID・注文ID・明細ID。失敗時はレスポンス済み
func (h *AdminOrderHandler) itemTarget(c echo.Context) (adminID, orderID, itemID int64, ok bool) {
	adminID, ok = getUserIDFromContext(c)
	if !ok {
		_ = unauthorized(c)
		return 0, 0, 0, false
	}
	orderID, ok = pathID(c, "id")
	if !ok {
		_ = badRequest(c, "invalid id")
		return 0, 0, 0, false
	}
	itemID, ok = pathID(c, "itemId")
	if !ok {
		_ = badRequest(c, "invalid item id")
		return 0, 0, 0, false
	}
	return adminID, orderID, itemID, true
}
