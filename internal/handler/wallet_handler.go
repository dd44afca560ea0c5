package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /wallet
type WalletHandler struct {
	uc *usecase.WalletUsecase
}

func NewWalletHandler(uc *usecase.WalletUsecase) *WalletHandler {
	return &WalletHandler{uc: uc}
}

type TopUpRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type VerifyTopUpRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

type ReferralRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

func (h *WalletHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/wallet")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.get)
	g.GET("/transactions", h.transactions)
	g.POST("/topups", h.createTopUp)
	g.POST("/topups/verify", h.verifyTopUp)
	g.POST("/referral", h.applyReferral)
}

func (h *WalletHandler) get(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.Get(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *WalletHandler) transactions(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, limit, msg := paging(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	out, err := h.uc.ListTransactions(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *WalletHandler) createTopUp(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req TopUpRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.uc.CreateTopUp(c.Request().Context(), userID, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *WalletHandler) verifyTopUp(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req VerifyTopUpRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.uc.VerifyTopUp(c.Request().Context(), userID, usecase.VerifyTopUpInput{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *WalletHandler) applyReferral(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ReferralRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.uc.ApplyReferral(c.Request().Context(), userID, req.Code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
