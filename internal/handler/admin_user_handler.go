package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	cfg      config.Config
	userRepo repository.UserRepository
	wallets  *usecase.WalletUsecase
}

func NewAdminUserHandler(cfg config.Config, userRepo repository.UserRepository, wallets *usecase.WalletUsecase) *AdminUserHandler {
	return &AdminUserHandler{cfg: cfg, userRepo: userRepo, wallets: wallets}
}

type WalletAdjustRequest struct {
	Direction   string `json:"direction" validate:"required,oneof=CREDIT DEBIT credit debit"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo) {
	// ★ /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(h.userRepo),
		middleware.AdminRoleGuard(),
	)

	admin.POST("/users/:id/wallet/adjust", h.adjustWallet)
}

func (h *AdminUserHandler) adjustWallet(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	var req WalletAdjustRequest
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	out, err := h.wallets.AdminAdjust(c.Request().Context(), adminID, userID, usecase.AdminAdjustInput{
		Direction:   req.Direction,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
