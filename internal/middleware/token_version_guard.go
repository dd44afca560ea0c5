package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/repository"
)

// TokenVersionGuard は AuthJWT の後ろに置く。
// トークンの tv が DB の token_version と違う、または利用停止中なら 401
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get(CtxUserIDKey).(int64)
			tv, hasTV := c.Get(CtxTokenVersionKey).(int)
			if userID <= 0 || !hasTV || tv < 0 {
				return c.JSON(http.StatusUnauthorized, errorCodeJSON("UNAUTHORIZED", "unauthorized"))
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			switch {
			case errors.Is(err, repository.ErrNotFound) || (err == nil && user == nil):
				return c.JSON(http.StatusUnauthorized, errorCodeJSON("UNAUTHORIZED", "unauthorized"))
			case err != nil:
				c.Logger().Errorf("token version lookup user=%d: %v", userID, err)
				return c.JSON(http.StatusInternalServerError, errorCodeJSON("INTERNAL_ERROR", "internal server error"))
			case !user.IsActive:
				return c.JSON(http.StatusUnauthorized, errorCodeJSON("ACCOUNT_DISABLED", "account is disabled"))
			case user.TokenVersion != tv:
				return c.JSON(http.StatusUnauthorized, errorCodeJSON("TOKEN_REVOKED", "token has been revoked"))
			}
			return next(c)
		}
	}
}
