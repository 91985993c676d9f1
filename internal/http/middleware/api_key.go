package middleware

import (
	"context"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/angosms/sms-gateway/internal/model"
)

const (
	ctxAccountID  = "account_id"
	ctxAccountRPS = "account_rps"
)

// AccountLookup resolves an API key. A nil account means the key is unknown.
type AccountLookup interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Account, error)
}

// AccountIDFromCtx extracts the account id set by APIKeyMiddleware.
func AccountIDFromCtx(c echo.Context) (int64, bool) {
	id, ok := c.Get(ctxAccountID).(int64)
	return id, ok && id > 0
}

// APIKeyMiddleware authenticates requests using the X-API-Key header and
// rejects suspended accounts.
func APIKeyMiddleware(accounts AccountLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			acc, err := accounts.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				c.Logger().Errorf("api key lookup failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if acc == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			if !acc.Active() {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "account suspended"})
			}
			c.Set(ctxAccountID, acc.ID)
			if acc.RateLimitRPS != nil {
				c.Set(ctxAccountRPS, *acc.RateLimitRPS)
			}
			return next(c)
		}
	}
}
