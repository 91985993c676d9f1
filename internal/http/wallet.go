package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/angosms/sms-gateway/internal/http/middleware"
)

type topupRequest struct {
	Amount    int64  `json:"amount"`
	RequestID string `json:"request_id"`
}

// POST /v1/wallet/topup is idempotent per request_id.
func topupHandler(w Wallet) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, ok := middleware.AccountIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req topupRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
		req.RequestID = strings.TrimSpace(req.RequestID)
		if req.Amount <= 0 || req.RequestID == "" {
			return badRequest(c, "amount>0 and request_id required")
		}

		entry, err := w.Topup(c.Request().Context(), accountID, req.Amount, req.RequestID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "ok",
			"request_id":  req.RequestID,
			"amount":      entry.Delta,
			"balance":     entry.NewBalance,
			"ledger_id":   entry.ID,
			"reference":   entry.Reference,
			"recorded_at": entry.CreatedAt,
		})
	}
}

// GET /v1/wallet returns the balance and the most recent ledger entries.
func walletHandler(w Wallet) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, ok := middleware.AccountIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		ctx := c.Request().Context()

		wa, err := w.Balance(ctx, accountID)
		if err != nil {
			return respondError(c, err)
		}
		entries, err := w.Entries(ctx, accountID, queryInt(c, "limit", 20, 1, 200))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"account_id": accountID,
			"available":  wa.Balance,
			"reserved":   wa.Reserved,
			"balance":    wa.Funds(),
			"entries":    entries,
		})
	}
}
