package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/angosms/sms-gateway/internal/credit"
	"github.com/angosms/sms-gateway/internal/model"
)

func listGatewaysHandler(g Gateways) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := g.List(c.Request().Context())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"gateways": rows})
	}
}

func probeAllHandler(g Gateways) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"results": g.ProbeAll(c.Request().Context())})
	}
}

func probeGatewayHandler(g Gateways) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := g.Probe(c.Request().Context(), c.Param("name"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func setPrimaryHandler(g Gateways) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("name")
		if err := g.SetPrimary(c.Request().Context(), name); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"gateway": name, "is_primary": true})
	}
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func setActiveHandler(g Gateways) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req activeRequest
		if err := c.Bind(&req); err != nil || req.Active == nil {
			return badRequest(c, "active flag required")
		}
		name := c.Param("name")
		if err := g.SetActive(c.Request().Context(), name, *req.Active); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"gateway": name, "is_active": *req.Active})
	}
}

type adjustRequest struct {
	AccountID int64  `json:"account_id"`
	Delta     int64  `json:"delta"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	Actor     string `json:"actor"`
	Reference string `json:"reference"`
}

// POST /admin/credits/adjust
func adjustCreditsHandler(accounts Accounts, w Wallet) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req adjustRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
		typ := model.AdjustmentType(strings.ToLower(strings.TrimSpace(req.Type)))
		if typ == "" {
			typ = model.AdjustmentManual
		}
		if req.AccountID <= 0 || !typ.Valid() {
			return badRequest(c, "account_id and a valid type are required")
		}
		if _, err := accounts.GetByID(c.Request().Context(), req.AccountID); err != nil {
			return respondError(c, err)
		}
		actor := strings.TrimSpace(req.Actor)
		if actor == "" {
			actor = "admin"
		}

		entry, err := w.Adjust(c.Request().Context(), credit.Adjustment{
			AccountID: req.AccountID,
			Delta:     req.Delta,
			Type:      typ,
			Reason:    req.Reason,
			Actor:     actor,
			Reference: strings.TrimSpace(req.Reference),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, entry)
	}
}
