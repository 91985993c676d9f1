package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/angosms/sms-gateway/internal/http/middleware"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/phone"
	"github.com/angosms/sms-gateway/internal/repository"
)

func listMessagesHandler(reports repository.ReportsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, ok := middleware.AccountIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		f := repository.MessageFilter{
			Limit:   queryInt(c, "limit", 50, 1, 1000),
			Offset:  queryInt(c, "offset", 0, 0, -1),
			Gateway: strings.TrimSpace(c.QueryParam("gateway")),
			JobID:   strings.TrimSpace(c.QueryParam("job_id")),
		}
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			if st := model.SmsStatus(raw); st.Valid() {
				f.Status = st
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("phone")); raw != "" {
			if res := phone.Normalize(raw, ""); res.OK {
				f.Phone = res.E164
			} else {
				f.Phone = raw
			}
		}

		msgs, err := reports.ListMessages(c.Request().Context(), accountID, f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(msgs),
			"results": msgs,
		})
	}
}

// GET /admin/reports/gateways?hours=24
func gatewayStatsHandler(reports repository.ReportsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		hours := queryInt(c, "hours", 24, 1, 24*90)
		since := time.Now().Add(-time.Duration(hours) * time.Hour)

		stats, err := reports.GatewayStats(c.Request().Context(), since)
		if err != nil {
			c.Logger().Errorf("clickhouse gateway stats failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"since":    since.UTC(),
			"gateways": stats,
		})
	}
}

// queryInt parses an int query param, falling back to def when it is missing
// or out of range. hi < 0 means unbounded.
func queryInt(c echo.Context, name string, def, lo, hi int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || (hi >= 0 && n > hi) {
		return def
	}
	return n
}
