package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/model"
)

type deliveryReport struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// deliveryStatus maps provider delivery vocabulary onto log statuses.
// Intermediate states (accepted, enroute, ...) are not terminal and map to "".
func deliveryStatus(raw string) model.SmsStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivered", "delivrd", "delivered_to_handset", "success", "1":
		return model.SmsDelivered
	case "failed", "undelivered", "undeliv", "rejected", "rejectd", "expired",
		"error", "unknown_subscriber", "2", "3":
		return model.SmsFailed
	}
	return ""
}

// POST /webhooks/:gateway/status
func deliveryStatusHandler(logs DeliveryUpdater, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		gw := c.Param("gateway")
		var rep deliveryReport
		if err := c.Bind(&rep); err != nil || strings.TrimSpace(rep.MessageID) == "" {
			return badRequest(c, "message_id and status required")
		}

		status := deliveryStatus(rep.Status)
		if status == "" {
			return c.JSON(http.StatusOK, map[string]any{"updated": false, "ignored": rep.Status})
		}

		updated, err := logs.ApplyDeliveryStatus(c.Request().Context(), gw, rep.MessageID, status)
		if err != nil {
			return respondError(c, err)
		}
		log.Debug("delivery report",
			zap.String("gateway", gw),
			zap.String("gateway_message_id", rep.MessageID),
			zap.String("status", status.String()),
			zap.Bool("updated", updated))
		return c.JSON(http.StatusOK, map[string]any{"updated": updated, "status": status})
	}
}
