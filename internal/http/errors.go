package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/angosms/sms-gateway/internal/credit"
	"github.com/angosms/sms-gateway/internal/gateway"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/service/batch"
)

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, batch.ErrEmptyMessage):
		return http.StatusBadRequest, "EMPTY_MESSAGE"
	case errors.Is(err, batch.ErrMessageTooLong):
		return http.StatusBadRequest, model.ErrCodeMessageTooLong
	case errors.Is(err, batch.ErrNoRecipients):
		return http.StatusBadRequest, "NO_VALID_RECIPIENTS"
	case errors.Is(err, batch.ErrTooManyRecipients):
		return http.StatusRequestEntityTooLarge, "TOO_MANY_RECIPIENTS"
	case errors.Is(err, credit.ErrInsufficientCredits):
		return http.StatusPaymentRequired, model.ErrCodeInsufficientCredit
	case errors.Is(err, credit.ErrInvalidAmount), errors.Is(err, credit.ErrInvalidAdjustment):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, gateway.ErrUnknownGateway), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, gateway.ErrGatewayInactive), errors.Is(err, gateway.ErrPrimaryDeactivate),
		errors.Is(err, repository.ErrGatewayInactive), errors.Is(err, repository.ErrPrimaryDeactivate),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "CONFLICT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// respondError writes err as JSON. Unmapped errors are logged and hidden.
func respondError(c echo.Context, err error) error {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	return c.JSON(status, map[string]string{"error": msg, "code": code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
