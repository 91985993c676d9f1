package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/angosms/sms-gateway/internal/http/middleware"
	"github.com/angosms/sms-gateway/internal/service/batch"
)

type smsRequest struct {
	Message    string   `json:"message"`
	SenderID   string   `json:"sender_id"`
	Recipients []string `json:"recipients"`
	Country    string   `json:"country"`
}

// bindSMS decodes and bounds an SMS request. When ok is false the response
// has already been written and err is the result of writing it.
func bindSMS(c echo.Context, limit int) (req batch.Request, ok bool, err error) {
	accountID, authed := middleware.AccountIDFromCtx(c)
	if !authed {
		return req, false, c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	var body smsRequest
	if err := c.Bind(&body); err != nil {
		return req, false, badRequest(c, "invalid body")
	}
	if len(body.Recipients) == 0 {
		return req, false, badRequest(c, "recipients are required")
	}
	if limit > 0 && len(body.Recipients) > limit {
		return req, false, respondError(c, batch.ErrTooManyRecipients)
	}
	return batch.Request{
		AccountID:   accountID,
		Message:     body.Message,
		SenderID:    body.SenderID,
		Recipients:  body.Recipients,
		CountryHint: strings.ToUpper(strings.TrimSpace(body.Country)),
	}, true, nil
}

// POST /v1/sms/dispatch sends a small batch and waits for every result.
func dispatchHandler(b Batches, maxRecipients int) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, ok, err := bindSMS(c, maxRecipients)
		if !ok {
			return err
		}
		sum, err := b.DispatchBatch(c.Request().Context(), req)
		if err != nil {
			status, code := errorStatus(err)
			if status == http.StatusInternalServerError {
				return respondError(c, err)
			}
			return c.JSON(status, echo.Map{"error": err.Error(), "code": code, "summary": sum})
		}
		return c.JSON(http.StatusOK, sum)
	}
}

// POST /v1/sms/batch queues a batch for the dispatch worker.
func enqueueHandler(q Enqueuer, maxRecipients int) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, ok, err := bindSMS(c, maxRecipients)
		if !ok {
			return err
		}
		acc, err := q.Enqueue(c.Request().Context(), req.AccountID, req)
		if err != nil {
			status, code := errorStatus(err)
			if status == http.StatusInternalServerError {
				return respondError(c, err)
			}
			return c.JSON(status, echo.Map{"error": err.Error(), "code": code, "estimate": acc.Estimate})
		}
		return c.JSON(http.StatusAccepted, acc)
	}
}

// POST /v1/sms/estimate prices a request without sending or reserving.
func estimateHandler(b Batches) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, ok, err := bindSMS(c, 0)
		if !ok {
			return err
		}
		est, err := b.Estimate(req)
		resp := echo.Map{"estimate": est, "valid": err == nil}
		if err != nil {
			_, code := errorStatus(err)
			resp["error"] = err.Error()
			resp["code"] = code
		}
		return c.JSON(http.StatusOK, resp)
	}
}
