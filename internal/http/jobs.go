package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/angosms/sms-gateway/internal/http/middleware"
	"github.com/angosms/sms-gateway/internal/repository"
)

// GET /v1/jobs/:id
func getJobHandler(jobs JobReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, _ := middleware.AccountIDFromCtx(c)
		job, err := jobs.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return respondError(c, err)
		}
		if job.AccountID != accountID {
			return respondError(c, repository.ErrNotFound)
		}
		return c.JSON(http.StatusOK, job)
	}
}

// GET /v1/jobs/:id/messages lists the per-recipient log rows of a job.
func jobMessagesHandler(jobs JobReader, logs JobLogs) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, _ := middleware.AccountIDFromCtx(c)
		ctx := c.Request().Context()
		id := c.Param("id")

		job, err := jobs.Get(ctx, id)
		if err != nil {
			return respondError(c, err)
		}
		if job.AccountID != accountID {
			return respondError(c, repository.ErrNotFound)
		}
		rows, err := logs.ListByJob(ctx, id, queryInt(c, "limit", 100, 1, 1000))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"job_id":  id,
			"status":  job.Status,
			"count":   len(rows),
			"results": rows,
		})
	}
}

// POST /v1/jobs/:id/cancel stops a queued or running job between recipients.
func cancelJobHandler(jobs JobReader, cancels JobCanceller) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID, _ := middleware.AccountIDFromCtx(c)
		id := c.Param("id")
		ok, err := cancels.Request(c.Request().Context(), id, accountID)
		if err != nil {
			return respondError(c, err)
		}
		if ok {
			return c.JSON(http.StatusAccepted, map[string]string{"job_id": id, "status": "cancel_requested"})
		}

		job, err := jobs.Get(c.Request().Context(), id)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && job.AccountID != accountID) {
			return respondError(c, repository.ErrNotFound)
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusConflict, map[string]string{
			"error":  "job already finished",
			"job_id": id,
			"status": job.Status.String(),
		})
	}
}
