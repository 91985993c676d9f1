package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/util"
)

// LogMeta is the per-request context written next to a dispatch result.
type LogMeta struct {
	AccountID int64
	JobID     string
	Message   string
	SenderID  string
	CreditRef string // hold that paid for the send
}

// SmsLogRepository persists one sms_logs row per recipient outcome.
type SmsLogRepository interface {
	Record(ctx context.Context, res model.DispatchResult, meta LogMeta) (string, error)
	ApplyDeliveryStatus(ctx context.Context, gateway, gatewayMessageID string, status model.SmsStatus) (bool, error)
	ListByJob(ctx context.Context, jobID string, limit int) ([]model.SmsLog, error)
	StatusByCreditRef(ctx context.Context, ref string) (model.SmsStatus, error)
}

type SmsLogRepositoryImpl struct {
	db *sqlx.DB
}

func NewSmsLogRepository(db *sqlx.DB) *SmsLogRepositoryImpl {
	return &SmsLogRepositoryImpl{db: db}
}

var _ SmsLogRepository = (*SmsLogRepositoryImpl)(nil)

// Record appends the outcome of one recipient and returns the log id.
func (r *SmsLogRepositoryImpl) Record(ctx context.Context, res model.DispatchResult, meta LogMeta) (string, error) {
	attempts, err := json.Marshal(res.Attempts)
	if err != nil {
		return "", err
	}

	status := model.SmsFailed
	if res.Success {
		status = model.SmsSent
	}
	var jobID *string
	if meta.JobID != "" {
		jobID = &meta.JobID
	}

	id := util.NewID()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sms_logs
		    (id, account_id, job_id, phone, message, sender_id, status, gateway, country_code,
		     fallback_attempted, segments, cost, gateway_message_id, error_code, attempts, credit_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, id, meta.AccountID, jobID, res.Recipient, meta.Message, meta.SenderID, status.String(), res.Gateway, res.Country,
		res.FallbackUsed, res.Segments, res.Cost, res.MessageID, res.ErrorCode, attempts, meta.CreditRef)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ApplyDeliveryStatus moves a sent row to delivered or failed. It reports
// false when no sent row matched.
func (r *SmsLogRepositoryImpl) ApplyDeliveryStatus(ctx context.Context, gateway, gatewayMessageID string, status model.SmsStatus) (bool, error) {
	if !model.SmsSent.CanTransition(status) || gatewayMessageID == "" {
		return false, nil
	}
	return affected(r.db.ExecContext(ctx, `
		UPDATE sms_logs
		SET status = ?,
		    delivered_at = CASE WHEN ? = 'delivered' THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE gateway = ? AND gateway_message_id = ? AND status = 'sent'
	`, status.String(), status.String(), gateway, gatewayMessageID))
}

func (r *SmsLogRepositoryImpl) ListByJob(ctx context.Context, jobID string, limit int) ([]model.SmsLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []model.SmsLog
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, account_id, job_id, phone, message, sender_id, status, gateway, country_code,
		       fallback_attempted, segments, cost, gateway_message_id, error_code, attempts,
		       created_at, updated_at, delivered_at
		FROM sms_logs
		WHERE job_id = ?
		ORDER BY created_at
		LIMIT ?
	`, jobID, limit)
	return out, err
}

// StatusByCreditRef returns the status of the send paid by a credit hold, or
// ErrNotFound when no outcome was recorded for it.
func (r *SmsLogRepositoryImpl) StatusByCreditRef(ctx context.Context, ref string) (model.SmsStatus, error) {
	var st model.SmsStatus
	err := r.db.GetContext(ctx, &st, `SELECT status FROM sms_logs WHERE credit_ref = ? LIMIT 1`, ref)
	return st, mapErr(err)
}
