package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

// MessageFilter narrows a message report. Zero values are ignored.
type MessageFilter struct {
	Phone   string
	Status  model.SmsStatus
	Gateway string
	JobID   string
	Limit   int
	Offset  int
}

// GatewayStat aggregates sms_logs per gateway for the admin dashboard.
type GatewayStat struct {
	Gateway   string  `db:"gateway"   json:"gateway"`
	Sent      uint64  `db:"sent"      json:"sent"`
	Delivered uint64  `db:"delivered" json:"delivered"`
	Failed    uint64  `db:"failed"    json:"failed"`
	Fallbacks uint64  `db:"fallbacks" json:"fallbacks"`
	Credits   int64   `db:"credits"   json:"credits"`
	Success   float64 `db:"success"   json:"success_rate"`
}

// ReportsRepository reads the sms_logs replica in ClickHouse.
type ReportsRepository interface {
	ListMessages(ctx context.Context, accountID int64, f MessageFilter) ([]model.SmsLog, error)
	GatewayStats(ctx context.Context, since time.Time) ([]GatewayStat, error)
}

type chReportsRepository struct {
	ch *sqlx.DB
}

func NewReportsRepository(ch *sqlx.DB) ReportsRepository {
	return &chReportsRepository{ch: ch}
}

func (r *chReportsRepository) ListMessages(ctx context.Context, accountID int64, f MessageFilter) ([]model.SmsLog, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT id, account_id, job_id, phone, message, sender_id, status, gateway, country_code,
		       fallback_attempted, segments, cost, gateway_message_id, error_code,
		       created_at, updated_at, delivered_at
		FROM smsgw.sms_logs_latest
		WHERE account_id = ?
	`
	args := []any{accountID}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.Phone != "" {
		q += " AND phone = ?"
		args = append(args, f.Phone)
	}
	if f.Gateway != "" {
		q += " AND gateway = ?"
		args = append(args, f.Gateway)
	}
	if f.JobID != "" {
		q += " AND job_id = ?"
		args = append(args, f.JobID)
	}
	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []model.SmsLog
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *chReportsRepository) GatewayStats(ctx context.Context, since time.Time) ([]GatewayStat, error) {
	var rows []GatewayStat
	err := r.ch.SelectContext(ctx, &rows, `
		SELECT gateway,
		       countIf(status IN ('sent', 'delivered'))           AS sent,
		       countIf(status = 'delivered')                      AS delivered,
		       countIf(status = 'failed')                         AS failed,
		       countIf(fallback_attempted)                        AS fallbacks,
		       sum(cost)                                          AS credits,
		       if(count() = 0, 0, countIf(status != 'failed') / count()) AS success
		FROM smsgw.sms_logs_latest
		WHERE created_at >= ? AND gateway != ''
		GROUP BY gateway
		ORDER BY gateway
	`, since)
	return rows, err
}
