package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

type JobsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, j model.BatchJob) error
	Get(ctx context.Context, id string) (*model.BatchJob, error)
	// MarkRunning moves a queued job to running; false when it was not queued.
	MarkRunning(ctx context.Context, id string) (bool, error)
	Finish(ctx context.Context, id string, status model.JobStatus, p model.JobProgress) error
	// RequestCancel flags a queued or running job owned by accountID.
	RequestCancel(ctx context.Context, id string, accountID int64) (bool, error)
	CancelRequested(ctx context.Context, id string) (bool, error)
}

type JobsRepositoryImpl struct {
	db *sqlx.DB
}

func NewJobsRepository(db *sqlx.DB) *JobsRepositoryImpl {
	return &JobsRepositoryImpl{db: db}
}

var _ JobsRepository = (*JobsRepositoryImpl)(nil)

func (r *JobsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, j model.BatchJob) error {
	const q = `
		INSERT INTO batch_jobs
		    (id, account_id, message, sender_id, recipients, status, total, invalid, credits_estimated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?, ?, NOW(), NOW())
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, j.ID, j.AccountID, j.Message, j.SenderID, j.Recipients, j.Total, j.Invalid, j.CreditsEstimated)
		return err
	})
}

func (r *JobsRepositoryImpl) Get(ctx context.Context, id string) (*model.BatchJob, error) {
	var j model.BatchJob
	err := r.db.GetContext(ctx, &j, `
		SELECT id, account_id, message, sender_id, recipients, status, cancel_requested, total, sent, failed, invalid,
		       credits_estimated, credits_spent, last_error, created_at, updated_at, started_at, finished_at
		FROM batch_jobs
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &j, nil
}

func (r *JobsRepositoryImpl) MarkRunning(ctx context.Context, id string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE batch_jobs
		SET status = 'running', started_at = NOW(), updated_at = NOW()
		WHERE id = ? AND status = 'queued'
	`, id))
}

func (r *JobsRepositoryImpl) Finish(ctx context.Context, id string, status model.JobStatus, p model.JobProgress) error {
	var lastErr *string
	if p.LastError != "" {
		lastErr = &p.LastError
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE batch_jobs
		SET status = ?, sent = ?, failed = ?, invalid = ?, credits_spent = ?, last_error = ?,
		    finished_at = NOW(), updated_at = NOW()
		WHERE id = ?
	`, status.String(), p.Sent, p.Failed, p.Invalid, p.CreditsSpent, lastErr, id)
	return err
}

func (r *JobsRepositoryImpl) RequestCancel(ctx context.Context, id string, accountID int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE batch_jobs
		SET cancel_requested = TRUE, updated_at = NOW()
		WHERE id = ? AND account_id = ? AND status IN ('queued', 'running')
	`, id, accountID))
}

func (r *JobsRepositoryImpl) CancelRequested(ctx context.Context, id string) (bool, error) {
	var flag bool
	err := r.db.GetContext(ctx, &flag, `SELECT cancel_requested FROM batch_jobs WHERE id = ?`, id)
	return flag, mapErr(err)
}
