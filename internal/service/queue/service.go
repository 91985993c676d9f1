package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/service/batch"
	"github.com/angosms/sms-gateway/internal/util"
)

const BatchKafkaTopic = "sms.batch"

// Preflighter prices and validates a batch before it is accepted.
type Preflighter interface {
	Preflight(ctx context.Context, req batch.Request) (batch.Estimate, error)
}

// Service hands batches to the dispatch worker: the job row and its outbox
// event are written in one transaction, and Debezium publishes the event.
type Service struct {
	db     *sqlx.DB
	jobs   repository.JobsRepository
	outbox repository.OutboxRepository
	check  Preflighter
	topic  string
	log    *zap.Logger
}

func New(
	db *sqlx.DB,
	jobsRepo repository.JobsRepository,
	outboxRepo repository.OutboxRepository,
	check Preflighter,
	topic string,
	log *zap.Logger,
) *Service {
	if topic == "" {
		topic = BatchKafkaTopic
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, jobs: jobsRepo, outbox: outboxRepo, check: check, topic: topic, log: log}
}

type Accepted struct {
	JobID    string          `json:"job_id"`
	Status   model.JobStatus `json:"status"`
	Estimate batch.Estimate  `json:"estimate"`
}

// Enqueue runs the batch pre-flight and, when it passes, persists a queued
// job. The job keeps the E.164 numbers validated here, so the worker sends to
// exactly what was priced whatever country hint the request carried.
func (s *Service) Enqueue(ctx context.Context, accountID int64, req batch.Request) (Accepted, error) {
	req.AccountID = accountID
	est, err := s.check.Preflight(ctx, req)
	if err != nil {
		return Accepted{Estimate: est}, err
	}

	recipients, err := json.Marshal(est.Recipients.E164s())
	if err != nil {
		return Accepted{}, fmt.Errorf("marshal recipients: %w", err)
	}

	jobID := util.NewPrefixedID("job")
	job := model.BatchJob{
		ID:               jobID,
		AccountID:        accountID,
		Message:          req.Message,
		SenderID:         req.SenderID,
		Recipients:       recipients,
		Total:            len(est.Recipients.Valid),
		Invalid:          len(est.Recipients.Invalid),
		CreditsEstimated: est.Credits,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Accepted{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.jobs.Insert(ctx, tx, job); err != nil {
		return Accepted{}, fmt.Errorf("insert batch job: %w", err)
	}
	ev := repository.OutboxEvent{
		Aggregate:   "batch_job",
		AggregateID: jobID,
		Topic:       s.topic,
		Payload:     model.Envelope{JobID: jobID, AccountID: accountID},
	}
	if err := s.outbox.Insert(ctx, tx, ev); err != nil {
		return Accepted{}, fmt.Errorf("insert outbox: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Accepted{}, err
	}

	s.log.Info("batch queued",
		zap.String("job_id", jobID),
		zap.Int64("account_id", accountID),
		zap.Int("recipients", job.Total),
		zap.Int64("credits_estimated", est.Credits))
	return Accepted{JobID: jobID, Status: model.JobQueued, Estimate: est}, nil
}
