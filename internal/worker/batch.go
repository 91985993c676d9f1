// Package worker runs queued batch jobs consumed from Kafka.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/kafka"
	"github.com/angosms/sms-gateway/internal/metrics"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/service/batch"
)

type Runner interface {
	DispatchBatch(ctx context.Context, req batch.Request) (batch.Summary, error)
}

// BatchWorker:
// - fetches job envelopes from Kafka,
// - claims the job row (queued -> running),
// - runs the batch and writes the terminal status with counters.
type BatchWorker struct {
	Source  kafka.Source
	Jobs    repository.JobsRepository
	Batches Runner
	Workers int           // jobs processed concurrently
	Backoff time.Duration // wait after a failed fetch
	Log     *zap.Logger
}

func NewBatchWorker(src kafka.Source, jobs repository.JobsRepository, batches Runner, log *zap.Logger) *BatchWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchWorker{Source: src, Jobs: jobs, Batches: batches, Workers: 2, Log: log}
}

// Run blocks until ctx is cancelled.
func (w *BatchWorker) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 2
	}

	msgCh := make(chan kafka.Message, w.Workers)
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-time.After(w.backoff()):
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	for i := 0; i < w.Workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for m := range msgCh {
				w.processOne(ctx, m)
			}
		}()
	}
	for i := 0; i < w.Workers; i++ {
		<-done
	}
	return nil
}

func (w *BatchWorker) backoff() time.Duration {
	if w.Backoff <= 0 {
		return 200 * time.Millisecond
	}
	return w.Backoff
}

func (w *BatchWorker) processOne(ctx context.Context, m kafka.Message) {
	w.handle(ctx, m)
	// at-least-once: the job row guards against running a job twice
	if err := w.Source.Commit(context.WithoutCancel(ctx), m); err != nil {
		w.Log.Warn("kafka commit failed", zap.Error(err))
	}
}

func (w *BatchWorker) handle(ctx context.Context, m kafka.Message) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.JobID == "" {
		w.Log.Warn("skipping malformed envelope", zap.ByteString("value", m.Value), zap.Error(err))
		return
	}
	log := w.Log.With(zap.String("job_id", env.JobID), zap.Int64("account_id", env.AccountID))

	job, err := w.Jobs.Get(ctx, env.JobID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("job not found")
		return
	}
	if err != nil {
		log.Error("load job failed", zap.Error(err))
		return
	}
	if job.Status != model.JobQueued {
		log.Info("job already claimed", zap.String("status", job.Status.String()))
		return
	}

	settle := context.WithoutCancel(ctx)
	if job.CancelRequested {
		w.finish(settle, log, job.ID, model.JobCancelled, model.JobProgress{})
		return
	}

	claimed, err := w.Jobs.MarkRunning(ctx, job.ID)
	if err != nil || !claimed {
		log.Info("job not claimed", zap.Error(err))
		return
	}

	var recipients []string
	if err := json.Unmarshal(job.Recipients, &recipients); err != nil {
		w.finish(settle, log, job.ID, model.JobFailed, model.JobProgress{LastError: "bad recipients: " + err.Error()})
		return
	}

	sum, err := w.Batches.DispatchBatch(ctx, batch.Request{
		AccountID:  job.AccountID,
		JobID:      job.ID,
		Message:    job.Message,
		SenderID:   job.SenderID,
		Recipients: recipients,
	})
	p := model.JobProgress{
		Sent:         sum.Sent,
		Failed:       sum.Failed,
		Invalid:      job.Invalid + sum.InvalidRecipients,
		CreditsSpent: sum.CreditsSpent,
	}
	switch {
	case err != nil:
		p.LastError = err.Error()
		w.finish(settle, log, job.ID, model.JobFailed, p)
	case sum.Cancelled:
		w.finish(settle, log, job.ID, model.JobCancelled, p)
	default:
		w.finish(settle, log, job.ID, model.JobCompleted, p)
	}
}

func (w *BatchWorker) finish(ctx context.Context, log *zap.Logger, id string, status model.JobStatus, p model.JobProgress) {
	metrics.JobsTotal.WithLabelValues(status.String()).Inc()
	if err := w.Jobs.Finish(ctx, id, status, p); err != nil {
		log.Error("finish job failed", zap.String("status", status.String()), zap.Error(err))
		return
	}
	log.Info("job finished",
		zap.String("status", status.String()),
		zap.Int("sent", p.Sent),
		zap.Int("failed", p.Failed),
		zap.Int64("credits_spent", p.CreditsSpent))
}
