package batch

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/repository"
)

const cancelFlagTTL = 24 * time.Hour

func cancelKey(jobID string) string { return "smsgw:job:cancel:" + jobID }

// CancelFlags records cancellation on the job row and mirrors it into Redis
// so workers can check it before every recipient without a database read.
type CancelFlags struct {
	rdb  *redis.Client
	jobs repository.JobsRepository
	log  *zap.Logger
}

func NewCancelFlags(rdb *redis.Client, jobs repository.JobsRepository, log *zap.Logger) *CancelFlags {
	if log == nil {
		log = zap.NewNop()
	}
	return &CancelFlags{rdb: rdb, jobs: jobs, log: log}
}

// Request flags a queued or running job. It returns false when the job does
// not exist, belongs to another account, or already finished.
func (c *CancelFlags) Request(ctx context.Context, jobID string, accountID int64) (bool, error) {
	ok, err := c.jobs.RequestCancel(ctx, jobID, accountID)
	if err != nil || !ok {
		return ok, err
	}
	if err := c.rdb.Set(ctx, cancelKey(jobID), "1", cancelFlagTTL).Err(); err != nil {
		c.log.Warn("cancel flag not cached", zap.String("job_id", jobID), zap.Error(err))
	}
	return true, nil
}

// Cancelled checks Redis first and falls back to the job row when Redis is
// unreachable.
func (c *CancelFlags) Cancelled(ctx context.Context, jobID string) bool {
	n, err := c.rdb.Exists(ctx, cancelKey(jobID)).Result()
	if err == nil {
		return n > 0
	}
	flag, err := c.jobs.CancelRequested(ctx, jobID)
	if err != nil {
		c.log.Warn("cancel check failed", zap.String("job_id", jobID), zap.Error(err))
		return false
	}
	return flag
}
