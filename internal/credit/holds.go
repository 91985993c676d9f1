package credit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
)

// SendOutcomes reports the recorded status of the send a hold paid for.
// repository.ErrNotFound means no outcome was recorded.
type SendOutcomes interface {
	StatusByCreditRef(ctx context.Context, ref string) (model.SmsStatus, error)
}

type SweepResult struct {
	Captured int
	Released int
	Failed   int
}

// SettleStaleHolds closes holds older than maxAge. A hold whose send was
// recorded as sent or delivered is captured; any other hold is released.
func (s *Service) SettleStaleHolds(ctx context.Context, outcomes SendOutcomes, maxAge time.Duration, limit int) (SweepResult, error) {
	var res SweepResult
	holds, err := s.wallet.StaleHolds(ctx, s.db, time.Now().Add(-maxAge), limit)
	if err != nil {
		return res, err
	}

	for _, h := range holds {
		hold := Hold{AccountID: h.AccountID, Amount: h.Amount, Ref: h.Ref}
		log := s.log.With(zap.String("ref", h.Ref), zap.Int64("account_id", h.AccountID), zap.Int64("amount", h.Amount))

		st, err := outcomes.StatusByCreditRef(ctx, h.Ref)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Warn("hold outcome lookup failed", zap.Error(err))
			res.Failed++
			continue
		}

		if err == nil && (st == model.SmsSent || st == model.SmsDelivered) {
			_, err = s.Capture(ctx, hold, "settled sms hold "+h.Ref)
			if err == nil {
				res.Captured++
				log.Info("stale hold captured")
				continue
			}
		} else {
			err = s.Release(ctx, hold)
			if err == nil {
				res.Released++
				log.Info("stale hold released")
				continue
			}
		}
		if errors.Is(err, ErrHoldNotFound) {
			continue
		}
		log.Warn("stale hold not settled", zap.Error(err))
		res.Failed++
	}
	return res, nil
}

// RunHoldSweeper settles stale holds every interval until ctx is done.
func (s *Service) RunHoldSweeper(ctx context.Context, outcomes SendOutcomes, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			res, err := s.SettleStaleHolds(ctx, outcomes, maxAge, 500)
			if err != nil {
				s.log.Warn("hold sweep failed", zap.Error(err))
				continue
			}
			if res.Captured+res.Released+res.Failed > 0 {
				s.log.Info("hold sweep round",
					zap.Int("captured", res.Captured),
					zap.Int("released", res.Released),
					zap.Int("failed", res.Failed))
			}
		}
	}
}
