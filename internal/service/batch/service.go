// Package batch sends one message to many recipients, settling credits per
// recipient.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/credit"
	"github.com/angosms/sms-gateway/internal/dispatcher"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/phone"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/segment"
	"github.com/angosms/sms-gateway/internal/senderid"
	"github.com/angosms/sms-gateway/internal/util"
)

var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrMessageTooLong      = errors.New("message exceeds the segment limit")
	ErrNoRecipients        = errors.New("no valid recipients")
	ErrTooManyRecipients   = errors.New("too many recipients")
	ErrInsufficientCredits = credit.ErrInsufficientCredits
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatcher.Message, senderID, to, accountID string) model.DispatchResult
}

type Credits interface {
	Balance(ctx context.Context, accountID int64) (model.WalletAccount, error)
	Reserve(ctx context.Context, accountID, amount int64, ref string) (credit.Hold, error)
	Capture(ctx context.Context, h credit.Hold, reason string) (model.CreditLedgerEntry, error)
	Release(ctx context.Context, h credit.Hold) error
}

type Recorder interface {
	Record(ctx context.Context, res model.DispatchResult, meta repository.LogMeta) (string, error)
}

// CancelChecker reports whether a job was cancelled. Sync batches have no job
// and only stop on context cancellation.
type CancelChecker interface {
	Cancelled(ctx context.Context, jobID string) bool
}

type Request struct {
	AccountID   int64    `json:"account_id"`
	JobID       string   `json:"job_id,omitempty"`
	Message     string   `json:"message"`
	SenderID    string   `json:"sender_id,omitempty"`
	Recipients  []string `json:"recipients"`
	CountryHint string   `json:"country,omitempty"`
}

// Estimate is the side-effect free pre-flight of a request.
type Estimate struct {
	Segment    segment.Info      `json:"segment"`
	Recipients phone.BatchReport `json:"recipients"`
	SenderID   string            `json:"sender_id"`
	Credits    int64             `json:"credits_estimated"`
}

type Summary struct {
	ValidRecipients   int                    `json:"valid_recipients"`
	InvalidRecipients int                    `json:"invalid_recipients"`
	Duplicates        int                    `json:"duplicates"`
	Invalid           []phone.Invalid        `json:"invalid,omitempty"`
	SenderID          string                 `json:"sender_id"`
	Segments          int                    `json:"segments"`
	CreditsEstimated  int64                  `json:"credits_estimated"`
	CreditsSpent      int64                  `json:"credits_spent"`
	Sent              int                    `json:"sent"`
	Failed            int                    `json:"failed"`
	Cancelled         bool                   `json:"cancelled"`
	Results           []model.DispatchResult `json:"results"`
}

type Options struct {
	Workers           int
	MaxSegments       int
	CreditsPerSegment int64
	// SettleAttempts bounds capture and release retries for one hold. A hold
	// that still fails stays open for credit.Service.SettleStaleHolds.
	SettleAttempts int
	SettleBackoff  time.Duration
	Log            *zap.Logger
}

type Service struct {
	disp    Dispatcher
	credits Credits
	logs    Recorder
	cancel  CancelChecker
	senders *senderid.Resolver

	workers           int
	maxSegments       int
	creditsPerSegment int64
	settleAttempts    int
	settleBackoff     time.Duration
	log               *zap.Logger
}

func New(disp Dispatcher, credits Credits, logs Recorder, cancel CancelChecker, senders *senderid.Resolver, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.CreditsPerSegment <= 0 {
		opts.CreditsPerSegment = 1
	}
	if opts.SettleAttempts <= 0 {
		opts.SettleAttempts = 3
	}
	if opts.SettleBackoff <= 0 {
		opts.SettleBackoff = 100 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Service{
		disp:              disp,
		credits:           credits,
		logs:              logs,
		cancel:            cancel,
		senders:           senders,
		workers:           opts.Workers,
		maxSegments:       opts.MaxSegments,
		creditsPerSegment: opts.CreditsPerSegment,
		settleAttempts:    opts.SettleAttempts,
		settleBackoff:     opts.SettleBackoff,
		log:               opts.Log,
	}
}

// Estimate validates recipients and message and prices the batch.
func (s *Service) Estimate(req Request) (Estimate, error) {
	hint := req.CountryHint
	if hint == "" {
		hint = phone.DefaultCountry
	}
	est := Estimate{
		Segment:    segment.Calculate(req.Message, s.maxSegments),
		Recipients: phone.ValidateBatch(req.Recipients, hint),
		SenderID:   s.senders.Resolve(req.SenderID),
	}
	est.Credits = segment.Cost(est.Segment, len(est.Recipients.Valid), s.creditsPerSegment)

	if !est.Segment.IsValid {
		if est.Segment.Segments == 0 {
			return est, ErrEmptyMessage
		}
		return est, ErrMessageTooLong
	}
	if len(est.Recipients.Valid) == 0 {
		return est, ErrNoRecipients
	}
	return est, nil
}

// Preflight is Estimate plus a balance check against the available credits.
func (s *Service) Preflight(ctx context.Context, req Request) (Estimate, error) {
	est, err := s.Estimate(req)
	if err != nil {
		return est, err
	}
	w, err := s.credits.Balance(ctx, req.AccountID)
	if err != nil {
		return est, fmt.Errorf("load balance: %w", err)
	}
	if w.Balance < est.Credits {
		return est, ErrInsufficientCredits
	}
	return est, nil
}

// DispatchBatch sends req.Message to every valid recipient. Request-level
// failures (message too long, insufficient credits) are returned before any
// send. Per-recipient failures are reported in the summary.
func (s *Service) DispatchBatch(ctx context.Context, req Request) (Summary, error) {
	est, err := s.Preflight(ctx, req)
	sum := Summary{
		ValidRecipients:   len(est.Recipients.Valid),
		InvalidRecipients: len(est.Recipients.Invalid),
		Duplicates:        est.Recipients.Duplicates,
		Invalid:           est.Recipients.Invalid,
		SenderID:          est.SenderID,
		Segments:          est.Segment.Segments,
		CreditsEstimated:  est.Credits,
	}
	if err != nil {
		return sum, err
	}

	msg := dispatcher.Message{Body: req.Message, Info: est.Segment}
	cost := int64(est.Segment.Segments) * s.creditsPerSegment
	results := make([]model.DispatchResult, len(est.Recipients.Valid))

	p := pool.New().WithMaxGoroutines(s.workers)
	for i, r := range est.Recipients.Valid {
		p.Go(func() {
			results[i] = s.sendOne(ctx, req, msg, est.SenderID, r, cost)
		})
	}
	p.Wait()

	sum.Results = results
	for _, res := range results {
		switch {
		case res.Success:
			sum.Sent++
			sum.CreditsSpent += res.Cost
		case res.ErrorCode == model.ErrCodeCancelled:
			sum.Cancelled = true
		default:
			sum.Failed++
		}
	}

	s.log.Info("batch dispatched",
		zap.Int64("account_id", req.AccountID),
		zap.String("job_id", req.JobID),
		zap.Int("valid", sum.ValidRecipients),
		zap.Int("invalid", sum.InvalidRecipients),
		zap.Int("sent", sum.Sent),
		zap.Int("failed", sum.Failed),
		zap.Int64("credits_spent", sum.CreditsSpent),
		zap.Bool("cancelled", sum.Cancelled))
	return sum, nil
}

// sendOne runs Reserve, Dispatch, Capture or Release and Record for one
// recipient. Settlement runs even if ctx is cancelled mid-send.
func (s *Service) sendOne(ctx context.Context, req Request, msg dispatcher.Message, sender string, r phone.Result, cost int64) model.DispatchResult {
	base := model.DispatchResult{
		Recipient: r.E164,
		Country:   r.Country,
		Segments:  msg.Info.Segments,
		Attempts:  []model.DispatchAttempt{},
	}
	if ctx.Err() != nil || (req.JobID != "" && s.cancel != nil && s.cancel.Cancelled(ctx, req.JobID)) {
		base.ErrorCode = model.ErrCodeCancelled
		return base
	}

	settle := context.WithoutCancel(ctx)
	meta := repository.LogMeta{AccountID: req.AccountID, JobID: req.JobID, Message: req.Message, SenderID: sender}

	hold, err := s.credits.Reserve(ctx, req.AccountID, cost, util.NewPrefixedID("sms"))
	if err != nil {
		base.ErrorCode = model.ErrCodeInsufficientCredit
		if !errors.Is(err, credit.ErrInsufficientCredits) {
			base.ErrorCode = model.ErrCodeDispatch
			s.log.Error("credit reserve failed", zap.Int64("account_id", req.AccountID), zap.Error(err))
		}
		s.record(settle, base, meta)
		return base
	}

	meta.CreditRef = hold.Ref

	res := s.disp.Dispatch(ctx, msg, sender, r.E164, strconv.FormatInt(req.AccountID, 10))
	if res.Success {
		s.settleHold(settle, "capture", hold, func() error {
			_, err := s.credits.Capture(settle, hold, "sms to "+r.E164+" via "+res.Gateway)
			return err
		})
	} else {
		res.Cost = 0
		s.settleHold(settle, "release", hold, func() error {
			return s.credits.Release(settle, hold)
		})
	}

	s.record(settle, res, meta)
	return res
}

// settleHold retries op on transient errors. ErrHoldNotFound means an earlier
// attempt already settled the hold.
func (s *Service) settleHold(ctx context.Context, op string, h credit.Hold, fn func() error) {
	var err error
retry:
	for attempt := 1; attempt <= s.settleAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, credit.ErrHoldNotFound) {
			return
		}
		if attempt == s.settleAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * s.settleBackoff):
		case <-ctx.Done():
			break retry
		}
	}
	s.log.Error("credit "+op+" failed, hold left open",
		zap.Int64("account_id", h.AccountID),
		zap.String("ref", h.Ref),
		zap.Int("attempts", s.settleAttempts),
		zap.Error(err))
}

func (s *Service) record(ctx context.Context, res model.DispatchResult, meta repository.LogMeta) {
	if s.logs == nil {
		return
	}
	if _, err := s.logs.Record(ctx, res, meta); err != nil {
		s.log.Error("record dispatch log failed",
			zap.String("recipient", res.Recipient),
			zap.String("job_id", meta.JobID),
			zap.Error(err))
	}
}
