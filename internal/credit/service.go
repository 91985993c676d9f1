// Package credit keeps account wallets and the append-only credit ledger.
//
// A wallet has an available balance and a reserved amount held for in-flight
// sends. Ledger entries record total funds (balance + reserved), so holds and
// releases write nothing and only captured spend appears in the ledger.
package credit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/metrics"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/util"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidAdjustment   = errors.New("invalid adjustment")
	ErrHoldNotFound        = errors.New("no matching credit hold")
)

// Hold is credit reserved for one recipient send.
type Hold struct {
	AccountID int64
	Amount    int64
	Ref       string
}

type Adjustment struct {
	AccountID int64
	Delta     int64
	Type      model.AdjustmentType
	Reason    string
	Actor     string
	Reference string // idempotency key; generated when empty
}

type Service struct {
	db     *sqlx.DB
	wallet repository.WalletRepository
	ledger repository.LedgerRepository
	notes  repository.NotificationsRepository
	log    *zap.Logger
}

func New(db *sqlx.DB, wallet repository.WalletRepository, ledger repository.LedgerRepository, notes repository.NotificationsRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, wallet: wallet, ledger: ledger, notes: notes, log: log}
}

// Balance returns the wallet, or an empty one for accounts that never held
// credits.
func (s *Service) Balance(ctx context.Context, accountID int64) (model.WalletAccount, error) {
	w, err := s.wallet.Get(ctx, s.db, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.WalletAccount{AccountID: accountID}, nil
	}
	return w, err
}

func (s *Service) Entries(ctx context.Context, accountID int64, limit int) ([]model.CreditLedgerEntry, error) {
	return s.ledger.ListByAccount(ctx, accountID, limit)
}

// Reserve holds amount for one send and records the hold under ref. It never
// writes a ledger entry.
func (s *Service) Reserve(ctx context.Context, accountID, amount int64, ref string) (Hold, error) {
	if amount <= 0 {
		return Hold{}, ErrInvalidAmount
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.wallet.Reserve(ctx, tx, accountID, amount)
		if err != nil {
			return fmt.Errorf("reserve credits: %w", err)
		}
		if !ok {
			return ErrInsufficientCredits
		}
		if err := s.wallet.InsertHold(ctx, tx, model.CreditHold{Ref: ref, AccountID: accountID, Amount: amount}); err != nil {
			return fmt.Errorf("insert hold: %w", err)
		}
		return nil
	})
	if err != nil {
		return Hold{}, err
	}
	return Hold{AccountID: accountID, Amount: amount, Ref: ref}, nil
}

// Release returns a hold to the available balance. A hold that was already
// captured or released yields ErrHoldNotFound.
func (s *Service) Release(ctx context.Context, h Hold) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		held, err := s.wallet.DeleteHold(ctx, tx, h.Ref)
		if err != nil {
			return fmt.Errorf("close hold: %w", err)
		}
		if !held {
			return ErrHoldNotFound
		}
		ok, err := s.wallet.Release(ctx, tx, h.AccountID, h.Amount)
		if err != nil {
			return fmt.Errorf("release credits: %w", err)
		}
		if !ok {
			return ErrHoldNotFound
		}
		return nil
	})
}

// Capture spends a hold and writes one debit entry keyed by the hold ref.
// Capturing the same ref twice returns the first entry.
func (s *Service) Capture(ctx context.Context, h Hold, reason string) (model.CreditLedgerEntry, error) {
	var entry model.CreditLedgerEntry
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if prev, err := s.ledger.GetByReference(ctx, tx, h.Ref); err != nil {
			return err
		} else if prev != nil {
			entry = *prev
			return nil
		}

		held, err := s.wallet.DeleteHold(ctx, tx, h.Ref)
		if err != nil {
			return fmt.Errorf("close hold: %w", err)
		}
		if !held {
			return ErrHoldNotFound
		}
		w, err := s.wallet.GetForUpdate(ctx, tx, h.AccountID)
		if err != nil {
			return fmt.Errorf("wallet get for update: %w", err)
		}
		ok, err := s.wallet.Capture(ctx, tx, h.AccountID, h.Amount)
		if err != nil {
			return fmt.Errorf("capture credits: %w", err)
		}
		if !ok {
			return ErrHoldNotFound
		}
		entry = newEntry(h.AccountID, w.Funds(), -h.Amount, reason, model.AdjustmentDebit, model.ActorSystem, h.Ref)
		return s.ledger.Insert(ctx, tx, &entry)
	})
	if err != nil {
		return model.CreditLedgerEntry{}, err
	}
	metrics.CreditsSpent.Add(float64(h.Amount))
	return entry, nil
}

// ReserveAndDebit spends amount directly from the available balance in one
// conditional update plus a ledger entry. It either applies in full or not at
// all.
func (s *Service) ReserveAndDebit(ctx context.Context, accountID, amount int64, reason, ref string) (model.CreditLedgerEntry, error) {
	if amount <= 0 {
		return model.CreditLedgerEntry{}, ErrInvalidAmount
	}
	if ref == "" {
		ref = util.NewPrefixedID("debit")
	}

	var entry model.CreditLedgerEntry
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if prev, err := s.ledger.GetByReference(ctx, tx, ref); err != nil {
			return err
		} else if prev != nil {
			entry = *prev
			return nil
		}

		w, err := s.wallet.GetForUpdate(ctx, tx, accountID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInsufficientCredits
		}
		if err != nil {
			return fmt.Errorf("wallet get for update: %w", err)
		}
		ok, err := s.wallet.Debit(ctx, tx, accountID, amount)
		if err != nil {
			return fmt.Errorf("debit credits: %w", err)
		}
		if !ok {
			return ErrInsufficientCredits
		}
		entry = newEntry(accountID, w.Funds(), -amount, reason, model.AdjustmentDebit, model.ActorSystem, ref)
		return s.ledger.Insert(ctx, tx, &entry)
	})
	if err != nil {
		return model.CreditLedgerEntry{}, err
	}
	metrics.CreditsSpent.Add(float64(amount))
	return entry, nil
}

// Adjust applies an administrative or system change to an account's credits.
// A reference that was already applied returns the original entry.
func (s *Service) Adjust(ctx context.Context, a Adjustment) (model.CreditLedgerEntry, error) {
	if a.Delta == 0 || !a.Type.Valid() || a.Type == model.AdjustmentDebit {
		return model.CreditLedgerEntry{}, ErrInvalidAdjustment
	}
	if a.Actor == "" {
		a.Actor = model.ActorSystem
	}
	if a.Reference == "" {
		a.Reference = util.NewPrefixedID(string(a.Type))
	}

	var entry model.CreditLedgerEntry
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if prev, err := s.ledger.GetByReference(ctx, tx, a.Reference); err != nil {
			return err
		} else if prev != nil {
			entry = *prev
			return nil
		}

		if err := s.wallet.UpsertAccount(ctx, tx, a.AccountID); err != nil {
			return fmt.Errorf("wallet upsert: %w", err)
		}
		w, err := s.wallet.GetForUpdate(ctx, tx, a.AccountID)
		if err != nil {
			return fmt.Errorf("wallet get for update: %w", err)
		}

		if a.Delta < 0 {
			ok, err := s.wallet.Debit(ctx, tx, a.AccountID, -a.Delta)
			if err != nil {
				return fmt.Errorf("debit credits: %w", err)
			}
			if !ok {
				return ErrInsufficientCredits
			}
		} else if err := s.wallet.Credit(ctx, tx, a.AccountID, a.Delta); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}

		entry = newEntry(a.AccountID, w.Funds(), a.Delta, a.Reason, a.Type, a.Actor, a.Reference)
		if err := s.ledger.Insert(ctx, tx, &entry); err != nil {
			return err
		}

		if a.Actor != model.ActorSystem && a.Type != model.AdjustmentTopup {
			return s.notes.Insert(ctx, tx, model.Notification{
				AccountID: a.AccountID,
				Kind:      "credit_adjustment",
				Title:     "Credits adjusted",
				Body:      fmt.Sprintf("%+d credits (%s): %s", a.Delta, a.Type, a.Reason),
			})
		}
		return nil
	})
	if err != nil {
		return model.CreditLedgerEntry{}, err
	}

	s.log.Info("credits adjusted",
		zap.Int64("account_id", a.AccountID),
		zap.Int64("delta", a.Delta),
		zap.String("type", string(a.Type)),
		zap.String("actor", a.Actor))
	return entry, nil
}

// Topup adds purchased credits. requestID makes retries idempotent.
func (s *Service) Topup(ctx context.Context, accountID, amount int64, requestID string) (model.CreditLedgerEntry, error) {
	if amount <= 0 {
		return model.CreditLedgerEntry{}, ErrInvalidAmount
	}
	ref := ""
	if requestID != "" {
		ref = "topup-" + strconv.FormatInt(accountID, 10) + "-" + requestID
	}
	return s.Adjust(ctx, Adjustment{
		AccountID: accountID,
		Delta:     amount,
		Type:      model.AdjustmentTopup,
		Reason:    "wallet top-up",
		Actor:     "account:" + strconv.FormatInt(accountID, 10),
		Reference: ref,
	})
}

func (s *Service) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func newEntry(accountID, funds, delta int64, reason string, typ model.AdjustmentType, actor, ref string) model.CreditLedgerEntry {
	return model.CreditLedgerEntry{
		AccountID:       accountID,
		PreviousBalance: funds,
		Delta:           delta,
		NewBalance:      funds + delta,
		Reason:          reason,
		Type:            typ,
		Actor:           actor,
		Reference:       ref,
	}
}
