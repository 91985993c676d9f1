package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

// LedgerRepository appends to credit_ledger. Entries are never updated.
type LedgerRepository interface {
	GetByReference(ctx context.Context, ext sqlx.ExtContext, ref string) (*model.CreditLedgerEntry, error)
	Insert(ctx context.Context, tx *sqlx.Tx, e *model.CreditLedgerEntry) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]model.CreditLedgerEntry, error)
}

type ledgerRepo struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository { return &ledgerRepo{db: db} }

const ledgerColumns = `id, account_id, previous_balance, delta, new_balance, reason, type, actor, reference, created_at`

// GetByReference returns nil without error when the reference is unused.
func (r *ledgerRepo) GetByReference(ctx context.Context, ext sqlx.ExtContext, ref string) (*model.CreditLedgerEntry, error) {
	var e model.CreditLedgerEntry
	err := sqlx.GetContext(ctx, ext, &e, `SELECT `+ledgerColumns+` FROM credit_ledger WHERE reference = ? LIMIT 1`, ref)
	if err = mapErr(err); err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert writes e and sets its ID. A reused reference yields ErrDuplicate.
func (r *ledgerRepo) Insert(ctx context.Context, tx *sqlx.Tx, e *model.CreditLedgerEntry) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO credit_ledger
		    (account_id, previous_balance, delta, new_balance, reason, type, actor, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`, e.AccountID, e.PreviousBalance, e.Delta, e.NewBalance, e.Reason, string(e.Type), e.Actor, e.Reference)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListByAccount returns the newest entries first.
func (r *ledgerRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]model.CreditLedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []model.CreditLedgerEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+ledgerColumns+`
		FROM credit_ledger
		WHERE account_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, accountID, limit)
	return out, err
}
