package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

// WalletRepository mutates wallet_accounts. Every decrement is a single
// conditional UPDATE; a false result means the guard did not hold.
type WalletRepository interface {
	UpsertAccount(ctx context.Context, ext sqlx.ExtContext, accountID int64) error
	Get(ctx context.Context, ext sqlx.ExtContext, accountID int64) (model.WalletAccount, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, accountID int64) (model.WalletAccount, error)

	// Reserve moves amount from balance to reserved when balance >= amount.
	Reserve(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error)
	// Capture spends amount out of reserved.
	Capture(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error)
	// Release moves amount from reserved back to balance.
	Release(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error)
	// Debit spends amount directly from balance when balance >= amount.
	Debit(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error)
	Credit(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) error

	// InsertHold records an open reservation next to the Reserve update.
	InsertHold(ctx context.Context, ext sqlx.ExtContext, h model.CreditHold) error
	// DeleteHold closes a reservation; false means it was already settled.
	DeleteHold(ctx context.Context, ext sqlx.ExtContext, ref string) (bool, error)
	// StaleHolds lists reservations opened before the given time, oldest first.
	StaleHolds(ctx context.Context, ext sqlx.ExtContext, before time.Time, limit int) ([]model.CreditHold, error)
}

type walletRepo struct{}

func NewWalletRepository() WalletRepository { return &walletRepo{} }

func (r *walletRepo) UpsertAccount(ctx context.Context, ext sqlx.ExtContext, accountID int64) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO wallet_accounts (account_id, balance, reserved, created_at, updated_at)
		VALUES (?, 0, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE account_id = account_id
	`, accountID)
	return err
}

const walletColumns = `account_id, balance, reserved, created_at, updated_at`

func (r *walletRepo) Get(ctx context.Context, ext sqlx.ExtContext, accountID int64) (model.WalletAccount, error) {
	var w model.WalletAccount
	err := sqlx.GetContext(ctx, ext, &w, `SELECT `+walletColumns+` FROM wallet_accounts WHERE account_id = ?`, accountID)
	return w, mapErr(err)
}

func (r *walletRepo) GetForUpdate(ctx context.Context, tx *sqlx.Tx, accountID int64) (model.WalletAccount, error) {
	var w model.WalletAccount
	err := tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallet_accounts WHERE account_id = ? FOR UPDATE`, accountID)
	return w, mapErr(err)
}

func (r *walletRepo) Reserve(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error) {
	return affected(ext.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET balance = balance - ?, reserved = reserved + ?, updated_at = NOW()
		WHERE account_id = ? AND balance >= ?
	`, amount, amount, accountID, amount))
}

func (r *walletRepo) Capture(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error) {
	return affected(ext.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET reserved = reserved - ?, updated_at = NOW()
		WHERE account_id = ? AND reserved >= ?
	`, amount, accountID, amount))
}

func (r *walletRepo) Release(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error) {
	return affected(ext.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET reserved = reserved - ?, balance = balance + ?, updated_at = NOW()
		WHERE account_id = ? AND reserved >= ?
	`, amount, amount, accountID, amount))
}

func (r *walletRepo) Debit(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) (bool, error) {
	return affected(ext.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET balance = balance - ?, updated_at = NOW()
		WHERE account_id = ? AND balance >= ?
	`, amount, accountID, amount))
}

func (r *walletRepo) Credit(ctx context.Context, ext sqlx.ExtContext, accountID, amount int64) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET balance = balance + ?, updated_at = NOW()
		WHERE account_id = ?
	`, amount, accountID)
	return err
}

func (r *walletRepo) InsertHold(ctx context.Context, ext sqlx.ExtContext, h model.CreditHold) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO credit_holds (ref, account_id, amount, created_at)
		VALUES (?, ?, ?, NOW())
	`, h.Ref, h.AccountID, h.Amount)
	return mapErr(err)
}

func (r *walletRepo) DeleteHold(ctx context.Context, ext sqlx.ExtContext, ref string) (bool, error) {
	return affected(ext.ExecContext(ctx, `DELETE FROM credit_holds WHERE ref = ?`, ref))
}

func (r *walletRepo) StaleHolds(ctx context.Context, ext sqlx.ExtContext, before time.Time, limit int) ([]model.CreditHold, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []model.CreditHold
	err := sqlx.SelectContext(ctx, ext, &out, `
		SELECT ref, account_id, amount, created_at
		FROM credit_holds
		WHERE created_at < ?
		ORDER BY created_at
		LIMIT ?
	`, before, limit)
	return out, err
}
