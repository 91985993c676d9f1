package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

type AccountsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Account, error)
	GetByID(ctx context.Context, id int64) (*model.Account, error)
}

type AccountsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAccountsRepository(db *sqlx.DB) *AccountsRepositoryImpl {
	return &AccountsRepositoryImpl{db: db}
}

var _ AccountsRepository = (*AccountsRepositoryImpl)(nil)

const accountColumns = `id, name, api_key, status, rate_limit_rps, created_at, updated_at`

// GetByAPIKey returns nil without error when no account has the key.
func (r *AccountsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE api_key = ? LIMIT 1`, apiKey)
	if err = mapErr(err); err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}
