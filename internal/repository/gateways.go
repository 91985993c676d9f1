package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

var (
	ErrGatewayInactive   = errors.New("gateway inactive")
	ErrPrimaryDeactivate = errors.New("primary gateway cannot be deactivated")
)

type GatewaysRepository struct {
	db *sqlx.DB
}

func NewGatewaysRepository(db *sqlx.DB) *GatewaysRepository {
	return &GatewaysRepository{db: db}
}

const gatewayColumns = `name, display_name, kind, is_active, is_primary, endpoint, auth_type, credentials_ref,
	status, balance, response_time_ms, last_error, checked_at, created_at, updated_at`

func (r *GatewaysRepository) ListGateways(ctx context.Context) ([]model.Gateway, error) {
	var out []model.Gateway
	err := r.db.SelectContext(ctx, &out, `SELECT `+gatewayColumns+` FROM gateways ORDER BY name`)
	return out, err
}

func (r *GatewaysRepository) SaveProbe(ctx context.Context, p model.GatewayProbe) error {
	var lastErr *string
	if p.Error != "" {
		lastErr = &p.Error
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE gateways
		SET status = ?, balance = ?, response_time_ms = ?, last_error = ?, checked_at = ?, updated_at = NOW()
		WHERE name = ?
	`, string(p.Status), p.Balance, p.ResponseTimeMs, lastErr, p.CheckedAt, p.Name)
	return err
}

// SetPrimary flips is_primary in one statement so there is never a moment
// with zero or two primaries.
func (r *GatewaysRepository) SetPrimary(ctx context.Context, name string) error {
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var active bool
		err := tx.GetContext(ctx, &active, `SELECT is_active FROM gateways WHERE name = ? FOR UPDATE`, name)
		if err != nil {
			return mapErr(err)
		}
		if !active {
			return ErrGatewayInactive
		}
		_, err = tx.ExecContext(ctx, `UPDATE gateways SET is_primary = (name = ?), updated_at = NOW()`, name)
		return err
	})
}

// SetActive flips is_active. The row is locked first so a missing gateway and
// a primary that would be deactivated are told apart from a no-op update.
func (r *GatewaysRepository) SetActive(ctx context.Context, name string, active bool) error {
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var primary bool
		err := tx.GetContext(ctx, &primary, `SELECT is_primary FROM gateways WHERE name = ? FOR UPDATE`, name)
		if err != nil {
			return mapErr(err)
		}
		if !active && primary {
			return ErrPrimaryDeactivate
		}
		_, err = tx.ExecContext(ctx, `UPDATE gateways SET is_active = ?, updated_at = NOW() WHERE name = ?`, active, name)
		return err
	})
}

// Upsert inserts a gateway row or refreshes its descriptive columns. Flags
// set by operators are left alone.
func (r *GatewaysRepository) Upsert(ctx context.Context, g model.Gateway) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gateways
		    (name, display_name, kind, is_active, is_primary, endpoint, auth_type, credentials_ref, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'disconnected', NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    display_name = VALUES(display_name),
		    kind = VALUES(kind),
		    endpoint = VALUES(endpoint),
		    auth_type = VALUES(auth_type),
		    credentials_ref = VALUES(credentials_ref),
		    updated_at = NOW()
	`, g.Name, g.DisplayName, g.Kind, g.IsActive, g.IsPrimary, g.Endpoint, g.AuthType, g.CredentialsRef)
	return err
}
