package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

type RoutingRepository struct {
	db *sqlx.DB
}

func NewRoutingRepository(db *sqlx.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

func (r *RoutingRepository) ListRoutingRules(ctx context.Context) ([]model.RoutingRule, error) {
	var out []model.RoutingRule
	err := r.db.SelectContext(ctx, &out, `
		SELECT country_code, primary_gateway, fallback_gateway, updated_at
		FROM routing_rules
		ORDER BY country_code
	`)
	return out, err
}

func (r *RoutingRepository) Upsert(ctx context.Context, rule model.RoutingRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO routing_rules (country_code, primary_gateway, fallback_gateway, updated_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
		    primary_gateway = VALUES(primary_gateway),
		    fallback_gateway = VALUES(fallback_gateway),
		    updated_at = NOW()
	`, rule.CountryCode, rule.PrimaryGateway, rule.FallbackGateway)
	return err
}
