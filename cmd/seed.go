package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/credit"
	"github.com/angosms/sms-gateway/internal/db"
	"github.com/angosms/sms-gateway/internal/dispatcher"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo accounts, gateways and routing rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		sqlDB, err := db.NewMySQL(ctx, cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Info("seeding demo accounts")
		if err := seedAccounts(ctx, sqlDB); err != nil {
			return err
		}
		if err := ensureWallets(ctx, sqlDB); err != nil {
			return err
		}
		credits := credit.New(sqlDB, repository.NewWalletRepository(), repository.NewLedgerRepository(sqlDB),
			repository.NewNotificationsRepository(), log.Named("credit"))
		if err := seedCredits(ctx, sqlDB, credits); err != nil {
			return err
		}

		log.Info("seeding gateways and routing rules")
		if err := seedGateways(ctx, repository.NewGatewaysRepository(sqlDB), cfg); err != nil {
			return err
		}
		if err := seedRouting(ctx, repository.NewRoutingRepository(sqlDB), cfg.Routing); err != nil {
			return err
		}

		log.Info("seed completed", zap.Int("gateways", len(cfg.Gateways.Providers)))
		return nil
	},
}

// seedAccounts inserts deterministic demo accounts (idempotent).
func seedAccounts(ctx context.Context, dbx *sqlx.DB) error {
	accounts := []model.Account{
		{Name: "Kwanza Retail", APIKey: "11111111111111111111111111111111", Status: model.AccountActive, RateLimitRPS: intptr(20)},
		{Name: "Luanda Logistics", APIKey: "22222222222222222222222222222222", Status: model.AccountActive, RateLimitRPS: intptr(50)},
		{Name: "Benguela Clinic", APIKey: "33333333333333333333333333333333", Status: model.AccountActive, RateLimitRPS: intptr(5)},
		{Name: "Suspended Lda", APIKey: "44444444444444444444444444444444", Status: model.AccountSuspended},
		{Name: "Huambo Telecom Partner", APIKey: "55555555555555555555555555555555", Status: model.AccountActive, RateLimitRPS: intptr(100)},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO accounts
    (name, api_key, status, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    status         = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps),
    updated_at     = VALUES(updated_at)
`
	tx, err := dbx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx, q, a.Name, a.APIKey, a.Status, a.RateLimitRPS, now, now); err != nil {
			return fmt.Errorf("insert account %q: %w", a.Name, err)
		}
	}
	return tx.Commit()
}

// ensureWallets creates wallet_accounts for accounts that don't have one yet.
func ensureWallets(ctx context.Context, dbx *sqlx.DB) error {
	const q = `
INSERT INTO wallet_accounts (account_id, balance, reserved, created_at, updated_at)
SELECT a.id, 0, 0, NOW(), NOW()
FROM accounts a
LEFT JOIN wallet_accounts w ON w.account_id = a.id
WHERE w.account_id IS NULL
`
	if _, err := dbx.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure wallets: %w", err)
	}
	return nil
}

// seedCredits grants a welcome bonus once per active account.
func seedCredits(ctx context.Context, dbx *sqlx.DB, credits *credit.Service) error {
	var ids []int64
	if err := dbx.SelectContext(ctx, &ids, `SELECT id FROM accounts WHERE status = 'active' ORDER BY id`); err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	for _, id := range ids {
		_, err := credits.Adjust(ctx, credit.Adjustment{
			AccountID: id,
			Delta:     1000,
			Type:      model.AdjustmentBonus,
			Reason:    "welcome credits",
			Actor:     model.ActorSystem,
			Reference: "seed-bonus-" + strconv.FormatInt(id, 10),
		})
		if err != nil {
			return fmt.Errorf("bonus for account %d: %w", id, err)
		}
	}
	return nil
}

func seedGateways(ctx context.Context, repo *repository.GatewaysRepository, cfg config.Config) error {
	for _, pc := range cfg.Gateways.Providers {
		auth := "basic"
		switch pc.Kind {
		case "bulkgate", "http":
			auth = "token"
		case "routee":
			auth = "oauth2"
		}
		g := model.Gateway{
			Name:           pc.Name,
			DisplayName:    pc.DisplayName,
			Kind:           pc.Kind,
			IsActive:       pc.Enabled,
			IsPrimary:      pc.Name == cfg.Routing.Default.Primary,
			Endpoint:       pc.BaseURL,
			AuthType:       auth,
			CredentialsRef: "config:gateways." + pc.Name,
		}
		if err := repo.Upsert(ctx, g); err != nil {
			return fmt.Errorf("upsert gateway %q: %w", pc.Name, err)
		}
	}
	return nil
}

func seedRouting(ctx context.Context, repo *repository.RoutingRepository, rc config.RoutingConfig) error {
	rules := []model.RoutingRule{{
		CountryCode:     dispatcher.DefaultCountry,
		PrimaryGateway:  rc.Default.Primary,
		FallbackGateway: rc.Default.Fallback,
	}}
	for _, r := range rc.Rules {
		rules = append(rules, model.RoutingRule{
			CountryCode:     r.Country,
			PrimaryGateway:  r.Primary,
			FallbackGateway: r.Fallback,
		})
	}
	for _, r := range rules {
		if err := repo.Upsert(ctx, r); err != nil {
			return fmt.Errorf("upsert routing rule %q: %w", r.CountryCode, err)
		}
	}
	return nil
}

func intptr(i int) *int { return &i }
