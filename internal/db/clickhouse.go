package db

import (
	"context"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/config"
)

// NewClickHouse opens the reporting replica, e.g.
// clickhouse://default:@localhost:9000/smsgw?dial_timeout=5s&compress=true
func NewClickHouse(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return open(ctx, "clickhouse", cfg.DSN, cfg, 3*time.Second)
}
