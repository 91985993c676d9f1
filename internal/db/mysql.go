package db

import (
	"context"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/config"
)

// NewMySQL opens the primary store. parseTime and UTC are forced on since the
// repositories scan DATETIME columns into time.Time. clientFoundRows makes
// RowsAffected count matched rows, so an UPDATE that leaves values unchanged
// still reports its row.
func NewMySQL(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN
	if dsn != "" {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, err
		}
		parsed.ParseTime = true
		parsed.Loc = time.UTC
		parsed.ClientFoundRows = true
		dsn = parsed.FormatDSN()
	}
	return open(ctx, "mysql", dsn, cfg, 5*time.Second)
}
