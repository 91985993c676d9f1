package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angosms/sms-gateway/internal/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func TestSetPrimarySingleStatement(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGatewaysRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_active FROM gateways WHERE name = ? FOR UPDATE")).
		WithArgs("bulkgate").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE gateways SET is_primary = (name = ?)")).
		WithArgs("bulkgate").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.SetPrimary(context.Background(), "bulkgate"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPrimaryRejectsInactiveAndUnknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGatewaysRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_active")).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.SetPrimary(context.Background(), "legacy"), ErrGatewayInactive)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_active")).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.SetPrimary(context.Background(), "nope"), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveProbe(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGatewaysRepository(db)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bal := 12.5

	mock.ExpectExec(regexp.QuoteMeta("UPDATE gateways SET status = ?")).
		WithArgs("connected", &bal, int64(120), nil, at, "bulksms").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveProbe(context.Background(), model.GatewayProbe{
		Name: "bulksms", Status: model.GatewayConnected, Balance: &bal, ResponseTimeMs: 120, CheckedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActive(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGatewaysRepository(db)
	ctx := context.Background()
	lock := regexp.QuoteMeta("SELECT is_primary FROM gateways WHERE name = ? FOR UPDATE")

	// re-activating an active gateway leaves nothing to change but still succeeds
	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs("bulkgate").
		WillReturnRows(sqlmock.NewRows([]string{"is_primary"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE gateways SET is_active = ?")).
		WithArgs(true, "bulkgate").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	require.NoError(t, repo.SetActive(ctx, "bulkgate", true))

	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs("routee").
		WillReturnRows(sqlmock.NewRows([]string{"is_primary"}).AddRow(true))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.SetActive(ctx, "routee", false), ErrPrimaryDeactivate)

	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"is_primary"}))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.SetActive(ctx, "nope", true), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
