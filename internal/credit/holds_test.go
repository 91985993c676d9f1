package credit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
)

type outcomeMap map[string]model.SmsStatus

func (m outcomeMap) StatusByCreditRef(ctx context.Context, ref string) (model.SmsStatus, error) {
	st, ok := m[ref]
	if !ok {
		return "", repository.ErrNotFound
	}
	return st, nil
}

func TestSettleStaleHolds(t *testing.T) {
	svc, mock := newService(t)
	now := time.Now()
	old := now.Add(-time.Hour)

	mock.ExpectQuery(q("FROM credit_holds")).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"ref", "account_id", "amount", "created_at"}).
			AddRow("sms_sent", 1, 2, old).
			AddRow("sms_failed", 1, 1, old).
			AddRow("sms_gone", 1, 1, old))

	// sent: captured with a debit entry
	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM credit_ledger WHERE reference = ?")).WithArgs("sms_sent").
		WillReturnRows(sqlmock.NewRows(ledgerCols))
	mock.ExpectExec(q("DELETE FROM credit_holds WHERE ref = ?")).WithArgs("sms_sent").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(1, 5, 4, now, now))
	mock.ExpectExec(q("SET reserved = reserved - ?, updated_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO credit_ledger")).
		WithArgs(int64(1), int64(9), int64(-2), int64(7), "settled sms hold sms_sent", "debit", model.ActorSystem, "sms_sent").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// failed: released back to the balance
	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM credit_holds WHERE ref = ?")).WithArgs("sms_failed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("SET reserved = reserved - ?, balance = balance + ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// no outcome and already settled elsewhere
	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM credit_holds WHERE ref = ?")).WithArgs("sms_gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	res, err := svc.SettleStaleHolds(context.Background(),
		outcomeMap{"sms_sent": model.SmsSent, "sms_failed": model.SmsFailed}, 15*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Captured: 1, Released: 1}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}
