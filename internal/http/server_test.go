package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/credit"
	"github.com/angosms/sms-gateway/internal/gateway"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/service/batch"
	"github.com/angosms/sms-gateway/internal/service/queue"
)

type fakeAccounts map[string]model.Account

func (f fakeAccounts) GetByAPIKey(_ context.Context, key string) (*model.Account, error) {
	a, ok := f[key]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f fakeAccounts) GetByID(_ context.Context, id int64) (*model.Account, error) {
	for _, a := range f {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeJobLogs struct{}

func (fakeJobLogs) ListByJob(_ context.Context, jobID string, _ int) ([]model.SmsLog, error) {
	return []model.SmsLog{{ID: "log_1", JobID: &jobID, Status: model.SmsSent}}, nil
}

type fakeBatches struct {
	got     []batch.Request
	summary batch.Summary
	est     batch.Estimate
	err     error
}

func (f *fakeBatches) Estimate(req batch.Request) (batch.Estimate, error) {
	f.got = append(f.got, req)
	return f.est, f.err
}

func (f *fakeBatches) DispatchBatch(_ context.Context, req batch.Request) (batch.Summary, error) {
	f.got = append(f.got, req)
	return f.summary, f.err
}

type fakeQueue struct{ err error }

func (f fakeQueue) Enqueue(_ context.Context, accountID int64, req batch.Request) (queue.Accepted, error) {
	if f.err != nil {
		return queue.Accepted{}, f.err
	}
	return queue.Accepted{JobID: "job_1", Status: model.JobQueued}, nil
}

type fakeJobs map[string]model.BatchJob

func (f fakeJobs) Get(_ context.Context, id string) (*model.BatchJob, error) {
	j, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &j, nil
}

func (f fakeJobs) Request(_ context.Context, id string, accountID int64) (bool, error) {
	j, ok := f[id]
	return ok && j.AccountID == accountID && !j.Status.Terminal(), nil
}

type fakeWallet struct {
	topups  map[string]model.CreditLedgerEntry
	adjusts []credit.Adjustment
}

func (f *fakeWallet) Balance(_ context.Context, accountID int64) (model.WalletAccount, error) {
	return model.WalletAccount{AccountID: accountID, Balance: 7, Reserved: 3}, nil
}

func (f *fakeWallet) Entries(_ context.Context, _ int64, _ int) ([]model.CreditLedgerEntry, error) {
	return []model.CreditLedgerEntry{{ID: 1, Delta: 10, NewBalance: 10}}, nil
}

func (f *fakeWallet) Topup(_ context.Context, accountID, amount int64, requestID string) (model.CreditLedgerEntry, error) {
	if e, ok := f.topups[requestID]; ok {
		return e, nil
	}
	e := model.CreditLedgerEntry{ID: int64(len(f.topups) + 1), AccountID: accountID, Delta: amount, NewBalance: amount}
	f.topups[requestID] = e
	return e, nil
}

func (f *fakeWallet) Adjust(_ context.Context, a credit.Adjustment) (model.CreditLedgerEntry, error) {
	if a.Delta == 0 {
		return model.CreditLedgerEntry{}, credit.ErrInvalidAmount
	}
	f.adjusts = append(f.adjusts, a)
	return model.CreditLedgerEntry{AccountID: a.AccountID, Delta: a.Delta, Type: a.Type}, nil
}

type fakeGateways struct{ primary string }

func (f *fakeGateways) List(context.Context) ([]model.Gateway, error) {
	return []model.Gateway{{Name: "bulkgate", IsActive: true, IsPrimary: f.primary == "bulkgate"}}, nil
}

func (f *fakeGateways) Probe(_ context.Context, name string) (gateway.ProbeResult, error) {
	if name != "bulkgate" {
		return gateway.ProbeResult{}, gateway.ErrUnknownGateway
	}
	return gateway.ProbeResult{Gateway: name, Available: true, Status: model.GatewayConnected}, nil
}

func (f *fakeGateways) ProbeAll(context.Context) []gateway.ProbeResult { return nil }

func (f *fakeGateways) SetPrimary(_ context.Context, name string) error {
	f.primary = name
	return nil
}

func (f *fakeGateways) SetActive(_ context.Context, name string, active bool) error {
	if name == f.primary && !active {
		return gateway.ErrPrimaryDeactivate
	}
	return nil
}

type fakeDelivery struct{ applied []model.SmsStatus }

func (f *fakeDelivery) ApplyDeliveryStatus(_ context.Context, _, _ string, st model.SmsStatus) (bool, error) {
	f.applied = append(f.applied, st)
	return true, nil
}

type fakeReports struct{ filter repository.MessageFilter }

func (f *fakeReports) ListMessages(_ context.Context, _ int64, flt repository.MessageFilter) ([]model.SmsLog, error) {
	f.filter = flt
	return nil, nil
}

func (f *fakeReports) GatewayStats(context.Context, time.Time) ([]repository.GatewayStat, error) {
	return []repository.GatewayStat{{Gateway: "bulkgate", Sent: 3}}, nil
}

type fixture struct {
	srv      *Server
	batches  *fakeBatches
	wallet   *fakeWallet
	gws      *fakeGateways
	delivery *fakeDelivery
	reports  *fakeReports
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var cfg config.Config
	cfg.Log.Level = "error"
	cfg.Admin.APIKey = "admin-secret"
	cfg.Webhooks.Token = "hook-secret"
	cfg.Dispatcher.SyncMaxRecipients = 2
	cfg.Dispatcher.BatchMaxRecipients = 5

	jobs := fakeJobs{
		"job_mine":  {ID: "job_mine", AccountID: 1, Status: model.JobRunning},
		"job_done":  {ID: "job_done", AccountID: 1, Status: model.JobCompleted},
		"job_other": {ID: "job_other", AccountID: 2, Status: model.JobQueued},
	}
	f := &fixture{
		batches:  &fakeBatches{},
		wallet:   &fakeWallet{topups: map[string]model.CreditLedgerEntry{}},
		gws:      &fakeGateways{primary: "bulkgate"},
		delivery: &fakeDelivery{},
		reports:  &fakeReports{},
	}
	f.srv = NewServer(cfg, Deps{
		Accounts: fakeAccounts{
			"key-1":    {ID: 1, Status: model.AccountActive},
			"key-susp": {ID: 3, Status: model.AccountSuspended},
		},
		Batches:  f.batches,
		Queue:    fakeQueue{},
		Jobs:     jobs,
		JobLogs:  fakeJobLogs{},
		Cancels:  jobs,
		Wallet:   f.wallet,
		Gateways: f.gws,
		Delivery: f.delivery,
		Reports:  f.reports,
	})
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

var apiKey = map[string]string{"X-API-Key": "key-1"}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/wallet", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/v1/wallet", "", map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/v1/wallet", "", map[string]string{"X-API-Key": "key-susp"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/v1/wallet", "", apiKey)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.EqualValues(t, 7, out["available"])
	assert.EqualValues(t, 3, out["reserved"])
	assert.EqualValues(t, 10, out["balance"])
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	f.batches.summary = batch.Summary{ValidRecipients: 1, Sent: 1, CreditsSpent: 1}

	rec := f.do(http.MethodPost, "/v1/sms/dispatch",
		`{"message":"ola","recipients":["923456789"],"country":"ao"}`, apiKey)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.batches.got, 1)
	assert.EqualValues(t, 1, f.batches.got[0].AccountID)
	assert.Equal(t, "AO", f.batches.got[0].CountryHint)
	assert.EqualValues(t, 1, decode(t, rec)["sent"])
}

func TestDispatchRejectsOversizedBatch(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/sms/dispatch",
		`{"message":"ola","recipients":["1","2","3"]}`, apiKey)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, f.batches.got)
}

func TestDispatchInsufficientCredits(t *testing.T) {
	f := newFixture(t)
	f.batches.err = batch.ErrInsufficientCredits

	rec := f.do(http.MethodPost, "/v1/sms/dispatch",
		`{"message":"ola","recipients":["923456789"]}`, apiKey)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, model.ErrCodeInsufficientCredit, decode(t, rec)["code"])
}

func TestEnqueueBatch(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/sms/batch",
		`{"message":"ola","recipients":["923456789","923456780"]}`, apiKey)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job_1", decode(t, rec)["job_id"])
}

func TestEstimateReportsInvalidMessage(t *testing.T) {
	f := newFixture(t)
	f.batches.err = batch.ErrMessageTooLong

	rec := f.do(http.MethodPost, "/v1/sms/estimate",
		`{"message":"x","recipients":["923456789"]}`, apiKey)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["valid"])
	assert.Equal(t, model.ErrCodeMessageTooLong, out["code"])
}

func TestJobs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/jobs/job_mine", "", apiKey)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/jobs/job_other", "", apiKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/v1/jobs/job_mine/messages", "", apiKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = f.do(http.MethodGet, "/v1/jobs/job_other/messages", "", apiKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/v1/jobs/job_mine/cancel", "", apiKey)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(http.MethodPost, "/v1/jobs/job_done/cancel", "", apiKey)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/v1/jobs/job_other/cancel", "", apiKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopupIsIdempotent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/wallet/topup", `{"amount":10}`, apiKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"amount":10,"request_id":"r-1"}`
	first := decode(t, f.do(http.MethodPost, "/v1/wallet/topup", body, apiKey))
	second := decode(t, f.do(http.MethodPost, "/v1/wallet/topup", body, apiKey))
	assert.Equal(t, first["ledger_id"], second["ledger_id"])
	assert.Len(t, f.wallet.topups, 1)
}

func TestReportsFilter(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/v1/reports/messages?phone=923456789&status=delivered&limit=5000", "", apiKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+244923456789", f.reports.filter.Phone)
	assert.Equal(t, model.SmsDelivered, f.reports.filter.Status)
	assert.Equal(t, 50, f.reports.filter.Limit)
}

func TestAdminRequiresKey(t *testing.T) {
	f := newFixture(t)
	admin := map[string]string{"X-Admin-Key": "admin-secret"}

	rec := f.do(http.MethodGet, "/admin/gateways", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/admin/gateways", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/admin/gateways/nope/probe", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/admin/gateways/bulkgate/active", `{"active":false}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/admin/gateways/bulksms/primary", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bulksms", f.gws.primary)

	rec = f.do(http.MethodGet, "/admin/reports/gateways", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAdjustCredits(t *testing.T) {
	f := newFixture(t)
	admin := map[string]string{"X-Admin-Key": "admin-secret"}

	rec := f.do(http.MethodPost, "/admin/credits/adjust", `{"account_id":99,"delta":5,"type":"bonus"}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/admin/credits/adjust", `{"account_id":1,"delta":0,"type":"bonus"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/admin/credits/adjust", `{"account_id":1,"delta":5,"type":"bogus"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/admin/credits/adjust", `{"account_id":1,"delta":5,"type":"bonus","reason":"promo"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.wallet.adjusts, 1)
	assert.Equal(t, "admin", f.wallet.adjusts[0].Actor)
	assert.Equal(t, model.AdjustmentBonus, f.wallet.adjusts[0].Type)
}

func TestDeliveryWebhook(t *testing.T) {
	f := newFixture(t)
	hook := map[string]string{"X-Webhook-Token": "hook-secret"}

	rec := f.do(http.MethodPost, "/webhooks/bulksms/status", `{"message_id":"m1","status":"DELIVERED"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/webhooks/bulksms/status", `{"message_id":"m1","status":"DELIVERED"}`, hook)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/webhooks/routee/status", `{"message_id":"m2","status":"Undelivered"}`, hook)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/webhooks/routee/status", `{"message_id":"m3","status":"Queued"}`, hook)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["updated"])

	assert.Equal(t, []model.SmsStatus{model.SmsDelivered, model.SmsFailed}, f.delivery.applied)
}

func TestDeliveryStatusVocabulary(t *testing.T) {
	cases := map[string]model.SmsStatus{
		"DELIVERED":   model.SmsDelivered,
		"Delivered":   model.SmsDelivered,
		"DELIVRD":     model.SmsDelivered,
		"undelivered": model.SmsFailed,
		"REJECTED":    model.SmsFailed,
		"expired":     model.SmsFailed,
		"accepted":    "",
		"":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, deliveryStatus(in), in)
	}
}
