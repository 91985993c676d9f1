package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/credit"
	"github.com/angosms/sms-gateway/internal/gateway"
	"github.com/angosms/sms-gateway/internal/http/middleware"
	"github.com/angosms/sms-gateway/internal/metrics"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/service/batch"
	"github.com/angosms/sms-gateway/internal/service/queue"
)

type Accounts interface {
	middleware.AccountLookup
	GetByID(ctx context.Context, id int64) (*model.Account, error)
}

type Batches interface {
	Estimate(req batch.Request) (batch.Estimate, error)
	DispatchBatch(ctx context.Context, req batch.Request) (batch.Summary, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, accountID int64, req batch.Request) (queue.Accepted, error)
}

type JobReader interface {
	Get(ctx context.Context, id string) (*model.BatchJob, error)
}

type JobLogs interface {
	ListByJob(ctx context.Context, jobID string, limit int) ([]model.SmsLog, error)
}

type JobCanceller interface {
	Request(ctx context.Context, jobID string, accountID int64) (bool, error)
}

type Wallet interface {
	Balance(ctx context.Context, accountID int64) (model.WalletAccount, error)
	Entries(ctx context.Context, accountID int64, limit int) ([]model.CreditLedgerEntry, error)
	Topup(ctx context.Context, accountID, amount int64, requestID string) (model.CreditLedgerEntry, error)
	Adjust(ctx context.Context, a credit.Adjustment) (model.CreditLedgerEntry, error)
}

type Gateways interface {
	List(ctx context.Context) ([]model.Gateway, error)
	Probe(ctx context.Context, name string) (gateway.ProbeResult, error)
	ProbeAll(ctx context.Context) []gateway.ProbeResult
	SetPrimary(ctx context.Context, name string) error
	SetActive(ctx context.Context, name string, active bool) error
}

type DeliveryUpdater interface {
	ApplyDeliveryStatus(ctx context.Context, gateway, gatewayMessageID string, status model.SmsStatus) (bool, error)
}

// Deps are the collaborators the HTTP layer talks to.
type Deps struct {
	Accounts Accounts
	Batches  Batches
	Queue    Enqueuer
	Jobs     JobReader
	JobLogs  JobLogs
	Cancels  JobCanceller
	Wallet   Wallet
	Gateways Gateways
	Delivery DeliveryUpdater
	Reports  repository.ReportsRepository
	Redis    *redis.Client
	Log      *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

var registerMetrics sync.Once

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.RequestID(), echoMid.Logger())

	registerMetrics.Do(func() { metrics.MustRegister(prometheus.DefaultRegisterer) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(d.Accounts)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:      d.Redis,
		DefaultRPS: cfg.RateLimit.RPS,
		KeyPrefix:  "rl:acct:",
		Window:     time.Second,
	})
	adminMW := middleware.SharedSecret("X-Admin-Key", cfg.Admin.APIKey)
	hookMW := middleware.SharedSecret("X-Webhook-Token", cfg.Webhooks.Token)

	syncMax := cfg.Dispatcher.SyncMaxRecipients
	batchMax := cfg.Dispatcher.BatchMaxRecipients

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/sms/dispatch", dispatchHandler(d.Batches, syncMax))
	v1.POST("/sms/batch", enqueueHandler(d.Queue, batchMax))
	v1.POST("/sms/estimate", estimateHandler(d.Batches))
	v1.GET("/jobs/:id", getJobHandler(d.Jobs))
	v1.GET("/jobs/:id/messages", jobMessagesHandler(d.Jobs, d.JobLogs))
	v1.POST("/jobs/:id/cancel", cancelJobHandler(d.Jobs, d.Cancels))
	v1.GET("/reports/messages", listMessagesHandler(d.Reports))
	v1.GET("/wallet", walletHandler(d.Wallet))
	v1.POST("/wallet/topup", topupHandler(d.Wallet))

	admin := e.Group("/admin", adminMW)
	admin.GET("/gateways", listGatewaysHandler(d.Gateways))
	admin.POST("/gateways/probe", probeAllHandler(d.Gateways))
	admin.POST("/gateways/:name/probe", probeGatewayHandler(d.Gateways))
	admin.POST("/gateways/:name/primary", setPrimaryHandler(d.Gateways))
	admin.POST("/gateways/:name/active", setActiveHandler(d.Gateways))
	admin.POST("/credits/adjust", adjustCreditsHandler(d.Accounts, d.Wallet))
	admin.GET("/reports/gateways", gatewayStatsHandler(d.Reports))

	hooks := e.Group("/webhooks", hookMW)
	hooks.POST("/:gateway/status", deliveryStatusHandler(d.Delivery, d.Log))

	return &Server{e: e, log: d.Log}
}

func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	}
	return log.INFO
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
