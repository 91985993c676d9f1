// Package app wires repositories and services shared by the serve, worker
// and gateways commands.
package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/credit"
	"github.com/angosms/sms-gateway/internal/dispatcher"
	"github.com/angosms/sms-gateway/internal/gateway"
	"github.com/angosms/sms-gateway/internal/repository"
	"github.com/angosms/sms-gateway/internal/senderid"
	"github.com/angosms/sms-gateway/internal/service/batch"
	"github.com/angosms/sms-gateway/internal/service/queue"
)

type App struct {
	Accounts *repository.AccountsRepositoryImpl
	Jobs     *repository.JobsRepositoryImpl
	SmsLogs  *repository.SmsLogRepositoryImpl
	Routing  *repository.RoutingRepository
	Gateways *repository.GatewaysRepository

	Registry   *gateway.Registry
	Routes     *dispatcher.RouteTable
	Dispatcher *dispatcher.Dispatcher
	Credits    *credit.Service
	Cancels    *batch.CancelFlags
	Batches    *batch.Service
	Queue      *queue.Service
}

// New builds the dispatch pipeline over MySQL and Redis.
func New(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		Accounts: repository.NewAccountsRepository(mysqlDB),
		Jobs:     repository.NewJobsRepository(mysqlDB),
		SmsLogs:  repository.NewSmsLogRepository(mysqlDB),
		Routing:  repository.NewRoutingRepository(mysqlDB),
		Gateways: repository.NewGatewaysRepository(mysqlDB),
	}

	handles, err := gateway.BuildHandles(cfg.Gateways, cfg.Dispatcher.RateLimitWait, log.Named("gateway"))
	if err != nil {
		return nil, fmt.Errorf("build gateways: %w", err)
	}
	a.Registry = gateway.NewRegistry(a.Gateways, handles, gateway.Options{
		ProbeTimeout: cfg.Gateways.ProbeTimeout,
		Log:          log.Named("registry"),
	})
	a.Routes = dispatcher.NewRouteTable(a.Routing, cfg.Routing.Default, cfg.Dispatcher.RouteCacheTTL, log.Named("routing"))
	a.Dispatcher = dispatcher.New(a.Registry, a.Routes, dispatcher.Options{
		SendTimeout:       cfg.Dispatcher.SendTimeout,
		CreditsPerSegment: cfg.Pricing.CreditsPerSegment,
		Log:               log.Named("dispatcher"),
	})

	a.Credits = credit.New(
		mysqlDB,
		repository.NewWalletRepository(),
		repository.NewLedgerRepository(mysqlDB),
		repository.NewNotificationsRepository(),
		log.Named("credit"),
	)

	senders, err := senderid.NewResolver(cfg.SenderID.Default, cfg.SenderID.Deprecated, log.Named("senderid"))
	if err != nil {
		return nil, err
	}
	a.Cancels = batch.NewCancelFlags(rds, a.Jobs, log.Named("cancel"))
	a.Batches = batch.New(a.Dispatcher, a.Credits, a.SmsLogs, a.Cancels, senders, batch.Options{
		Workers:           cfg.Dispatcher.Workers,
		MaxSegments:       cfg.Segments.Max,
		CreditsPerSegment: cfg.Pricing.CreditsPerSegment,
		SettleAttempts:    cfg.Credits.SettleAttempts,
		Log:               log.Named("batch"),
	})
	a.Queue = queue.New(mysqlDB, a.Jobs, repository.NewOutboxRepository(mysqlDB), a.Batches, cfg.Kafka.BatchTopic, log.Named("queue"))
	return a, nil
}
