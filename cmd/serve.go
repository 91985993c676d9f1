package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/app"
	"github.com/angosms/sms-gateway/internal/db"
	httpSrv "github.com/angosms/sms-gateway/internal/http"
	"github.com/angosms/sms-gateway/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server and the gateway prober",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mysqlDB, err := db.NewMySQL(ctx, cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()

		a, err := app.New(cfg, mysqlDB, redisClient, log)
		if err != nil {
			return err
		}
		if err := a.Registry.Refresh(ctx); err != nil {
			log.Warn("initial gateway load failed", zap.Error(err))
		}
		go a.Registry.RunProber(ctx, cfg.Gateways.ProbeInterval)
		go a.Credits.RunHoldSweeper(ctx, a.SmsLogs, cfg.Credits.HoldSweepInterval, cfg.Credits.HoldMaxAge)

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Accounts: a.Accounts,
			Batches:  a.Batches,
			Queue:    a.Queue,
			Jobs:     a.Jobs,
			JobLogs:  a.SmsLogs,
			Cancels:  a.Cancels,
			Wallet:   a.Credits,
			Gateways: a.Registry,
			Delivery: a.SmsLogs,
			Reports:  repository.NewReportsRepository(chDB),
			Redis:    redisClient,
			Log:      log.Named("http"),
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		select {
		case <-ctx.Done():
			log.Info("signal received, shutting down")
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}
