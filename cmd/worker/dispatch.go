package worker

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/app"
	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/db"
	"github.com/angosms/sms-gateway/internal/kafka"
	"github.com/angosms/sms-gateway/internal/logger"
	"github.com/angosms/sms-gateway/internal/metrics"
	"github.com/angosms/sms-gateway/internal/worker"
)

var jobsConcurrency int

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Consume queued batch jobs and send them",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().IntVar(&jobsConcurrency, "jobs", 2, "batch jobs processed concurrently")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Encoding).Named("worker")
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3) connections
	dbx, err := db.NewMySQL(ctx, cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	rdb, err := db.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = rdb.Close() }()

	// 4) dispatch pipeline
	a, err := app.New(cfg, dbx, rdb, log)
	if err != nil {
		return err
	}
	if err := a.Registry.Refresh(ctx); err != nil {
		log.Warn("initial gateway load failed", zap.Error(err))
	}

	// 5) kafka consumer
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.BatchTopic)
	defer consumer.Close()

	w := worker.NewBatchWorker(consumer, a.Jobs, a.Batches, log)
	if jobsConcurrency > 0 {
		w.Workers = jobsConcurrency
	}

	log.Info("dispatch worker started",
		zap.String("topic", cfg.Kafka.BatchTopic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("jobs", w.Workers),
		zap.Int("recipient_workers", cfg.Dispatcher.Workers))

	return w.Run(ctx)
}
