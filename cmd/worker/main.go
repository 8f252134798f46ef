package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/storebridge/storebridge/internal/app"
	jobmetrics "github.com/storebridge/storebridge/internal/jobs"
	"github.com/storebridge/storebridge/internal/observability"
	"github.com/storebridge/storebridge/internal/platform/cache"
	"github.com/storebridge/storebridge/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	services, err := app.BuildServices(ctx, cfg, logger, app.BuildOptions{DirectMail: true})
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	mailJob := jobs.NewMailJob(services.SMTP, logger, jobMetrics)
	orderJob := jobs.NewOrderCreateJob(services.Orders, logger, jobMetrics)
	inventoryJob := jobs.NewInventorySyncJob(services.Inventory, logger, jobMetrics)
	sweepJob := jobs.NewStatusSweepJob(services.Orders, logger, jobMetrics)

	var cron []jobs.CronRegistration
	if cfg.Worker.InventoryCron != "" {
		task, err := jobs.NewInventorySyncTask(cfg.Worker.InventoryLimit, 0)
		if err != nil {
			logger.Error("build inventory task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.Worker.InventoryCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(1)}})
	}
	if cfg.Worker.StatusSweepCron != "" {
		task, err := jobs.NewStatusSweepTask(cfg.Worker.StatusSweepDays)
		if err != nil {
			logger.Error("build status sweep task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.Worker.StatusSweepCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(1)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:       cache.QueueOpts(cfg.RedisAddr),
		Logger:          logger,
		Concurrency:     cfg.Worker.Concurrency,
		OrderRetryDelay: cfg.Sync.RetryDelay,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskOrderCreate, Handler: orderJob.Handle},
			{Type: jobs.TaskInventorySync, Handler: inventoryJob.Handle},
			{Type: jobs.TaskOrderStatusSweep, Handler: sweepJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Worker.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.Worker.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
