package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/liftline-crm/liftline/internal/app"
	"github.com/liftline-crm/liftline/internal/observability"
	"github.com/liftline-crm/liftline/internal/platform/db"
	"github.com/liftline-crm/liftline/internal/templates"
	"github.com/liftline-crm/liftline/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	templateRepo := templates.NewRepository(pool)
	repairer := templates.NewRepairer(templateRepo, logger)
	repairJob := jobs.NewTemplateRepairJob(repairer, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTemplateRepair, Handler: repairJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RepairCronSpec, Task: jobs.NewTemplateRepairTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
