package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-io/gatehouse/internal/app"
	"github.com/gatehouse-io/gatehouse/internal/assignments"
	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/directory"
	jobmetrics "github.com/gatehouse-io/gatehouse/internal/jobs"
	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/jobs"
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

	logger := app.NewLogger(cfg)

	if cfg.DirectoryBaseURL == "" {
		logger.Error("DIRECTORY_BASE_URL must be set for the worker")
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := cache.NewRedisStore(redisClient, cfg.CachePrefix)
	metrics := jobmetrics.NewMetrics(nil)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, store, logger)

	client := directory.NewHTTPClient(cfg.DirectoryBaseURL, cfg.DirectoryToken, cfg.DirectoryTimeout)
	mirror := directory.NewMirror(pool)
	syncJob := jobs.NewDirectorySyncJob(client, mirror, logger, metrics)

	assignmentsRepo := assignments.NewRepository(pool)
	resolver := authz.NewResolver(assignmentsRepo, rolesService)
	aggregator := authz.NewAggregator(resolver, rolesService, client, store, logger,
		authz.WithTTLs(cfg.RolePermTTL, cfg.TeamPermTTL))
	warmupJob := jobs.NewPermissionWarmupJob(aggregator, rolesService, logger, metrics)

	syncTask, err := jobs.NewDirectorySyncTask(jobs.DirectorySyncPayload{Reason: "cron"})
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewPermissionWarmupTask(jobs.PermissionWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDirectorySync, Handler: syncJob.Handle},
			{Type: jobs.TaskPermissionWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "5 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
