package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-io/gatehouse/internal/app"
	"github.com/gatehouse-io/gatehouse/internal/assignments"
	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/directory"
	"github.com/gatehouse-io/gatehouse/internal/observability"
	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var store cache.Store
	if cfg.CacheBackend == "memory" {
		store = cache.NewMemoryStore(cfg.RolePermTTL)
	} else {
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
		store = cache.NewRedisStore(redisClient, cfg.CachePrefix)
	}

	metrics := observability.NewMetrics()

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, store, logger)

	mirror := directory.NewMirror(pool)
	var teams authz.TeamsPort
	if cfg.DirectoryBaseURL != "" {
		console := directory.NewHTTPClient(cfg.DirectoryBaseURL, cfg.DirectoryToken, cfg.DirectoryTimeout)
		teams = directory.NewFallback(console, mirror, logger)
	}

	assignmentsRepo := assignments.NewRepository(pool)
	assignmentsService := assignments.NewService(assignmentsRepo, rolesService, mirror, logger)

	resolver := authz.NewResolver(assignmentsRepo, rolesService)
	aggregator := authz.NewAggregator(resolver, rolesService, teams, store, logger,
		authz.WithTTLs(cfg.RolePermTTL, cfg.TeamPermTTL),
		authz.WithCacheMetrics(metrics),
	)
	guard := authz.Middleware{Aggregator: aggregator, Resolver: resolver, Logger: logger, Metrics: metrics}

	rolesHandler := roles.NewHandler(logger, rolesService, guard)
	assignmentsHandler := assignments.NewHandler(logger, assignmentsService, guard)
	authzHandler := authz.NewHandler(logger, resolver, aggregator)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RolesHandler:       rolesHandler,
		AssignmentsHandler: assignmentsHandler,
		AuthzHandler:       authzHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
