// Command server starts the ingestion coordinator's HTTP API: job
// submission, claim, heartbeat, and status endpoints backed by Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpserver "github.com/lexara-six/ingestion/internal/adapter/httpserver"
	"github.com/lexara-six/ingestion/internal/adapter/observability"
	"github.com/lexara-six/ingestion/internal/adapter/proposeclient"
	"github.com/lexara-six/ingestion/internal/adapter/queue/redpanda"
	"github.com/lexara-six/ingestion/internal/adapter/repo/postgres"
	"github.com/lexara-six/ingestion/internal/app"
	"github.com/lexara-six/ingestion/internal/config"
	"github.com/lexara-six/ingestion/internal/dlq"
	"github.com/lexara-six/ingestion/internal/loader"
	"github.com/lexara-six/ingestion/internal/loaders"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DSN())
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	migrationDB, err := postgres.OpenMigrationDB(cfg.DSN())
	if err != nil {
		slog.Error("db migration connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := postgres.Migrate(ctx, migrationDB); err != nil {
		slog.Error("db migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	_ = migrationDB.Close()

	jobRepo := postgres.NewJobRepo(pool)
	workerRepo := postgres.NewWorkerRepo(pool)
	dqRepo := postgres.NewDataQualityRepo(pool)
	jobLogRepo := postgres.NewJobLogRepo(pool)
	failedRecordRepo := postgres.NewFailedRecordRepo(pool)

	qProducer, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := qProducer.Close(); err != nil {
			slog.Error("failed to close queue client", slog.Any("error", err))
		}
	}()

	proposeClient := proposeclient.New(pool)

	var geo *loader.GeoCache
	if cfg.RedisAddr != "" {
		geo = loader.NewGeoCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}
	registry := loaders.BuildRegistry(proposeClient, geo)

	if cfg.ReaperEnabled {
		reaper := app.NewReaper(jobRepo, cfg.HeartbeatDeadline, cfg.ReaperInterval)
		reaperCtx, cancelReaper := context.WithCancel(ctx)
		defer cancelReaper()
		go reaper.Run(reaperCtx)
	}

	reprocessor := dlq.New(failedRecordRepo)
	reprocessor.MaxRetries = cfg.DLQMaxRetries
	reprocessor.Cooldown = cfg.DLQCooldown
	dlqLoop := app.NewDLQLoop(reprocessor, dlq.NewLoaderRecordProcessor(registry), cfg.DLQCooldown, cfg.DLQMaxAge, cfg.BatchSize)
	dlqCtx, cancelDLQ := context.WithCancel(ctx)
	defer cancelDLQ()
	go dlqLoop.Run(dlqCtx)

	dbCheck := func(checkCtx context.Context) error {
		return pool.Ping(checkCtx)
	}

	srv := httpserver.NewServer(cfg, jobRepo, workerRepo, dqRepo, jobLogRepo, registry, qProducer, dbCheck)
	handler := httpserver.NewRouter(srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
