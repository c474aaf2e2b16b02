// Command worker runs the claim -> execute -> heartbeat loop against the
// coordinator's HTTP API, pulling job input from local disk, HTTPS, or S3
// and driving the resumable loader framework to completion.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lexara-six/ingestion/internal/adapter/observability"
	"github.com/lexara-six/ingestion/internal/adapter/proposeclient"
	"github.com/lexara-six/ingestion/internal/adapter/repo/postgres"
	"github.com/lexara-six/ingestion/internal/config"
	"github.com/lexara-six/ingestion/internal/loader"
	"github.com/lexara-six/ingestion/internal/loaders"
	"github.com/lexara-six/ingestion/internal/telemetry"
	"github.com/lexara-six/ingestion/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DSN())
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobRepo := postgres.NewJobRepo(pool)
	workerRepo := postgres.NewWorkerRepo(pool)
	dqRepo := postgres.NewDataQualityRepo(pool)
	jobLogRepo := postgres.NewJobLogRepo(pool)
	sourceRepo := postgres.NewSourceRepo(pool)
	failedRecordRepo := postgres.NewFailedRecordRepo(pool)

	proposeClient := proposeclient.New(pool)

	var geo *loader.GeoCache
	if cfg.RedisAddr != "" {
		geo = loader.NewGeoCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}
	registry := loaders.BuildRegistry(proposeClient, geo)
	runner := loader.NewRunner(sourceRepo)

	hostname := worker.Hostname()
	slog.Info("starting worker", slog.String("env", cfg.AppEnv), slog.String("hostname", hostname))

	awsCfg, err := worker.ResolveAWSConfig(ctx, cfg.AWSRegion, cfg.AWSProfile, cfg.AWSRoleARN)
	if err != nil {
		slog.Error("aws credential resolution failed", slog.Any("error", err))
		os.Exit(1)
	}
	s3Client := s3.NewFromConfig(awsCfg)

	var sink *telemetry.Sink
	if cfg.LogGroup != "" {
		streamName := telemetry.StreamName(time.Now(), hostname)
		sink, err = telemetry.NewSink(ctx, awsCfg, cfg.LogGroup, streamName, cfg.TelemetryBatch)
		if err != nil {
			slog.Error("telemetry sink init failed, continuing without it", slog.Any("error", err))
		} else {
			sink.Start(cfg.TelemetryInterval)
			defer func() {
				if err := sink.Close(); err != nil {
					slog.Error("telemetry sink close failed", slog.Any("error", err))
				}
			}()
		}
	}

	coordinator := worker.NewCoordinatorClient(cfg.CoordinatorURL, cfg.ClaimTimeout)

	circuitCfg := cfg.GetCircuitBreakerConfig()
	breaker := observability.NewCircuitBreaker("propose_fact", circuitCfg.FailureThreshold, circuitCfg.Timeout)

	rt := worker.New(worker.Deps{
		Coordinator: coordinator,
		Jobs:        jobRepo,
		Workers:     workerRepo,
		DQ:          dqRepo,
		JobLogs:     jobLogRepo,
		Loaders:     registry,
		Runner:      runner,
		S3:          s3Client,
		HTTP:        &http.Client{Timeout: 10 * time.Minute},
		Telemetry:   sink,
		Breaker:     breaker,
		DLQ:         failedRecordRepo,
	}, worker.Options{
		Hostname:           hostname,
		Capabilities:       cfg.WorkerCapabilities,
		ClaimPollInterval:  cfg.ClaimPollInterval,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		BatchSize:          cfg.BatchSize,
		CheckpointInterval: cfg.CheckpointInterval,
		ProgressInterval:   cfg.ProgressInterval,
		Retry:              cfg.GetRetryConfig(),
	})

	slog.Info("worker started successfully, waiting for shutdown signal")
	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("worker runtime exited with error", slog.Any("error", err))
	}
	slog.Info("worker stopped")
}
