// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/lexara-six/ingestion/internal/domain"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"ENVIRONMENT" envDefault:"dev"`

	// Coordinator / worker HTTP surfaces.
	Port            int    `env:"PORT" envDefault:"8080"`
	MetricsPort     int    `env:"METRICS_PORT" envDefault:"9090"`
	CoordinatorURL  string `env:"COORDINATOR_URL" envDefault:"http://localhost:8080"`
	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`

	// Fact-store connection.
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBName     string `env:"DB_NAME" envDefault:"graph_db"`
	DBUser     string `env:"DB_USER" envDefault:"graph_admin"`
	DBPassword string `env:"DB_PASSWORD"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`

	// AWS credential resolution (assume-role then environment fallback).
	AWSRegion  string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSProfile string `env:"AWS_PROFILE"`
	AWSRoleARN string `env:"AWS_ROLE_ARN"`

	// Job queue / event bridge.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`

	// Telemetry sink (C10).
	LogGroup          string        `env:"CLOUDWATCH_LOG_GROUP" envDefault:"/lexara/distributed-loaders"`
	TelemetryBatch    int           `env:"TELEMETRY_BATCH_SIZE" envDefault:"25"`
	TelemetryInterval time.Duration `env:"TELEMETRY_FLUSH_INTERVAL" envDefault:"5s"`

	// Optional geographic cache (C6).
	RedisAddr string `env:"REDIS_ADDR"`

	// Worker runtime (C9).
	WorkerCapabilities  []string      `env:"WORKER_CAPABILITIES" envSeparator:"," envDefault:"iowa_business,iowa_asbestos,medical_facility"`
	ClaimPollInterval   time.Duration `env:"CLAIM_POLL_INTERVAL" envDefault:"30s"`
	ClaimTimeout        time.Duration `env:"CLAIM_TIMEOUT" envDefault:"10s"`
	HeartbeatInterval   time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"60s"`
	HeartbeatTimeout    time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"5s"`
	HeartbeatDeadline   time.Duration `env:"HEARTBEAT_DEADLINE" envDefault:"180s"`

	// Coordinator reaper (Open Question 1, see SPEC_FULL.md §4).
	ReaperEnabled  bool          `env:"REAPER_ENABLED" envDefault:"true"`
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"60s"`

	// Loader framework (C6).
	BatchSize         int           `env:"LOADER_BATCH_SIZE" envDefault:"100"`
	CheckpointInterval int          `env:"LOADER_CHECKPOINT_INTERVAL" envDefault:"100"`
	ProgressInterval  time.Duration `env:"LOADER_PROGRESS_INTERVAL" envDefault:"300s"`

	// Retry / circuit breaker (C2).
	RetryMaxRetries         int           `env:"RETRY_MAX_RETRIES" envDefault:"3"`
	RetryInitialDelay       time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"2s"`
	RetryMaxDelay           time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	RetryMultiplier         float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	RetryJitter             bool          `env:"RETRY_JITTER" envDefault:"true"`
	CircuitFailureThreshold int           `env:"CIRCUIT_FAILURE_THRESHOLD" envDefault:"5"`
	CircuitTimeout          time.Duration `env:"CIRCUIT_TIMEOUT" envDefault:"60s"`

	// DLQ (C5).
	DLQMaxRetries int           `env:"DLQ_MAX_RETRIES" envDefault:"3"`
	DLQCooldown   time.Duration `env:"DLQ_COOLDOWN" envDefault:"5m"`
	DLQMaxAge     time.Duration `env:"DLQ_MAX_AGE" envDefault:"168h"`

	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"lexara-ingestion"`
}

// DSN builds the Postgres connection string the pool dials.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Load parses environment variables into a Config. Missing credentials
// (DB_PASSWORD empty while AppEnv is neither dev nor test) are a deliberate startup error
// per spec §6: "Missing credentials yield a startup error".
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if cfg.DBPassword == "" && !cfg.IsDev() && !cfg.IsTest() {
		return Config{}, fmt.Errorf("op=config.Load: %w: DB_PASSWORD is required outside dev/test", domain.ErrInvalidArgument)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetRetryConfig builds a domain.RetryConfig from env overrides layered over
// domain.DefaultRetryConfig(), matching the teacher's GetAIBackoffConfig
// environment-aware override pattern.
func (c Config) GetRetryConfig() domain.RetryConfig {
	cfg := domain.DefaultRetryConfig()
	if c.RetryMaxRetries > 0 {
		cfg.MaxRetries = c.RetryMaxRetries
	}
	if c.RetryInitialDelay > 0 {
		cfg.InitialDelay = c.RetryInitialDelay
	}
	if c.RetryMaxDelay > 0 {
		cfg.MaxDelay = c.RetryMaxDelay
	}
	if c.RetryMultiplier > 0 {
		cfg.Multiplier = c.RetryMultiplier
	}
	cfg.Jitter = c.RetryJitter
	return cfg
}

// GetCircuitBreakerConfig builds a domain.CircuitBreakerConfig from env overrides.
func (c Config) GetCircuitBreakerConfig() domain.CircuitBreakerConfig {
	cfg := domain.DefaultCircuitBreakerConfig()
	if c.CircuitFailureThreshold > 0 {
		cfg.FailureThreshold = c.CircuitFailureThreshold
	}
	if c.CircuitTimeout > 0 {
		cfg.Timeout = c.CircuitTimeout
	}
	return cfg
}
