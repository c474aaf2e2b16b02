package worker

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lexara-six/ingestion/internal/adapter/observability"
	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
	"github.com/lexara-six/ingestion/internal/telemetry"
)

// Deps bundles everything a Runtime needs beyond its own identity: the
// coordinator channel, this process's direct repositories, the loader
// registry, and an optional input-download client for URL/S3 sources.
type Deps struct {
	Coordinator *CoordinatorClient
	Jobs        domain.JobRepository
	Workers     domain.WorkerRepository
	DQ          domain.DataQualityRepository
	JobLogs     domain.JobLogRepository
	Loaders     *loader.Registry
	Runner      *loader.Runner
	S3          *s3.Client
	HTTP        *http.Client
	Breaker     *observability.CircuitBreaker
	Telemetry   *telemetry.Sink
	DLQ         domain.FailedRecordRepository
}

// Options configures one Runtime's identity and pacing.
type Options struct {
	WorkerID           string
	Hostname           string
	Capabilities       []string
	ClaimPollInterval  time.Duration
	HeartbeatInterval  time.Duration
	BatchSize          int
	CheckpointInterval int
	ProgressInterval   time.Duration
	Retry              domain.RetryConfig
}

// Runtime drives the poll -> claim -> execute -> heartbeat loop for a
// single worker process. It never runs more than one job concurrently,
// matching distributed_worker.py's single current_job_id field.
type Runtime struct {
	deps Deps
	opts Options
}

// New builds a Runtime from its dependencies and identity.
func New(deps Deps, opts Options) *Runtime {
	if opts.WorkerID == "" {
		opts.WorkerID = fmt.Sprintf("worker-%s-%s", opts.Hostname, domain.NewID())
	}
	return &Runtime{deps: deps, opts: opts}
}

// Run polls for jobs until ctx is cancelled, executing at most one at a
// time and sleeping ClaimPollInterval between empty claims.
func (rt *Runtime) Run(ctx domain.Context) error {
	slog.Info("worker started", "worker_id", rt.opts.WorkerID, "capabilities", rt.opts.Capabilities)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, ok, err := rt.deps.Coordinator.ClaimJob(ctx, rt.opts.WorkerID, rt.opts.Capabilities)
		if err != nil {
			slog.Error("claim failed", "error", err)
			if !sleepOrDone(ctx, rt.opts.ClaimPollInterval) {
				return ctx.Err()
			}
			continue
		}
		if !ok {
			if !sleepOrDone(ctx, rt.opts.ClaimPollInterval) {
				return ctx.Err()
			}
			continue
		}

		slog.Info("job claimed", "job_id", job.JobID, "job_type", job.JobType)
		if err := rt.executeJob(ctx, job); err != nil {
			slog.Error("job execution failed", "job_id", job.JobID, "error", err)
			if markErr := rt.deps.Jobs.MarkFailed(ctx, job.JobID, err.Error()); markErr != nil {
				slog.Error("failed to mark job failed", "job_id", job.JobID, "error", markErr)
			}
		}
	}
}

func (rt *Runtime) executeJob(ctx domain.Context, job *ClaimedJob) error {
	if err := rt.deps.Jobs.MarkRunning(ctx, job.JobID); err != nil {
		return fmt.Errorf("op=worker.runtime.execute_job.mark_running: %w", err)
	}

	stopHeartbeat := rt.startHeartbeat(ctx, job.JobID)
	defer stopHeartbeat()

	l, err := rt.deps.Loaders.Build(job.JobType, job.Config)
	if err != nil {
		return fmt.Errorf("op=worker.runtime.execute_job.build_loader: %w", err)
	}

	spec, err := ParseInputSpec(job.Config)
	if err != nil {
		return fmt.Errorf("op=worker.runtime.execute_job.parse_input: %w", err)
	}
	path, cleanup, err := Acquire(ctx, rt.deps.S3, rt.deps.HTTP, spec)
	if err != nil {
		return fmt.Errorf("op=worker.runtime.execute_job.acquire_input: %w", err)
	}
	defer cleanup()

	limit := 0
	if processing, ok := job.Config["processing"].(map[string]any); ok {
		if v, ok := processing["limit"].(float64); ok {
			limit = int(v)
		}
	}

	if result, err := rt.deps.Runner.Run(ctx, l, path, loader.RunOptions{
		BatchSize:          rt.opts.BatchSize,
		CheckpointInterval: rt.opts.CheckpointInterval,
		ProgressInterval:   rt.opts.ProgressInterval,
		Limit:              limit,
		Breaker:            rt.deps.Breaker,
		Retry:              rt.opts.Retry,
	}, rt.callbacks(job.JobID)); err != nil {
		return fmt.Errorf("op=worker.runtime.execute_job.run: %w", err)
	} else if result.Status == "already_processed" {
		slog.Info("source already processed, job is a no-op", "job_id", job.JobID, "source_id", result.SourceID)
	}

	if err := rt.deps.Jobs.MarkCompleted(ctx, job.JobID); err != nil {
		return fmt.Errorf("op=worker.runtime.execute_job.mark_completed: %w", err)
	}
	return nil
}

// callbacks wires the loader framework's four injected hooks (checkpoint,
// log, data-quality issue, dead letter) to this process's direct
// repositories, the Go analogue of distributed_worker.py's
// checkpoint_callback/log_callback/error_callback lambdas plus a
// dead-letter hook.
func (rt *Runtime) callbacks(jobID string) loader.Callbacks {
	return loader.Callbacks{
		Checkpoint: func(ctx domain.Context, cursor int) error {
			return rt.deps.Jobs.SaveCheckpoint(ctx, jobID, map[string]any{"records_processed": cursor})
		},
		Log: func(ctx domain.Context, level, message string, metadata map[string]any) error {
			now := time.Now().UTC()
			if rt.deps.Telemetry != nil {
				rt.deps.Telemetry.Log(telemetry.Event{
					Timestamp: now,
					Level:     level,
					Message:   message,
					JobID:     jobID,
					WorkerID:  rt.opts.WorkerID,
					Metadata:  metadata,
				})
			}
			if rt.deps.JobLogs == nil {
				return nil
			}
			return rt.deps.JobLogs.Append(ctx, domain.JobLog{
				LogID:     domain.NewID(),
				JobID:     jobID,
				Timestamp: now,
				Level:     level,
				Message:   message,
				Metadata:  metadata,
			})
		},
		ReportIssue: func(ctx domain.Context, issue domain.DataQualityIssue) error {
			if rt.deps.DQ == nil {
				return nil
			}
			issue.IssueID = domain.NewID()
			issue.JobID = jobID
			return rt.deps.DQ.Report(ctx, issue)
		},
		DeadLetter: func(ctx domain.Context, rec domain.FailedRecord) error {
			if rt.deps.DLQ == nil {
				return nil
			}
			rec.RecordID = domain.NewID()
			rec.CreatedAt = time.Now().UTC()
			return rt.deps.DLQ.Add(ctx, rec)
		},
	}
}

// startHeartbeat launches a goroutine that upserts this worker's liveness
// row and best-effort-notifies the coordinator every HeartbeatInterval. The
// returned func stops it; callers always defer it.
func (rt *Runtime) startHeartbeat(ctx domain.Context, jobID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(rt.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := rt.deps.Workers.Heartbeat(ctx, rt.opts.WorkerID, rt.opts.Hostname, rt.opts.Capabilities); err != nil {
					slog.Warn("heartbeat write failed", "worker_id", rt.opts.WorkerID, "error", err)
				}
				if err := rt.deps.Coordinator.NotifyHeartbeat(ctx, jobID, rt.opts.WorkerID, nil); err != nil {
					slog.Debug("coordinator heartbeat notify failed", "job_id", jobID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func sleepOrDone(ctx domain.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Hostname returns the local hostname, falling back to "worker" if it
// can't be determined (matches distributed_worker.py's socket.gethostname
// use in _generate_worker_id).
func Hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "worker"
	}
	return h
}
