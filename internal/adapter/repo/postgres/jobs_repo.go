// Package postgres provides PostgreSQL database adapters.
//
// It implements the coordinator's repository interfaces for job, worker,
// source, data-quality, and DLQ persistence with connection pooling and
// transaction support.
package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexara-six/ingestion/internal/domain"
)

// JobRepo persists and loads jobs from the job_queue table.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

func jsonOrNull(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// Submit inserts a new pending job and returns it.
func (r *JobRepo) Submit(ctx domain.Context, jobType string, config map[string]any) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "job_queue"),
	)

	cfgJSON, err := jsonOrNull(config)
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=jobs.submit.marshal_config: %w", err)
	}

	id := domain.NewID()
	now := time.Now().UTC()
	q := `INSERT INTO job_queue (job_id, job_type, config, status, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $5)`
	_, err = r.Pool.Exec(ctx, q, id, jobType, cfgJSON, domain.JobPending, now)
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=jobs.submit: %w", err)
	}
	return domain.Job{
		JobID:     id,
		JobType:   jobType,
		Config:    config,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ClaimNext atomically claims the oldest pending job matching one of the
// given capabilities for the given worker. Returns (Job{}, false, nil) when
// no job is available.
func (r *JobRepo) ClaimNext(ctx domain.Context, workerID string, capabilities []string) (domain.Job, bool, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ClaimNext")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_queue"),
	)

	now := time.Now().UTC()
	q := `UPDATE job_queue
	      SET status = $1, worker_id = $2, claimed_at = $3, updated_at = $3
	      WHERE job_id = (
	          SELECT job_id FROM job_queue
	          WHERE status = $4 AND job_type = ANY($5)
	          ORDER BY created_at ASC
	          LIMIT 1
	          FOR UPDATE SKIP LOCKED
	      )
	      RETURNING job_id, job_type, config, status, worker_id, checkpoint,
	                created_at, claimed_at, started_at, completed_at, updated_at, error_message`
	row := r.Pool.QueryRow(ctx, q, domain.JobClaimed, workerID, now, domain.JobPending, capabilities)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, fmt.Errorf("op=jobs.claim_next: %w", err)
	}
	return j, true, nil
}

// MarkRunning transitions a claimed job to running.
func (r *JobRepo) MarkRunning(ctx domain.Context, jobID string) error {
	now := time.Now().UTC()
	q := `UPDATE job_queue SET status = $1, started_at = $2, updated_at = $2 WHERE job_id = $3`
	tag, err := r.Pool.Exec(ctx, q, domain.JobRunning, now, jobID)
	if err != nil {
		return fmt.Errorf("op=jobs.mark_running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=jobs.mark_running: %w", domain.ErrNotFound)
	}
	return nil
}

// MarkCompleted transitions a job to completed.
func (r *JobRepo) MarkCompleted(ctx domain.Context, jobID string) error {
	now := time.Now().UTC()
	q := `UPDATE job_queue SET status = $1, completed_at = $2, updated_at = $2 WHERE job_id = $3`
	tag, err := r.Pool.Exec(ctx, q, domain.JobCompleted, now, jobID)
	if err != nil {
		return fmt.Errorf("op=jobs.mark_completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=jobs.mark_completed: %w", domain.ErrNotFound)
	}
	return nil
}

// MarkFailed transitions a job to failed with an error message.
func (r *JobRepo) MarkFailed(ctx domain.Context, jobID string, errMsg string) error {
	now := time.Now().UTC()
	q := `UPDATE job_queue SET status = $1, completed_at = $2, updated_at = $2, error_message = $3 WHERE job_id = $4`
	tag, err := r.Pool.Exec(ctx, q, domain.JobFailed, now, errMsg, jobID)
	if err != nil {
		return fmt.Errorf("op=jobs.mark_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=jobs.mark_failed: %w", domain.ErrNotFound)
	}
	return nil
}

// SaveCheckpoint persists the loader's resumable checkpoint for a job.
func (r *JobRepo) SaveCheckpoint(ctx domain.Context, jobID string, checkpoint map[string]any) error {
	cpJSON, err := jsonOrNull(checkpoint)
	if err != nil {
		return fmt.Errorf("op=jobs.save_checkpoint.marshal: %w", err)
	}
	now := time.Now().UTC()
	q := `UPDATE job_queue SET checkpoint = $1, updated_at = $2 WHERE job_id = $3`
	tag, err := r.Pool.Exec(ctx, q, cpJSON, now, jobID)
	if err != nil {
		return fmt.Errorf("op=jobs.save_checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=jobs.save_checkpoint: %w", domain.ErrNotFound)
	}
	return nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, jobID string) (domain.Job, error) {
	q := `SELECT job_id, job_type, config, status, worker_id, checkpoint,
	             created_at, claimed_at, started_at, completed_at, updated_at, error_message
	      FROM job_queue WHERE job_id = $1`
	row := r.Pool.QueryRow(ctx, q, jobID)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("op=jobs.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=jobs.get: %w", err)
	}
	return j, nil
}

// List returns jobs, optionally filtered by status, newest first.
func (r *JobRepo) List(ctx domain.Context, status string, limit int) ([]domain.Job, error) {
	var rows pgx.Rows
	var err error
	if status == "" {
		q := `SELECT job_id, job_type, config, status, worker_id, checkpoint,
		             created_at, claimed_at, started_at, completed_at, updated_at, error_message
		      FROM job_queue ORDER BY created_at DESC LIMIT $1`
		rows, err = r.Pool.Query(ctx, q, limit)
	} else {
		q := `SELECT job_id, job_type, config, status, worker_id, checkpoint,
		             created_at, claimed_at, started_at, completed_at, updated_at, error_message
		      FROM job_queue WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err = r.Pool.Query(ctx, q, status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("op=jobs.list: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJobRow(rows)
		if err != nil {
			return nil, fmt.Errorf("op=jobs.list_scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=jobs.list_rows: %w", err)
	}
	return jobs, nil
}

// RequeueStale resets jobs claimed or running whose worker hasn't
// heartbeated within deadline back to pending, clearing worker assignment.
// Returns the number of jobs requeued.
func (r *JobRepo) RequeueStale(ctx domain.Context, deadline time.Duration) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-deadline)
	q := `UPDATE job_queue
	      SET status = $1, worker_id = NULL, claimed_at = NULL, started_at = NULL, updated_at = $2
	      WHERE status IN ($3, $4)
	      AND worker_id IN (SELECT worker_id FROM workers WHERE last_heartbeat < $5)`
	tag, err := r.Pool.Exec(ctx, q, domain.JobPending, now, domain.JobClaimed, domain.JobRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=jobs.requeue_stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row pgx.Row) (domain.Job, error) {
	return scanJobRow(row)
}

func scanJobRow(row rowScanner) (domain.Job, error) {
	var j domain.Job
	var cfgRaw, cpRaw []byte
	var workerID, errMsg *string
	var claimedAt, startedAt, completedAt *time.Time

	if err := row.Scan(&j.JobID, &j.JobType, &cfgRaw, &j.Status, &workerID, &cpRaw,
		&j.CreatedAt, &claimedAt, &startedAt, &completedAt, &j.UpdatedAt, &errMsg); err != nil {
		return domain.Job{}, err
	}

	if len(cfgRaw) > 0 {
		if err := json.Unmarshal(cfgRaw, &j.Config); err != nil {
			return domain.Job{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if len(cpRaw) > 0 {
		if err := json.Unmarshal(cpRaw, &j.Checkpoint); err != nil {
			return domain.Job{}, fmt.Errorf("unmarshal checkpoint: %w", err)
		}
	}
	j.WorkerID = workerID
	j.ClaimedAt = claimedAt
	j.StartedAt = startedAt
	j.CompletedAt = completedAt
	j.ErrorMessage = errMsg
	return j, nil
}
