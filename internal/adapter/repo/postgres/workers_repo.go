package postgres

import (
	"fmt"
	"time"

	"github.com/lexara-six/ingestion/internal/domain"
)

// WorkerRepo persists worker heartbeats and serves the active worker roster.
type WorkerRepo struct{ Pool PgxPool }

// NewWorkerRepo constructs a WorkerRepo with the given pool.
func NewWorkerRepo(p PgxPool) *WorkerRepo { return &WorkerRepo{Pool: p} }

// Heartbeat upserts the worker's liveness row, marking it active.
func (r *WorkerRepo) Heartbeat(ctx domain.Context, workerID, hostname string, capabilities []string) error {
	now := time.Now().UTC()
	q := `INSERT INTO workers (worker_id, hostname, status, capabilities, last_heartbeat)
	      VALUES ($1, $2, $3, $4, $5)
	      ON CONFLICT (worker_id) DO UPDATE
	      SET hostname = EXCLUDED.hostname,
	          status = EXCLUDED.status,
	          capabilities = EXCLUDED.capabilities,
	          last_heartbeat = EXCLUDED.last_heartbeat`
	_, err := r.Pool.Exec(ctx, q, workerID, hostname, domain.WorkerActive, capabilities, now)
	if err != nil {
		return fmt.Errorf("op=workers.heartbeat: %w", err)
	}
	return nil
}

// List returns workers currently active or idle, most recently seen first.
func (r *WorkerRepo) List(ctx domain.Context) ([]domain.Worker, error) {
	q := `SELECT worker_id, hostname, status, capabilities, last_heartbeat
	      FROM workers
	      WHERE status IN ($1, $2)
	      ORDER BY last_heartbeat DESC`
	rows, err := r.Pool.Query(ctx, q, domain.WorkerActive, domain.WorkerIdle)
	if err != nil {
		return nil, fmt.Errorf("op=workers.list: %w", err)
	}
	defer rows.Close()

	var workers []domain.Worker
	for rows.Next() {
		var w domain.Worker
		if err := rows.Scan(&w.WorkerID, &w.Hostname, &w.Status, &w.Capabilities, &w.LastHeartbeat); err != nil {
			return nil, fmt.Errorf("op=workers.list_scan: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=workers.list_rows: %w", err)
	}
	return workers, nil
}
