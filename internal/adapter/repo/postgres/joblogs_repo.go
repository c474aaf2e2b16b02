package postgres

import (
	"fmt"
	"time"

	"github.com/lexara-six/ingestion/internal/domain"
)

// JobLogRepo appends structured progress lines attached to a job's execution.
type JobLogRepo struct{ Pool PgxPool }

// NewJobLogRepo constructs a JobLogRepo with the given pool.
func NewJobLogRepo(p PgxPool) *JobLogRepo { return &JobLogRepo{Pool: p} }

// Append inserts one job log row.
func (r *JobLogRepo) Append(ctx domain.Context, l domain.JobLog) error {
	if l.LogID == "" {
		l.LogID = domain.NewID()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	metaJSON, err := jsonOrNull(l.Metadata)
	if err != nil {
		return fmt.Errorf("op=joblogs.append.marshal: %w", err)
	}
	q := `INSERT INTO job_logs (log_id, job_id, timestamp, level, message, metadata)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.Pool.Exec(ctx, q, l.LogID, l.JobID, l.Timestamp, l.Level, l.Message, metaJSON)
	if err != nil {
		return fmt.Errorf("op=joblogs.append: %w", err)
	}
	return nil
}
