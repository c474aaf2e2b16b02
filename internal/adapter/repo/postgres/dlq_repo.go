package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lexara-six/ingestion/internal/domain"
)

// FailedRecordRepo stores records a loader could not import, for later
// inspection and retry.
type FailedRecordRepo struct{ Pool PgxPool }

// NewFailedRecordRepo constructs a FailedRecordRepo with the given pool.
func NewFailedRecordRepo(p PgxPool) *FailedRecordRepo { return &FailedRecordRepo{Pool: p} }

// Add inserts a dead-lettered record. Error messages are truncated to keep
// pathological stack traces out of the row.
func (r *FailedRecordRepo) Add(ctx domain.Context, rec domain.FailedRecord) error {
	if rec.RecordID == "" {
		rec.RecordID = domain.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.AttemptCount == 0 {
		rec.AttemptCount = 1
	}
	errMsg := rec.ErrorMessage
	if len(errMsg) > 5000 {
		errMsg = errMsg[:5000]
	}

	dataJSON, err := jsonOrNull(rec.RecordData)
	if err != nil {
		return fmt.Errorf("op=dlq.add.marshal_data: %w", err)
	}
	detailsJSON, err := jsonOrNull(rec.ErrorDetails)
	if err != nil {
		return fmt.Errorf("op=dlq.add.marshal_details: %w", err)
	}

	q := `INSERT INTO failed_records (record_id, source_id, source_type, record_data,
	             error_message, error_type, error_details, attempt_count, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.Pool.Exec(ctx, q, rec.RecordID, rec.SourceID, rec.SourceType, dataJSON,
		errMsg, rec.ErrorType, detailsJSON, rec.AttemptCount, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("op=dlq.add: %w", err)
	}
	return nil
}

// SelectForRetry returns unreprocessed records below the attempt ceiling
// whose last attempt (if any) is older than cooldown, oldest first.
func (r *FailedRecordRepo) SelectForRetry(ctx domain.Context, maxRetries int, cooldown time.Duration, limit int) ([]domain.FailedRecord, error) {
	cutoff := time.Now().UTC().Add(-cooldown)
	q := `SELECT record_id, source_id, source_type, record_data, error_message, error_type,
	             error_details, attempt_count, created_at, last_attempt_at, reprocessed, reprocessed_at
	      FROM failed_records
	      WHERE reprocessed = FALSE
	        AND attempt_count < $1
	        AND (last_attempt_at IS NULL OR last_attempt_at < $2)
	      ORDER BY created_at ASC
	      LIMIT $3`
	rows, err := r.Pool.Query(ctx, q, maxRetries, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("op=dlq.select_for_retry: %w", err)
	}
	defer rows.Close()

	var out []domain.FailedRecord
	for rows.Next() {
		rec, err := scanFailedRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("op=dlq.select_for_retry_scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=dlq.select_for_retry_rows: %w", err)
	}
	return out, nil
}

// MarkRetrying bumps the attempt counter and stamps the attempt time,
// called immediately before a retry is handed to a loader.
func (r *FailedRecordRepo) MarkRetrying(ctx domain.Context, recordID string) error {
	now := time.Now().UTC()
	q := `UPDATE failed_records SET last_attempt_at = $1, attempt_count = attempt_count + 1 WHERE record_id = $2`
	tag, err := r.Pool.Exec(ctx, q, now, recordID)
	if err != nil {
		return fmt.Errorf("op=dlq.mark_retrying: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=dlq.mark_retrying: %w", domain.ErrNotFound)
	}
	return nil
}

// MarkReprocessed records the outcome of a retry. On success the record is
// flagged reprocessed and excluded from future SelectForRetry calls; on
// failure only the result is recorded so the next cooldown window can retry it.
func (r *FailedRecordRepo) MarkReprocessed(ctx domain.Context, recordID string, success bool, result map[string]any) error {
	resultJSON, err := jsonOrNull(result)
	if err != nil {
		return fmt.Errorf("op=dlq.mark_reprocessed.marshal: %w", err)
	}

	var tag pgconn.CommandTag
	if success {
		now := time.Now().UTC()
		q := `UPDATE failed_records SET reprocessed = TRUE, reprocessed_at = $1, reprocess_result = $2 WHERE record_id = $3`
		tag, err = r.Pool.Exec(ctx, q, now, resultJSON, recordID)
	} else {
		q := `UPDATE failed_records SET reprocess_result = $1 WHERE record_id = $2`
		tag, err = r.Pool.Exec(ctx, q, resultJSON, recordID)
	}
	if err != nil {
		return fmt.Errorf("op=dlq.mark_reprocessed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=dlq.mark_reprocessed: %w", domain.ErrNotFound)
	}
	return nil
}

// CleanupOlderThan deletes successfully reprocessed records older than age,
// returning the number removed.
func (r *FailedRecordRepo) CleanupOlderThan(ctx domain.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)
	q := `DELETE FROM failed_records WHERE reprocessed = TRUE AND reprocessed_at < $1`
	tag, err := r.Pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=dlq.cleanup: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanFailedRecord(row rowScanner) (domain.FailedRecord, error) {
	var rec domain.FailedRecord
	var dataJSON, detailsJSON []byte
	if err := row.Scan(&rec.RecordID, &rec.SourceID, &rec.SourceType, &dataJSON, &rec.ErrorMessage,
		&rec.ErrorType, &detailsJSON, &rec.AttemptCount, &rec.CreatedAt, &rec.LastAttemptAt,
		&rec.Reprocessed, &rec.ReprocessedAt); err != nil {
		return domain.FailedRecord{}, err
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &rec.RecordData); err != nil {
			return domain.FailedRecord{}, err
		}
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &rec.ErrorDetails); err != nil {
			return domain.FailedRecord{}, err
		}
	}
	return rec, nil
}
