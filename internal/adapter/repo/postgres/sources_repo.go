package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexara-six/ingestion/internal/domain"
)

// SourceRepo tracks one registry row per ingested input file, enforcing the
// (source_type, file_hash) short-circuit for already-completed files.
type SourceRepo struct{ Pool PgxPool }

// NewSourceRepo constructs a SourceRepo with the given pool.
func NewSourceRepo(p PgxPool) *SourceRepo { return &SourceRepo{Pool: p} }

// FindByTypeAndHash returns the existing source row, if any.
func (r *SourceRepo) FindByTypeAndHash(ctx domain.Context, sourceType, fileHash string) (domain.Source, bool, error) {
	q := `SELECT source_id, source_type, source_name, source_version, file_name, file_hash,
	             file_size_bytes, status, records_in_file, records_processed, records_imported,
	             records_failed, records_skipped, created_at, import_completed_at, updated_at, error_message
	      FROM sources WHERE source_type = $1 AND file_hash = $2`
	row := r.Pool.QueryRow(ctx, q, sourceType, fileHash)
	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Source{}, false, nil
		}
		return domain.Source{}, false, fmt.Errorf("op=sources.find: %w", err)
	}
	return s, true, nil
}

// Register inserts a new source row in processing status.
func (r *SourceRepo) Register(ctx domain.Context, s domain.Source) (domain.Source, error) {
	id := s.SourceID
	if id == "" {
		id = domain.NewID()
	}
	now := time.Now().UTC()
	q := `INSERT INTO sources (source_id, source_type, source_name, source_version, file_name,
	             file_hash, file_size_bytes, status, records_in_file, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	_, err := r.Pool.Exec(ctx, q, id, s.SourceType, s.SourceName, s.SourceVersion, s.FileName,
		s.FileHash, s.FileSizeBytes, domain.SourceProcessing, s.RecordsInFile, now)
	if err != nil {
		return domain.Source{}, fmt.Errorf("op=sources.register: %w", err)
	}
	s.SourceID = id
	s.Status = domain.SourceProcessing
	s.CreatedAt = now
	s.UpdatedAt = now
	return s, nil
}

// UpdateCounters writes the running record counters for a source, called at
// checkpoint boundaries.
func (r *SourceRepo) UpdateCounters(ctx domain.Context, sourceID string, processed, imported, failed, skipped int64) error {
	now := time.Now().UTC()
	q := `UPDATE sources
	      SET records_processed = $1, records_imported = $2, records_failed = $3,
	          records_skipped = $4, updated_at = $5
	      WHERE source_id = $6`
	tag, err := r.Pool.Exec(ctx, q, processed, imported, failed, skipped, now, sourceID)
	if err != nil {
		return fmt.Errorf("op=sources.update_counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=sources.update_counters: %w", domain.ErrNotFound)
	}
	return nil
}

// Complete marks a source completed with its final record-in-file count.
func (r *SourceRepo) Complete(ctx domain.Context, sourceID string, recordsInFile int64) error {
	now := time.Now().UTC()
	q := `UPDATE sources
	      SET status = $1, records_in_file = $2, import_completed_at = $3, updated_at = $3
	      WHERE source_id = $4`
	tag, err := r.Pool.Exec(ctx, q, domain.SourceCompleted, recordsInFile, now, sourceID)
	if err != nil {
		return fmt.Errorf("op=sources.complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=sources.complete: %w", domain.ErrNotFound)
	}
	return nil
}

// Fail marks a source failed with an error message.
func (r *SourceRepo) Fail(ctx domain.Context, sourceID string, errMsg string) error {
	now := time.Now().UTC()
	q := `UPDATE sources SET status = $1, error_message = $2, updated_at = $3 WHERE source_id = $4`
	tag, err := r.Pool.Exec(ctx, q, domain.SourceFailed, errMsg, now, sourceID)
	if err != nil {
		return fmt.Errorf("op=sources.fail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=sources.fail: %w", domain.ErrNotFound)
	}
	return nil
}

func scanSource(row pgx.Row) (domain.Source, error) {
	var s domain.Source
	if err := row.Scan(&s.SourceID, &s.SourceType, &s.SourceName, &s.SourceVersion, &s.FileName,
		&s.FileHash, &s.FileSizeBytes, &s.Status, &s.RecordsInFile, &s.RecordsProcessed,
		&s.RecordsImported, &s.RecordsFailed, &s.RecordsSkipped, &s.CreatedAt,
		&s.ImportCompletedAt, &s.UpdatedAt, &s.ErrorMessage); err != nil {
		return domain.Source{}, err
	}
	return s, nil
}
