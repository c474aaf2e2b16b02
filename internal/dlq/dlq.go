// Package dlq orchestrates retrying records a loader previously failed to
// import, wrapping the failed_records repository with the batch-reprocess
// workflow.
package dlq

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lexara-six/ingestion/internal/domain"
)

// RecordProcessor re-attempts one dead-lettered record. ok=false without an
// error means the record was processed but some part of it still failed
// (a partial failure); err means the attempt itself blew up. It receives
// the full FailedRecord, not just its data, because routing the retry
// through the right loader requires knowing the record's source type.
type RecordProcessor interface {
	ProcessRecord(ctx domain.Context, rec domain.FailedRecord) (ok bool, err error)
}

// BatchStats summarizes one ReprocessBatch call.
type BatchStats struct {
	Processed  int
	Successful int
	Failed     int
}

// Reprocessor drives the retry loop over a FailedRecordRepository.
type Reprocessor struct {
	Repo       domain.FailedRecordRepository
	MaxRetries int
	Cooldown   time.Duration
}

// New constructs a Reprocessor with the given repository and defaults
// matching spec §3's DLQ invariants (3 attempts, 5 minute cooldown).
func New(repo domain.FailedRecordRepository) *Reprocessor {
	return &Reprocessor{Repo: repo, MaxRetries: 3, Cooldown: 5 * time.Minute}
}

// Add dead-letters one record.
func (r *Reprocessor) Add(ctx domain.Context, rec domain.FailedRecord) error {
	return r.Repo.Add(ctx, rec)
}

// ReprocessBatch selects up to limit eligible records and attempts each
// through proc. Failed attempts stay in the queue for the next cooldown
// window rather than being retried in a blocking sleep loop here — spacing
// retries across polls keeps one slow record from stalling the whole batch.
func (r *Reprocessor) ReprocessBatch(ctx domain.Context, proc RecordProcessor, limit int) (BatchStats, error) {
	records, err := r.Repo.SelectForRetry(ctx, r.MaxRetries, r.Cooldown, limit)
	if err != nil {
		return BatchStats{}, fmt.Errorf("op=dlq.reprocess_batch.select: %w", err)
	}
	if len(records) == 0 {
		return BatchStats{}, nil
	}

	slog.Info("dlq reprocessing batch", slog.Int("count", len(records)))
	var stats BatchStats
	for _, rec := range records {
		stats.Processed++
		if err := r.reprocessOne(ctx, rec, proc); err != nil {
			stats.Failed++
			continue
		}
		stats.Successful++
	}

	slog.Info("dlq batch complete", slog.Int("successful", stats.Successful), slog.Int("failed", stats.Failed))
	return stats, nil
}

func (r *Reprocessor) reprocessOne(ctx domain.Context, rec domain.FailedRecord, proc RecordProcessor) error {
	if err := r.Repo.MarkRetrying(ctx, rec.RecordID); err != nil {
		return fmt.Errorf("op=dlq.reprocess_one.mark_retrying: %w", err)
	}

	ok, procErr := proc.ProcessRecord(ctx, rec)
	if procErr != nil {
		slog.Warn("dlq reprocess failed", slog.String("record_id", rec.RecordID), slog.Any("error", procErr))
		if err := r.Repo.MarkReprocessed(ctx, rec.RecordID, false, map[string]any{
			"status": "error", "error": procErr.Error(),
		}); err != nil {
			return fmt.Errorf("op=dlq.reprocess_one.mark_error: %w", err)
		}
		return procErr
	}

	if !ok {
		if err := r.Repo.MarkReprocessed(ctx, rec.RecordID, false, map[string]any{"status": "partial_failure"}); err != nil {
			return fmt.Errorf("op=dlq.reprocess_one.mark_partial: %w", err)
		}
		return fmt.Errorf("op=dlq.reprocess_one: %w", errPartialFailure)
	}

	if err := r.Repo.MarkReprocessed(ctx, rec.RecordID, true, map[string]any{"status": "success"}); err != nil {
		return fmt.Errorf("op=dlq.reprocess_one.mark_success: %w", err)
	}
	return nil
}

// Cleanup removes reprocessed records older than age.
func (r *Reprocessor) Cleanup(ctx domain.Context, age time.Duration) (int, error) {
	n, err := r.Repo.CleanupOlderThan(ctx, age)
	if err != nil {
		return 0, fmt.Errorf("op=dlq.cleanup: %w", err)
	}
	return n, nil
}

var errPartialFailure = fmt.Errorf("record reprocessed with partial failure")
