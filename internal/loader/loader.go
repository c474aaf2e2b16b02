// Package loader drives the generic parse -> validate -> process -> checkpoint
// pipeline shared by every concrete source loader. A Loader supplies the
// source-specific steps; Runner supplies the batching, resume, progress
// reporting, and statistics that are otherwise identical across loaders.
package loader

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/lexara-six/ingestion/internal/adapter/observability"
	"github.com/lexara-six/ingestion/internal/domain"
)

// Record is one parsed, loader-specific record ready for validation.
type Record map[string]any

// RawBatch is a batch of unparsed source rows (CSV fields, decoded JSON
// objects, ...), as produced by a Loader's BatchReader.
type RawBatch []map[string]string

// BatchReader yields successive batches of raw rows, starting at the skip
// offset passed to the Loader that created it. Next returns io.EOF (with a
// nil batch) once exhausted.
type BatchReader interface {
	Next() (RawBatch, error)
	Close() error
}

// Loader implements the four source-specific operations spec'd for the
// pipeline core; everything else (registration, checkpointing, progress,
// statistics) lives in Runner.
type Loader interface {
	SourceType() string
	SourceName() string
	// ParseRecord turns one raw row into a Record. A nil Record with a nil
	// error means "skip this row" (e.g. a blank line); a non-nil error
	// counts the row as a parse failure without aborting the batch.
	ParseRecord(raw map[string]string) (Record, error)
	ValidateRecord(rec Record) []string
	// ProcessRecord proposes one or more facts derived from rec. The
	// circuit breaker, if configured on the Runner, wraps this call.
	ProcessRecord(ctx domain.Context, rec Record) ([]domain.ProposeFactResponse, error)
	// OpenBatches opens filePath and returns a reader starting at startFrom
	// records in, batching batchSize rows per Next call.
	OpenBatches(filePath string, batchSize, startFrom int) (BatchReader, error)
}

// Callbacks are the three hooks distributed_worker.py injects into every
// loader run: checkpoint progress, append a log line, and report a
// data-quality issue.
type Callbacks struct {
	Checkpoint func(ctx domain.Context, cursor int) error
	Log        func(ctx domain.Context, level, message string, metadata map[string]any) error
	ReportIssue func(ctx domain.Context, issue domain.DataQualityIssue) error
	// DeadLetter persists a record the pipeline could not import, keyed by
	// source so a later reprocess pass can route it back through the same
	// loader. Distinct from ReportIssue: a data-quality issue is a review
	// item, a dead letter is a retry candidate.
	DeadLetter func(ctx domain.Context, rec domain.FailedRecord) error
}

// RunOptions configures one Runner.Run call.
type RunOptions struct {
	BatchSize          int
	CheckpointInterval int
	ProgressInterval   time.Duration
	Limit              int // 0 means unbounded
	Breaker            *observability.CircuitBreaker
	Retry              domain.RetryConfig
}

// Stats mirrors the running counters every loader run tracks.
type Stats struct {
	TotalProcessed      int
	Successful          int
	Failed              int
	Skipped             int
	EntitiesCreated     int
	RelationshipsCreated int
	ConflictsDetected   int
	CheckpointsSaved    int
}

// Result is what a Run call returns.
type Result struct {
	Status   string // "already_processed" | "completed"
	SourceID string
	Stats    Stats
	Elapsed  time.Duration
}

// Runner drives the registration/batch/checkpoint/progress loop around a
// Loader, against the sources table and the job-scoped callbacks.
type Runner struct {
	Sources domain.SourceRepository
}

// NewRunner constructs a Runner over the given sources repository.
func NewRunner(sources domain.SourceRepository) *Runner {
	return &Runner{Sources: sources}
}

var versionDateToken = regexp.MustCompile(`(\d{8})`)

// Run registers filePath as a source (or resumes/short-circuits an existing
// one), streams it through loader in batches, and finalizes the source row.
func (r *Runner) Run(ctx domain.Context, l Loader, filePath string, opts RunOptions, cb Callbacks) (Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = 1000
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Minute
	}

	start := time.Now()

	sourceID, startFrom, stats, alreadyDone, err := r.registerSource(ctx, l, filePath)
	if err != nil {
		return Result{}, fmt.Errorf("op=loader.run.register_source: %w", err)
	}
	if alreadyDone {
		return Result{Status: "already_processed", SourceID: sourceID}, nil
	}

	reader, err := l.OpenBatches(filePath, opts.BatchSize, startFrom)
	if err != nil {
		return Result{}, fmt.Errorf("op=loader.run.open_batches: %w", err)
	}
	defer reader.Close()

	lastCheckpoint := 0
	processedSinceStart := 0
	lastProgressAt := start
	lastProgressCount := stats.TotalProcessed

	runErr := func() error {
		for {
			batch, err := reader.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("op=loader.run.read_batch: %w", err)
			}

			r.processBatch(ctx, l, sourceID, batch, &stats, opts, cb)
			processedSinceStart += len(batch)
			stats.TotalProcessed = startFrom + processedSinceStart

			if time.Since(lastProgressAt) >= opts.ProgressInterval {
				reportProgress(&stats, lastProgressCount, time.Since(lastProgressAt))
				lastProgressAt = time.Now()
				lastProgressCount = stats.TotalProcessed
			}

			if stats.TotalProcessed-lastCheckpoint >= opts.CheckpointInterval {
				if err := r.checkpoint(ctx, sourceID, stats, cb); err != nil {
					slog.Warn("loader checkpoint failed", slog.String("source_id", sourceID), slog.Any("error", err))
				} else {
					stats.CheckpointsSaved++
				}
				lastCheckpoint = stats.TotalProcessed
			}

			if opts.Limit > 0 && processedSinceStart >= opts.Limit {
				return nil
			}
		}
	}()

	if runErr != nil {
		msg := runErr.Error()
		if len(msg) > 1000 {
			msg = msg[:1000]
		}
		if err := r.Sources.Fail(ctx, sourceID, msg); err != nil {
			slog.Error("failed to mark source failed", slog.String("source_id", sourceID), slog.Any("error", err))
		}
		return Result{}, fmt.Errorf("op=loader.run: %w", runErr)
	}

	if err := r.checkpoint(ctx, sourceID, stats, cb); err != nil {
		slog.Warn("loader final checkpoint failed", slog.String("source_id", sourceID), slog.Any("error", err))
	}
	if err := r.Sources.Complete(ctx, sourceID, int64(stats.TotalProcessed)); err != nil {
		return Result{}, fmt.Errorf("op=loader.run.complete: %w", err)
	}

	return Result{Status: "completed", SourceID: sourceID, Stats: stats, Elapsed: time.Since(start)}, nil
}

func (r *Runner) registerSource(ctx domain.Context, l Loader, filePath string) (sourceID string, startFrom int, stats Stats, alreadyDone bool, err error) {
	hash, size, err := fileHash(filePath)
	if err != nil {
		return "", 0, Stats{}, false, fmt.Errorf("op=loader.register_source.hash: %w", err)
	}
	version := determineVersion(filePath)

	existing, found, err := r.Sources.FindByTypeAndHash(ctx, l.SourceType(), hash)
	if err != nil {
		return "", 0, Stats{}, false, fmt.Errorf("op=loader.register_source.lookup: %w", err)
	}
	if found {
		if existing.Status == domain.SourceCompleted {
			return existing.SourceID, 0, Stats{}, true, nil
		}
		stats.TotalProcessed = int(existing.RecordsProcessed)
		return existing.SourceID, stats.TotalProcessed, stats, false, nil
	}

	created, err := r.Sources.Register(ctx, domain.Source{
		SourceType:    l.SourceType(),
		SourceName:    l.SourceName(),
		SourceVersion: version,
		FileName:      filepath.Base(filePath),
		FileHash:      hash,
		FileSizeBytes: size,
		Status:        domain.SourceProcessing,
	})
	if err != nil {
		return "", 0, Stats{}, false, fmt.Errorf("op=loader.register_source.register: %w", err)
	}
	return created.SourceID, 0, Stats{}, false, nil
}

func (r *Runner) checkpoint(ctx domain.Context, sourceID string, stats Stats, cb Callbacks) error {
	if err := r.Sources.UpdateCounters(ctx, sourceID, int64(stats.TotalProcessed), int64(stats.Successful), int64(stats.Failed), int64(stats.Skipped)); err != nil {
		return fmt.Errorf("op=loader.checkpoint.update_counters: %w", err)
	}
	if cb.Checkpoint != nil {
		if err := cb.Checkpoint(ctx, stats.TotalProcessed); err != nil {
			return fmt.Errorf("op=loader.checkpoint.callback: %w", err)
		}
	}
	return nil
}

func (r *Runner) processBatch(ctx domain.Context, l Loader, sourceID string, batch RawBatch, stats *Stats, opts RunOptions, cb Callbacks) {
	for _, raw := range batch {
		rec, err := l.ParseRecord(raw)
		if err != nil {
			stats.Failed++
			r.reportIssue(ctx, cb, "parse_error", domain.SeverityError, err.Error(), raw)
			r.deadLetter(ctx, cb, l, sourceID, "parse_error", err, raw)
			continue
		}
		if rec == nil {
			stats.Skipped++
			continue
		}

		if errs := l.ValidateRecord(rec); len(errs) > 0 {
			stats.Failed++
			slog.Warn("loader validation errors", slog.Any("errors", errs))
			for _, e := range errs {
				r.reportIssue(ctx, cb, "validation_error", domain.SeverityWarning, e, raw)
			}
			continue
		}

		results, procErr := r.runProcess(ctx, l, rec, opts.Breaker, opts.Retry)
		if procErr != nil {
			stats.Failed++
			if cb.Log != nil {
				_ = cb.Log(ctx, "error", "record processing error", map[string]any{"error": procErr.Error()})
			}
			continue
		}

		allOK := true
		hasConflicts := false
		for _, res := range results {
			if !res.Success {
				allOK = false
			}
			if res.Status == domain.ProposeConflicts {
				hasConflicts = true
			}
		}
		if hasConflicts {
			stats.ConflictsDetected++
		}
		if allOK {
			stats.Successful++
			stats.EntitiesCreated++
			stats.RelationshipsCreated += len(results)
		} else {
			stats.Failed++
		}
	}
}

// runProcess calls l.ProcessRecord, retrying transient failures per
// retryCfg and, if breaker is configured, tripping it on exhaustion. The
// breaker wraps the retry loop rather than the other way around: once it's
// open, attempts fail fast without spending retries against a store that's
// already known to be down.
func (r *Runner) runProcess(ctx domain.Context, l Loader, rec Record, breaker *observability.CircuitBreaker, retryCfg domain.RetryConfig) ([]domain.ProposeFactResponse, error) {
	var results []domain.ProposeFactResponse
	attempt := func() error {
		var innerErr error
		results, innerErr = l.ProcessRecord(ctx, rec)
		return innerErr
	}
	call := func() error {
		return Retry(ctx, retryCfg, isTransientProcessError, attempt)
	}

	if breaker == nil {
		return results, call()
	}
	err := breaker.Call(call)
	return results, err
}

// deadLetter persists a record the pipeline could not import so a later
// reprocess pass can route it back through the owning loader. raw values
// are carried through as strings, matching what FailedRecordRepository
// stores and what LoaderRecordProcessor reconstructs from.
func (r *Runner) deadLetter(ctx domain.Context, cb Callbacks, l Loader, sourceID, errType string, cause error, raw map[string]string) {
	if cb.DeadLetter == nil {
		return
	}
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		data[k] = v
	}
	if err := cb.DeadLetter(ctx, domain.FailedRecord{
		SourceID:   sourceID,
		SourceType: l.SourceType(),
		RecordData: data,
		ErrorMessage: cause.Error(),
		ErrorType:  errType,
	}); err != nil {
		slog.Warn("loader failed to dead-letter record", slog.Any("error", err))
	}
}

func (r *Runner) reportIssue(ctx domain.Context, cb Callbacks, issueType string, severity domain.IssueSeverity, message string, raw map[string]string) {
	if cb.ReportIssue == nil {
		return
	}
	rawRecord := make(map[string]any, len(raw))
	for k, v := range raw {
		rawRecord[k] = v
	}
	if err := cb.ReportIssue(ctx, domain.DataQualityIssue{
		IssueType:        issueType,
		Severity:         severity,
		Message:          message,
		RawRecord:        rawRecord,
		ResolutionStatus: domain.ResolutionPending,
	}); err != nil {
		slog.Warn("loader failed to report data-quality issue", slog.Any("error", err))
	}
}

func reportProgress(stats *Stats, lastCount int, elapsed time.Duration) {
	recordsSince := stats.TotalProcessed - lastCount
	velocity := 0.0
	if elapsed > 0 {
		velocity = float64(recordsSince) / elapsed.Minutes()
	}
	successRate := 0.0
	if stats.TotalProcessed > 0 {
		successRate = float64(stats.Successful) / float64(stats.TotalProcessed) * 100
	}
	slog.Info("loader progress",
		slog.Int("records_in_window", recordsSince),
		slog.Float64("window_minutes", elapsed.Minutes()),
		slog.Float64("velocity_per_minute", velocity),
		slog.Int("total_processed", stats.TotalProcessed),
		slog.Int("successful", stats.Successful),
		slog.Float64("success_rate_pct", successRate),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
	)
}

func fileHash(path string) (hash string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), info.Size(), nil
}

func determineVersion(path string) string {
	base := filepath.Base(path)
	if m := versionDateToken.FindStringSubmatch(base); m != nil {
		year := m[1][:4]
		month := int(m[1][4]-'0')*10 + int(m[1][5]-'0')
		quarter := (month-1)/3 + 1
		return fmt.Sprintf("%s-Q%d", year, quarter)
	}

	info, err := os.Stat(path)
	if err != nil {
		t := time.Now()
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	}
	t := info.ModTime()
	return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}
