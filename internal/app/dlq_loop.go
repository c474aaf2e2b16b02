package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexara-six/ingestion/internal/dlq"
)

// DLQLoop periodically reprocesses eligible dead-lettered records and
// purges old reprocessed ones, the background maintenance counterpart to
// Reaper for the failed_records table.
type DLQLoop struct {
	reprocessor *dlq.Reprocessor
	processor   dlq.RecordProcessor
	interval    time.Duration
	batchSize   int
	maxAge      time.Duration
}

// NewDLQLoop builds a DLQLoop. Returns nil when reprocessor or processor is
// nil so Run is a no-op, letting callers wire it unconditionally.
func NewDLQLoop(reprocessor *dlq.Reprocessor, processor dlq.RecordProcessor, interval, maxAge time.Duration, batchSize int) *DLQLoop {
	if reprocessor == nil || processor == nil {
		return nil
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &DLQLoop{reprocessor: reprocessor, processor: processor, interval: interval, batchSize: batchSize, maxAge: maxAge}
}

// Run sweeps on a ticker until ctx is cancelled.
func (d *DLQLoop) Run(ctx context.Context) {
	if d == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("dlq loop stopping")
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *DLQLoop) runOnce(ctx context.Context) {
	tracer := otel.Tracer("dlq.loop")
	ctx, span := tracer.Start(ctx, "DLQLoop.runOnce")
	defer span.End()

	stats, err := d.reprocessor.ReprocessBatch(ctx, d.processor, d.batchSize)
	if err != nil {
		span.RecordError(err)
		slog.Error("dlq reprocess batch failed", slog.Any("error", err))
	} else {
		span.SetAttributes(
			attribute.Int("dlq.processed", stats.Processed),
			attribute.Int("dlq.successful", stats.Successful),
		)
		if stats.Processed > 0 {
			slog.Info("dlq reprocess batch complete",
				slog.Int("processed", stats.Processed),
				slog.Int("successful", stats.Successful),
				slog.Int("failed", stats.Failed))
		}
	}

	n, err := d.reprocessor.Cleanup(ctx, d.maxAge)
	if err != nil {
		slog.Warn("dlq cleanup failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		slog.Info("dlq cleanup removed reprocessed records", slog.Int("count", n))
	}
}
