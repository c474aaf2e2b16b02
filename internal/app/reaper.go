// Package app wires the coordinator's background maintenance loops —
// code that sits above any single adapter but below cmd/server's main.
package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexara-six/ingestion/internal/domain"
)

// Reaper periodically requeues claimed/running jobs whose owning worker has
// gone quiet, the coordinator-side half of the stuck-job sweep the worker
// runtime can't perform on itself.
type Reaper struct {
	jobs     domain.JobRepository
	deadline time.Duration
	interval time.Duration
}

// NewReaper builds a Reaper. Returns nil when jobs is nil so Run is a no-op,
// letting callers wire it unconditionally behind a REAPER_ENABLED flag.
func NewReaper(jobs domain.JobRepository, deadline, interval time.Duration) *Reaper {
	if jobs == nil {
		return nil
	}
	if deadline <= 0 {
		deadline = 180 * time.Second
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{jobs: jobs, deadline: deadline, interval: interval}
}

// Run sweeps on a ticker until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if r == nil || r.jobs == nil {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopping")
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Reaper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("jobs.reaper")
	ctx, span := tracer.Start(ctx, "Reaper.sweepOnce")
	defer span.End()

	span.SetAttributes(attribute.Float64("jobs.heartbeat_deadline_seconds", r.deadline.Seconds()))

	n, err := r.jobs.RequeueStale(ctx, r.deadline)
	if err != nil {
		span.RecordError(err)
		slog.Error("reaper sweep failed", slog.Any("error", err))
		return
	}

	span.SetAttributes(attribute.Int("jobs.requeued", n))
	if n > 0 {
		slog.Info("reaper requeued stale jobs", slog.Int("count", n))
	}
}
