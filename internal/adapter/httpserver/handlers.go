// Package httpserver contains the coordinator's HTTP handlers and middleware:
// job claim/submit/status/heartbeat, worker listing, and data-quality-issue
// review endpoints, plus the request logging and safety middleware they run
// behind.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexara-six/ingestion/internal/config"
	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
)

// JobEventPublisher is the best-effort notification sink the coordinator
// pushes job lifecycle events to. A nil publisher silently no-ops.
type JobEventPublisher interface {
	PublishJobSubmitted(ctx context.Context, jobID, jobType string) error
}

// Server aggregates the coordinator's dependencies. One instance is shared
// across every request; it holds no per-request state.
type Server struct {
	Cfg        config.Config
	Jobs       domain.JobRepository
	Workers    domain.WorkerRepository
	DQ         domain.DataQualityRepository
	JobLogs    domain.JobLogRepository
	Loaders    *loader.Registry
	Events     JobEventPublisher
	DBCheck    func(ctx context.Context) error
	HBDeadline time.Duration
}

// NewServer constructs a Server from its wired dependencies.
func NewServer(cfg config.Config, jobs domain.JobRepository, workers domain.WorkerRepository, dq domain.DataQualityRepository, jobLogs domain.JobLogRepository, loaders *loader.Registry, events JobEventPublisher, dbCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:        cfg,
		Jobs:       jobs,
		Workers:    workers,
		DQ:         dq,
		JobLogs:    jobLogs,
		Loaders:    loaders,
		Events:     events,
		DBCheck:    dbCheck,
		HBDeadline: cfg.HeartbeatDeadline,
	}
}

// HealthHandler reports liveness plus a best-effort store connectivity check.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if s.DBCheck != nil {
			if err := s.DBCheck(r.Context()); err != nil {
				status = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  status,
			"service": "lexara-coordinator",
		})
	}
}

type claimRequest struct {
	WorkerID     string   `json:"worker_id"`
	Capabilities []string `json:"capabilities"`
}

// ClaimJobHandler hands the oldest pending job matching the worker's
// declared capabilities to the caller, atomically transitioning it to
// claimed via JobRepository.ClaimNext's compare-and-set.
func (s *Server) ClaimJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req claimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.ClaimJob: %w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if req.WorkerID == "" {
			writeError(w, r, fmt.Errorf("op=httpserver.ClaimJob: %w: worker_id required", domain.ErrInvalidArgument), nil)
			return
		}
		job, ok, err := s.Jobs.ClaimNext(r.Context(), req.WorkerID, req.Capabilities)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.ClaimJob: %w", err), nil)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, jobView(job))
	}
}

type submitRequest struct {
	JobType string         `json:"job_type"`
	Config  map[string]any `json:"config"`
}

// SubmitJobHandler enqueues a new job. It rejects job types with no
// registered loader up front so a mistyped job_type fails fast at submit
// time rather than at claim time.
func (s *Server) SubmitJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.SubmitJob: %w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if req.JobType == "" {
			writeError(w, r, fmt.Errorf("op=httpserver.SubmitJob: %w: job_type required", domain.ErrInvalidArgument), nil)
			return
		}
		if s.Loaders != nil {
			known := false
			for _, t := range s.Loaders.JobTypes() {
				if t == req.JobType {
					known = true
					break
				}
			}
			if !known {
				writeError(w, r, fmt.Errorf("op=httpserver.SubmitJob: %w: %s", domain.ErrNoLoader, req.JobType), nil)
				return
			}
		}
		job, err := s.Jobs.Submit(r.Context(), req.JobType, req.Config)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.SubmitJob: %w", err), nil)
			return
		}
		if s.Events != nil {
			if err := s.Events.PublishJobSubmitted(r.Context(), job.JobID, job.JobType); err != nil {
				// Best-effort: submission already persisted, don't fail the request.
				LoggerFrom(r).Warn("job event publish failed", "job_id", job.JobID, "error", err)
			}
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id": job.JobID,
			"status": "queued",
		})
	}
}

// JobStatusHandler returns the full job row joined with its owning worker's
// liveness, matching what the original Hyperdrive query joined in SQL.
func (s *Server) JobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		job, err := s.Jobs.Get(r.Context(), jobID)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.JobStatus: %w", err), nil)
			return
		}
		view := jobView(job)
		if job.WorkerID != nil && s.Workers != nil {
			if workers, err := s.Workers.List(r.Context()); err == nil {
				for _, wk := range workers {
					if wk.WorkerID == *job.WorkerID {
						view["worker"] = map[string]any{
							"hostname":       wk.Hostname,
							"last_heartbeat": wk.LastHeartbeat.UTC().Format(time.RFC3339),
							"live":           wk.Live(time.Now(), s.HBDeadline),
						}
						break
					}
				}
			}
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type heartbeatRequest struct {
	WorkerID string         `json:"worker_id"`
	Metadata map[string]any `json:"metadata"`
}

// JobHeartbeatHandler acknowledges a worker's in-flight-job heartbeat. The
// worker's own liveness is written directly to the store by the worker
// runtime (C9); this endpoint only records the ping for observability.
func (s *Server) JobHeartbeatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		var req heartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.JobHeartbeat: %w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if s.JobLogs != nil {
			_ = s.JobLogs.Append(r.Context(), domain.JobLog{
				LogID:     domain.NewID(),
				JobID:     jobID,
				Timestamp: time.Now().UTC(),
				Level:     "debug",
				Message:   "heartbeat",
				Metadata:  req.Metadata,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "acknowledged"})
	}
}

// ListJobsHandler lists jobs, optionally filtered by status.
func (s *Server) ListJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		limit := parseLimit(r.URL.Query().Get("limit"), 50, 500)
		jobs, err := s.Jobs.List(r.Context(), status, limit)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.ListJobs: %w", err), nil)
			return
		}
		out := make([]map[string]any, len(jobs))
		for i, j := range jobs {
			out[i] = jobView(j)
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": out, "count": len(out)})
	}
}

// ListWorkersHandler lists active and idle workers.
func (s *Server) ListWorkersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workers, err := s.Workers.List(r.Context())
		if err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.ListWorkers: %w", err), nil)
			return
		}
		out := make([]map[string]any, 0, len(workers))
		for _, wk := range workers {
			if wk.Status != domain.WorkerActive && wk.Status != domain.WorkerIdle {
				continue
			}
			out = append(out, map[string]any{
				"worker_id":      wk.WorkerID,
				"hostname":       wk.Hostname,
				"status":         string(wk.Status),
				"last_heartbeat": wk.LastHeartbeat.UTC().Format(time.RFC3339),
				"capabilities":   wk.Capabilities,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"workers": out, "count": len(out)})
	}
}

// ListDataQualityIssuesHandler lists data-quality issues, defaulting to
// pending ones, mirroring the original coordinator's default filter.
func (s *Server) ListDataQualityIssuesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status == "" {
			status = string(domain.ResolutionPending)
		}
		limit := parseLimit(r.URL.Query().Get("limit"), 100, 1000)
		issues, err := s.DQ.List(r.Context(), status, limit)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=httpserver.ListDataQualityIssues: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"issues": issues, "count": len(issues)})
	}
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func jobView(j domain.Job) map[string]any {
	v := map[string]any{
		"job_id":     j.JobID,
		"job_type":   j.JobType,
		"config":     j.Config,
		"status":     string(j.Status),
		"worker_id":  j.WorkerID,
		"checkpoint": j.Checkpoint,
		"created_at": j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ClaimedAt != nil {
		v["claimed_at"] = j.ClaimedAt.UTC().Format(time.RFC3339)
	}
	if j.StartedAt != nil {
		v["started_at"] = j.StartedAt.UTC().Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		v["completed_at"] = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	if j.ErrorMessage != nil {
		v["error_message"] = *j.ErrorMessage
	}
	return v
}
