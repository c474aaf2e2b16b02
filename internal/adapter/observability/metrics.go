// Package observability provides logging, metrics, and tracing.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// JobsSubmittedTotal counts jobs submitted by job_type.
	JobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_submitted_total",
			Help: "Total number of jobs submitted to the coordinator",
		},
		[]string{"job_type"},
	)
	// JobsClaimedTotal counts jobs claimed by job_type.
	JobsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_claimed_total",
			Help: "Total number of jobs claimed by workers",
		},
		[]string{"job_type"},
	)
	// JobsRunning is a gauge of jobs currently running by job_type.
	JobsRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_running",
			Help: "Number of jobs currently running",
		},
		[]string{"job_type"},
	)
	// JobsCompletedTotal counts jobs completed by job_type.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"job_type"},
	)
	// JobsFailedTotal counts jobs failed by job_type.
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"job_type"},
	)
	// JobsRequeuedTotal counts jobs requeued by the stale-job reaper.
	JobsRequeuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_requeued_total",
			Help: "Total number of jobs requeued by the reaper after a dead claimer",
		},
		[]string{"job_type"},
	)

	// RecordsProcessedTotal counts records processed by a loader, by source_type and outcome.
	RecordsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_processed_total",
			Help: "Total number of records processed by loaders",
		},
		[]string{"source_type", "outcome"},
	)

	// ConflictsDetectedTotal counts propose-fact calls that returned status=conflicts.
	ConflictsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflicts_detected_total",
			Help: "Total number of propose-fact conflicts detected",
		},
		[]string{"source_type"},
	)

	// DLQSizeGauge tracks the number of unreprocessed failed records.
	DLQSizeGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dlq_pending_records",
			Help: "Number of dead-lettered records awaiting reprocessing",
		},
		[]string{"source_type"},
	)

	// CircuitBreakerStatus tracks circuit breaker state.
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "operation"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(JobsSubmittedTotal)
	prometheus.MustRegister(JobsClaimedTotal)
	prometheus.MustRegister(JobsRunning)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobsRequeuedTotal)
	prometheus.MustRegister(RecordsProcessedTotal)
	prometheus.MustRegister(ConflictsDetectedTotal)
	prometheus.MustRegister(DLQSizeGauge)
	prometheus.MustRegister(CircuitBreakerStatus)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// SubmitJob increments the submitted jobs counter for the given type.
func SubmitJob(jobType string) {
	JobsSubmittedTotal.WithLabelValues(jobType).Inc()
}

// ClaimJob increments the claimed jobs counter for the given type.
func ClaimJob(jobType string) {
	JobsClaimedTotal.WithLabelValues(jobType).Inc()
}

// StartRunningJob increments the running gauge for the given type.
func StartRunningJob(jobType string) {
	JobsRunning.WithLabelValues(jobType).Inc()
}

// CompleteJob marks a job complete: decrements running gauge, increments completed counter.
func CompleteJob(jobType string) {
	JobsRunning.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

// FailJob marks a job failed: decrements running gauge, increments failed counter.
func FailJob(jobType string) {
	JobsRunning.WithLabelValues(jobType).Dec()
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}

// RequeueJob increments the requeued jobs counter for the given type.
func RequeueJob(jobType string) {
	JobsRequeuedTotal.WithLabelValues(jobType).Inc()
}

// RecordProcessed increments the per-outcome record counter for a source type.
// outcome is one of "success", "parse_error", "validation_error", "processing_error", "skipped".
func RecordProcessed(sourceType, outcome string) {
	RecordsProcessedTotal.WithLabelValues(sourceType, outcome).Inc()
}

// RecordConflict increments the conflicts-detected counter for a source type.
func RecordConflict(sourceType string) {
	ConflictsDetectedTotal.WithLabelValues(sourceType).Inc()
}

// SetDLQSize sets the current pending-DLQ-record gauge for a source type.
func SetDLQSize(sourceType string, n float64) {
	DLQSizeGauge.WithLabelValues(sourceType).Set(n)
}

// RecordCircuitBreakerStatus records circuit breaker state.
func RecordCircuitBreakerStatus(service, operation string, status int) {
	CircuitBreakerStatus.WithLabelValues(service, operation).Set(float64(status))
}
