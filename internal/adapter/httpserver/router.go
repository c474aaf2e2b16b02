package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// NewRouter wires the coordinator's routes behind the shared middleware
// stack: panic recovery, request IDs, tracing, access logging, security
// headers, and a request deadline. /jobs/claim carries its own per-client-IP
// rate limit (10 requests per second) so one misbehaving caller can't starve
// the claim queue for everyone else.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer())
	r.Use(TraceMiddleware)
	r.Use(RequestID())
	r.Use(AccessLog())
	r.Use(SecurityHeaders)
	r.Use(TimeoutMiddleware(s.Cfg.HTTPReadTimeout))

	origins := strings.Split(s.Cfg.CORSAllowOrigins, ",")
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
		AllowCredentials: false,
	}))

	r.Get("/health", s.HealthHandler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Second))
		r.Post("/jobs/claim", s.ClaimJobHandler())
	})

	r.Post("/jobs/submit", s.SubmitJobHandler())
	r.Get("/jobs", s.ListJobsHandler())
	r.Get("/jobs/{id}/status", s.JobStatusHandler())
	r.Post("/jobs/{id}/heartbeat", s.JobHeartbeatHandler())
	r.Get("/workers", s.ListWorkersHandler())
	r.Get("/data-quality/issues", s.ListDataQualityIssuesHandler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: apiError{Code: "NOT_FOUND", Message: "not found"}})
	})

	return r
}
