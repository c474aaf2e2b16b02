package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexara-six/ingestion/internal/adapter/observability"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddlewareBasic(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	mw := observability.HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(204)
	}))
	mw.ServeHTTP(rec, r)
	assert.Equal(t, 204, rec.Result().StatusCode)
}

func TestJobMetricsHelpers(t *testing.T) {
	t.Parallel()

	observability.SubmitJob("iowa_business")
	observability.ClaimJob("iowa_business")
	observability.StartRunningJob("iowa_business")
	observability.CompleteJob("iowa_business")
	observability.StartRunningJob("iowa_asbestos")
	observability.FailJob("iowa_asbestos")
	observability.RequeueJob("iowa_asbestos")
}

func TestRecordProcessedAndConflict(t *testing.T) {
	t.Parallel()

	observability.RecordProcessed("iowa_business", "success")
	observability.RecordProcessed("iowa_business", "validation_error")
	observability.RecordConflict("iowa_business")
}

func TestSetDLQSize(t *testing.T) {
	t.Parallel()

	observability.SetDLQSize("iowa_asbestos", 3)
	observability.SetDLQSize("iowa_asbestos", 0)
}

func TestRecordCircuitBreakerStatus(t *testing.T) {
	t.Parallel()

	observability.RecordCircuitBreakerStatus("propose-fact", "call", 0)
	observability.RecordCircuitBreakerStatus("propose-fact", "call", 1)
	observability.RecordCircuitBreakerStatus("propose-fact", "call", 2)
}

func TestMetricsConcurrentAccess(t *testing.T) {
	t.Parallel()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			observability.SubmitJob("iowa_business")
			observability.RecordProcessed("iowa_business", "success")
			observability.RecordCircuitBreakerStatus("propose-fact", "call", i%3)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
