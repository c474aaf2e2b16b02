package worker_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
	"github.com/lexara-six/ingestion/internal/worker"
)

func contextWithTimeout() (domain.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 150*time.Millisecond)
}

type fakeJobRepo struct {
	mu        sync.Mutex
	running   []string
	completed []string
	failed    []string
	checkpoints []map[string]any
}

func (f *fakeJobRepo) Submit(domain.Context, string, map[string]any) (domain.Job, error) { return domain.Job{}, nil }
func (f *fakeJobRepo) ClaimNext(domain.Context, string, []string) (domain.Job, bool, error) {
	return domain.Job{}, false, nil
}
func (f *fakeJobRepo) MarkRunning(_ domain.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = append(f.running, jobID)
	return nil
}
func (f *fakeJobRepo) MarkCompleted(_ domain.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, jobID)
	return nil
}
func (f *fakeJobRepo) MarkFailed(_ domain.Context, jobID string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, jobID)
	return nil
}
func (f *fakeJobRepo) SaveCheckpoint(_ domain.Context, _ string, cp map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpoints = append(f.checkpoints, cp)
	return nil
}
func (f *fakeJobRepo) Get(domain.Context, string) (domain.Job, error)          { return domain.Job{}, nil }
func (f *fakeJobRepo) List(domain.Context, string, int) ([]domain.Job, error)  { return nil, nil }
func (f *fakeJobRepo) RequeueStale(domain.Context, time.Duration) (int, error) { return 0, nil }

type fakeWorkerRepo struct {
	mu    sync.Mutex
	pings int
}

func (f *fakeWorkerRepo) Heartbeat(domain.Context, string, string, []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}
func (f *fakeWorkerRepo) List(domain.Context) ([]domain.Worker, error) { return nil, nil }

type fakeDQRepo struct{ issues []domain.DataQualityIssue }

func (f *fakeDQRepo) Report(_ domain.Context, i domain.DataQualityIssue) error {
	f.issues = append(f.issues, i)
	return nil
}
func (f *fakeDQRepo) List(domain.Context, string, int) ([]domain.DataQualityIssue, error) {
	return f.issues, nil
}

type fakeJobLogRepo struct{ logs []domain.JobLog }

func (f *fakeJobLogRepo) Append(_ domain.Context, l domain.JobLog) error {
	f.logs = append(f.logs, l)
	return nil
}

type fakeSourceRepo struct{ mu sync.Mutex }

func (f *fakeSourceRepo) FindByTypeAndHash(domain.Context, string, string) (domain.Source, bool, error) {
	return domain.Source{}, false, nil
}
func (f *fakeSourceRepo) Register(_ domain.Context, s domain.Source) (domain.Source, error) {
	s.SourceID = "source-1"
	return s, nil
}
func (f *fakeSourceRepo) UpdateCounters(domain.Context, string, int64, int64, int64, int64) error {
	return nil
}
func (f *fakeSourceRepo) Complete(domain.Context, string, int64) error { return nil }
func (f *fakeSourceRepo) Fail(domain.Context, string, string) error   { return nil }

type fakeLoader struct{}

func (fakeLoader) SourceType() string { return "iowa_business" }
func (fakeLoader) SourceName() string { return "test" }
func (fakeLoader) ParseRecord(raw map[string]string) (loader.Record, error) {
	return loader.Record{"name": raw["name"]}, nil
}
func (fakeLoader) ValidateRecord(loader.Record) []string { return nil }
func (fakeLoader) ProcessRecord(domain.Context, loader.Record) ([]domain.ProposeFactResponse, error) {
	return []domain.ProposeFactResponse{{Success: true, Status: domain.ProposeSuccess}}, nil
}
func (fakeLoader) OpenBatches(path string, batchSize, startFrom int) (loader.BatchReader, error) {
	return &fakeBatchReader{rows: []map[string]string{{"name": "a"}, {"name": "b"}}}, nil
}

type fakeBatchReader struct {
	rows []map[string]string
	sent bool
}

func (r *fakeBatchReader) Next() (loader.RawBatch, error) {
	if r.sent {
		return nil, io.EOF
	}
	r.sent = true
	return loader.RawBatch(r.rows), nil
}
func (r *fakeBatchReader) Close() error { return nil }

func TestRuntimeExecutesClaimedJobEndToEnd(t *testing.T) {
	t.Parallel()

	// The runner hashes the input file before opening it, so the fixture
	// has to exist on disk.
	fixture := filepath.Join(t.TempDir(), "fixture.csv")
	require.NoError(t, os.WriteFile(fixture, []byte("name\na\nb\n"), 0o644))

	coordServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/claim":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"job_id":   "job-1",
				"job_type": "iowa_business",
				"config":   map[string]any{"input": map[string]any{"file_path": fixture}},
				"status":   "claimed",
			})
		case "/jobs/job-1/heartbeat":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer coordServer.Close()

	jobs := &fakeJobRepo{}
	workers := &fakeWorkerRepo{}
	dq := &fakeDQRepo{}
	logs := &fakeJobLogRepo{}
	sources := &fakeSourceRepo{}

	reg := loader.NewRegistry()
	reg.Register("iowa_business", func(map[string]any) (loader.Loader, error) { return fakeLoader{}, nil })

	rt := worker.New(worker.Deps{
		Coordinator: worker.NewCoordinatorClient(coordServer.URL, time.Second),
		Jobs:        jobs,
		Workers:     workers,
		DQ:          dq,
		JobLogs:     logs,
		Loaders:     reg,
		Runner:      loader.NewRunner(sources),
	}, worker.Options{
		WorkerID:          "w1",
		Hostname:          "host-a",
		Capabilities:      []string{"iowa_business"},
		ClaimPollInterval: 10 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		BatchSize:         100,
	})

	ctx, cancel := contextWithTimeout()
	defer cancel()

	err := rt.Run(ctx)
	require.Error(t, err) // context deadline exceeded; the fake coordinator hands out job-1 on every claim until then

	assert.Contains(t, jobs.running, "job-1")
	assert.Contains(t, jobs.completed, "job-1")
	assert.Empty(t, jobs.failed)
}
