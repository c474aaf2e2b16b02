package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/dlq"
	"github.com/lexara-six/ingestion/internal/domain"
)

type fakeRepo struct {
	addErr            error
	selectRecords     []domain.FailedRecord
	selectErr         error
	markRetryingErr   error
	markReprocessed   []markReprocessedCall
	markReprocessErr  error
	cleanupCount      int
	cleanupErr        error
}

type markReprocessedCall struct {
	recordID string
	success  bool
	result   map[string]any
}

func (f *fakeRepo) Add(_ domain.Context, _ domain.FailedRecord) error { return f.addErr }
func (f *fakeRepo) SelectForRetry(_ domain.Context, _ int, _ time.Duration, _ int) ([]domain.FailedRecord, error) {
	return f.selectRecords, f.selectErr
}
func (f *fakeRepo) MarkRetrying(_ domain.Context, _ string) error { return f.markRetryingErr }
func (f *fakeRepo) MarkReprocessed(_ domain.Context, recordID string, success bool, result map[string]any) error {
	f.markReprocessed = append(f.markReprocessed, markReprocessedCall{recordID, success, result})
	return f.markReprocessErr
}
func (f *fakeRepo) CleanupOlderThan(_ domain.Context, _ time.Duration) (int, error) {
	return f.cleanupCount, f.cleanupErr
}

type fakeProcessor struct {
	ok  bool
	err error
}

func (f fakeProcessor) ProcessRecord(_ domain.Context, _ domain.FailedRecord) (bool, error) { return f.ok, f.err }

func TestReprocessBatchEmpty(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	r := dlq.New(repo)

	stats, err := r.ReprocessBatch(context.Background(), fakeProcessor{ok: true}, 10)
	require.NoError(t, err)
	assert.Equal(t, dlq.BatchStats{}, stats)
}

func TestReprocessBatchSuccess(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{selectRecords: []domain.FailedRecord{{RecordID: "r1"}, {RecordID: "r2"}}}
	r := dlq.New(repo)

	stats, err := r.ReprocessBatch(context.Background(), fakeProcessor{ok: true}, 10)
	require.NoError(t, err)
	assert.Equal(t, dlq.BatchStats{Processed: 2, Successful: 2, Failed: 0}, stats)
	require.Len(t, repo.markReprocessed, 2)
	assert.True(t, repo.markReprocessed[0].success)
}

func TestReprocessBatchPartialFailure(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{selectRecords: []domain.FailedRecord{{RecordID: "r1"}}}
	r := dlq.New(repo)

	stats, err := r.ReprocessBatch(context.Background(), fakeProcessor{ok: false}, 10)
	require.NoError(t, err)
	assert.Equal(t, dlq.BatchStats{Processed: 1, Successful: 0, Failed: 1}, stats)
	assert.False(t, repo.markReprocessed[0].success)
}

func TestReprocessBatchProcessorError(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{selectRecords: []domain.FailedRecord{{RecordID: "r1"}}}
	r := dlq.New(repo)

	stats, err := r.ReprocessBatch(context.Background(), fakeProcessor{err: errors.New("boom")}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, "error", repo.markReprocessed[0].result["status"])
}

func TestReprocessBatchSelectError(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{selectErr: errors.New("db down")}
	r := dlq.New(repo)

	_, err := r.ReprocessBatch(context.Background(), fakeProcessor{ok: true}, 10)
	require.Error(t, err)
}

func TestCleanup(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{cleanupCount: 7}
	r := dlq.New(repo)

	n, err := r.Cleanup(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestAdd(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	r := dlq.New(repo)

	require.NoError(t, r.Add(context.Background(), domain.FailedRecord{RecordID: "r1"}))
}
