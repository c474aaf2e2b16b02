package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/adapter/repo/postgres"
	"github.com/lexara-six/ingestion/internal/domain"
)

func TestFailedRecordRepoAdd(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := postgres.NewFailedRecordRepo(p)

	err := repo.Add(context.Background(), domain.FailedRecord{
		SourceID:     "src-1",
		SourceType:   "iowa_business",
		RecordData:   map[string]any{"name": "Acme"},
		ErrorMessage: "bad zip",
		ErrorType:    "ValidationError",
	})
	require.NoError(t, err)
}

func failedRecordScanFunc(rec domain.FailedRecord) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = rec.RecordID
		*(dest[1].(*string)) = rec.SourceID
		*(dest[2].(*string)) = rec.SourceType
		*(dest[3].(*[]byte)) = []byte(`{}`)
		*(dest[4].(*string)) = rec.ErrorMessage
		*(dest[5].(*string)) = rec.ErrorType
		*(dest[6].(*[]byte)) = []byte(`{}`)
		*(dest[7].(*int)) = rec.AttemptCount
		*(dest[8].(*time.Time)) = rec.CreatedAt
		*(dest[9].(**time.Time)) = rec.LastAttemptAt
		*(dest[10].(*bool)) = rec.Reprocessed
		*(dest[11].(**time.Time)) = rec.ReprocessedAt
		return nil
	}
}

func TestFailedRecordRepoSelectForRetry(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	want := domain.FailedRecord{RecordID: "r1", SourceID: "src-1", SourceType: "iowa_business", AttemptCount: 1, CreatedAt: now}
	p := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{failedRecordScanFunc(want)}}}
	repo := postgres.NewFailedRecordRepo(p)

	recs, err := repo.SelectForRetry(context.Background(), 3, 5*time.Minute, 100)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].RecordID)
}

func TestFailedRecordRepoMarkRetrying(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewFailedRecordRepo(p)

	require.NoError(t, repo.MarkRetrying(context.Background(), "r1"))
}

func TestFailedRecordRepoMarkRetryingNotFound(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := postgres.NewFailedRecordRepo(p)

	err := repo.MarkRetrying(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFailedRecordRepoMarkReprocessedSuccess(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewFailedRecordRepo(p)

	err := repo.MarkReprocessed(context.Background(), "r1", true, map[string]any{"status": "success"})
	require.NoError(t, err)
}

func TestFailedRecordRepoMarkReprocessedFailure(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewFailedRecordRepo(p)

	err := repo.MarkReprocessed(context.Background(), "r1", false, map[string]any{"status": "error"})
	require.NoError(t, err)
}

func TestFailedRecordRepoCleanupOlderThan(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("DELETE 5")}
	repo := postgres.NewFailedRecordRepo(p)

	n, err := repo.CleanupOlderThan(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
