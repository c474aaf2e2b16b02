package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/adapter/repo/postgres"
	"github.com/lexara-six/ingestion/internal/domain"
)

func TestJobRepoSubmit(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := postgres.NewJobRepo(p)

	j, err := repo.Submit(context.Background(), "iowa_business", map[string]any{"path": "s3://x"})
	require.NoError(t, err)
	assert.NotEmpty(t, j.JobID)
	assert.Equal(t, domain.JobPending, j.Status)
	assert.Equal(t, "iowa_business", j.JobType)
}

func TestJobRepoSubmitExecError(t *testing.T) {
	t.Parallel()
	p := &poolStub{execErr: errors.New("db down")}
	repo := postgres.NewJobRepo(p)

	_, err := repo.Submit(context.Background(), "iowa_business", nil)
	require.Error(t, err)
}

func jobScanFunc(j domain.Job) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = j.JobID
		*(dest[1].(*string)) = j.JobType
		*(dest[2].(*[]byte)) = []byte(`{}`)
		*(dest[3].(*domain.JobStatus)) = j.Status
		*(dest[4].(**string)) = j.WorkerID
		*(dest[5].(*[]byte)) = []byte(`{}`)
		*(dest[6].(*time.Time)) = j.CreatedAt
		*(dest[7].(**time.Time)) = j.ClaimedAt
		*(dest[8].(**time.Time)) = j.StartedAt
		*(dest[9].(**time.Time)) = j.CompletedAt
		*(dest[10].(*time.Time)) = j.UpdatedAt
		*(dest[11].(**string)) = j.ErrorMessage
		return nil
	}
}

func TestJobRepoClaimNextFound(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	want := domain.Job{JobID: "j1", JobType: "iowa_business", Status: domain.JobClaimed, CreatedAt: now, UpdatedAt: now}
	p := &poolStub{row: rowStub{scan: jobScanFunc(want)}}
	repo := postgres.NewJobRepo(p)

	j, ok, err := repo.ClaimNext(context.Background(), "worker-1", []string{"iowa_business"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "j1", j.JobID)
}

func TestJobRepoClaimNextEmpty(t *testing.T) {
	t.Parallel()
	p := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewJobRepo(p)

	_, ok, err := repo.ClaimNext(context.Background(), "worker-1", []string{"iowa_business"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobRepoGetNotFound(t *testing.T) {
	t.Parallel()
	p := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewJobRepo(p)

	_, err := repo.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepoMarkRunningNotFound(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := postgres.NewJobRepo(p)

	err := repo.MarkRunning(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepoMarkCompleted(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewJobRepo(p)

	require.NoError(t, repo.MarkCompleted(context.Background(), "j1"))
}

func TestJobRepoMarkFailed(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewJobRepo(p)

	require.NoError(t, repo.MarkFailed(context.Background(), "j1", "boom"))
}

func TestJobRepoSaveCheckpoint(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewJobRepo(p)

	require.NoError(t, repo.SaveCheckpoint(context.Background(), "j1", map[string]any{"offset": 100}))
}

func TestJobRepoList(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	want := domain.Job{JobID: "j1", JobType: "iowa_business", Status: domain.JobPending, CreatedAt: now, UpdatedAt: now}
	p := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{jobScanFunc(want)}}}
	repo := postgres.NewJobRepo(p)

	jobs, err := repo.List(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].JobID)
}

func TestJobRepoRequeueStale(t *testing.T) {
	t.Parallel()
	p := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 3")}
	repo := postgres.NewJobRepo(p)

	n, err := repo.RequeueStale(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
