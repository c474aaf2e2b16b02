package app

import (
	"context"
	"testing"
	"time"

	"github.com/lexara-six/ingestion/internal/domain"
)

type fakeJobRepo struct {
	requeued    int
	requeueErr  error
	lastDeadline time.Duration
}

func (r *fakeJobRepo) Submit(domain.Context, string, map[string]any) (domain.Job, error) {
	return domain.Job{}, nil
}
func (r *fakeJobRepo) ClaimNext(domain.Context, string, []string) (domain.Job, bool, error) {
	return domain.Job{}, false, nil
}
func (r *fakeJobRepo) MarkRunning(domain.Context, string) error          { return nil }
func (r *fakeJobRepo) MarkCompleted(domain.Context, string) error        { return nil }
func (r *fakeJobRepo) MarkFailed(domain.Context, string, string) error   { return nil }
func (r *fakeJobRepo) SaveCheckpoint(domain.Context, string, map[string]any) error {
	return nil
}
func (r *fakeJobRepo) Get(domain.Context, string) (domain.Job, error) { return domain.Job{}, nil }
func (r *fakeJobRepo) List(domain.Context, string, int) ([]domain.Job, error) {
	return nil, nil
}
func (r *fakeJobRepo) RequeueStale(_ domain.Context, deadline time.Duration) (int, error) {
	r.lastDeadline = deadline
	if r.requeueErr != nil {
		return 0, r.requeueErr
	}
	return r.requeued, nil
}

func TestNewReaperDefaults(t *testing.T) {
	repo := &fakeJobRepo{}
	r := NewReaper(repo, 0, 0)
	if r == nil {
		t.Fatalf("expected non-nil reaper")
	}
	if r.deadline <= 0 {
		t.Fatalf("deadline should default, got %v", r.deadline)
	}
	if r.interval <= 0 {
		t.Fatalf("interval should default, got %v", r.interval)
	}
}

func TestNewReaperNilRepo(t *testing.T) {
	if r := NewReaper(nil, time.Minute, time.Minute); r != nil {
		t.Fatalf("expected nil reaper when repo is nil")
	}
}

func TestReaperSweepOnceRequeuesStaleJobs(t *testing.T) {
	repo := &fakeJobRepo{requeued: 3}
	r := &Reaper{jobs: repo, deadline: 180 * time.Second, interval: time.Minute}

	r.sweepOnce(context.Background())

	if repo.lastDeadline != 180*time.Second {
		t.Fatalf("expected deadline passed through, got %v", repo.lastDeadline)
	}
}

func TestReaperRunStopsOnContextDone(t *testing.T) {
	repo := &fakeJobRepo{}
	r := NewReaper(repo, time.Minute, 10*time.Millisecond)
	if r == nil {
		t.Fatalf("expected non-nil reaper")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(ch)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("Run did not exit after context cancellation")
	}
}
