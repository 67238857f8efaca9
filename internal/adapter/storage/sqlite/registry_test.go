package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avela/lectern/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewRegistry(store)
}

func TestRegistry_CreateGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	job := domain.NewJob("lecture.mp4", "/data/uploads/a.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, job))

	got, err := r.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.Equal(t, "base", got.Options.WhisperModel)
	assert.Nil(t, got.Result)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_Update(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	job := domain.NewJob("lecture.mp4", "/tmp/a.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, job))

	updated, err := r.Update(ctx, job.ID, func(j *domain.Job) error {
		j.Status = domain.StatusTranscribing
		j.Progress = 30
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTranscribing, updated.Status)
	assert.Equal(t, 30, updated.Progress)

	got, err := r.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)
}

func TestRegistry_UpdateRejectsProgressRegression(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	job := domain.NewJob("a.mp4", "/tmp/a.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, job))

	_, err := r.Update(ctx, job.ID, func(j *domain.Job) error {
		j.Progress = 60
		j.Status = domain.StatusAnalyzing
		return nil
	})
	require.NoError(t, err)

	_, err = r.Update(ctx, job.ID, func(j *domain.Job) error {
		j.Progress = 30
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrProgressRegression)

	got, err := r.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.Progress, "rejected update must not be persisted")
}

func TestRegistry_UpdateAllowsFailureAtAnyProgress(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	job := domain.NewJob("a.mp4", "/tmp/a.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, job))

	_, err := r.Update(ctx, job.ID, func(j *domain.Job) error {
		j.Progress = 90
		j.Status = domain.StatusGenerating
		return nil
	})
	require.NoError(t, err)

	updated, err := r.Update(ctx, job.ID, func(j *domain.Job) error {
		j.SetFailed(domain.KindArtifact, "disk full")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, updated.Status)
	assert.Equal(t, domain.KindArtifact, updated.ErrorKind)
}

func TestRegistry_UpdateRejectsTerminal(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	job := domain.NewJob("a.mp4", "/tmp/a.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, job))

	_, err := r.Update(ctx, job.ID, func(j *domain.Job) error {
		j.SetComplete(&domain.JobResult{Transcription: "done"})
		return nil
	})
	require.NoError(t, err)

	_, err = r.Update(ctx, job.ID, func(j *domain.Job) error {
		j.Status = domain.StatusQueued
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrTerminal)

	got, err := r.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "done", got.Result.Transcription)
}

func TestRegistry_ClaimNext(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	first := domain.NewJob("first.mp4", "/tmp/1.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, first))

	second := domain.NewJob("second.mp4", "/tmp/2.mp4", domain.DefaultOptions())
	second.CreatedAt = second.CreatedAt.Add(time.Second)
	require.NoError(t, r.Create(ctx, second))

	claimed, err := r.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID, "oldest queued job is claimed first")
	assert.Equal(t, domain.StatusExtracting, claimed.Status)
	assert.Equal(t, 10, claimed.Progress)

	claimed2, err := r.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, claimed2.ID)

	_, err = r.ClaimNext(ctx)
	assert.ErrorIs(t, err, domain.ErrNoJobAvailable)
}

func TestRegistry_ClaimNextConcurrent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	const jobCount = 10
	for i := 0; i < jobCount; i++ {
		job := domain.NewJob("a.mp4", "/tmp/a.mp4", domain.DefaultOptions())
		job.CreatedAt = job.CreatedAt.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, r.Create(ctx, job))
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := r.ClaimNext(ctx)
				if errors.Is(err, domain.ErrNoJobAvailable) {
					return
				}
				require.NoError(t, err)
				mu.Lock()
				require.False(t, seen[job.ID], "job %s claimed twice", job.ID)
				seen[job.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobCount)
}

func TestRegistry_FailStalled(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	queued := domain.NewJob("q.mp4", "/tmp/q.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, queued))

	stalled := domain.NewJob("s.mp4", "/tmp/s.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, stalled))
	_, err := r.Update(ctx, stalled.ID, func(j *domain.Job) error {
		j.Status = domain.StatusAnalyzing
		j.Progress = 60
		return nil
	})
	require.NoError(t, err)

	n, err := r.FailStalled(ctx, "interrupted by restart")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := r.Get(ctx, stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, domain.KindInternal, got.ErrorKind)

	got, err = r.Get(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, got.Status, "queued jobs survive a restart")
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	older := domain.NewJob("old.mp4", "/tmp/old.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, older))

	newer := domain.NewJob("new.mp4", "/tmp/new.mp4", domain.DefaultOptions())
	newer.CreatedAt = newer.CreatedAt.Add(time.Second)
	require.NoError(t, r.Create(ctx, newer))

	jobs, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, newer.ID, jobs[0].ID, "newest first")
}

func TestRegistry_ConcurrentUpdates(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	job := domain.NewJob("a.mp4", "/tmp/a.mp4", domain.DefaultOptions())
	require.NoError(t, r.Create(ctx, job))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Update(ctx, job.ID, func(j *domain.Job) error {
				if j.Progress < 90 {
					j.Progress += 1
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := r.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Progress)
}
