package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avela/lectern/internal/domain"
)

func TestWorkerPool_ProcessesQueuedJobs(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ids []string
	for i := 0; i < 3; i++ {
		job := domain.NewJob("lecture.mp4", "/tmp/lecture.mp4", domain.DefaultOptions())
		require.NoError(t, f.registry.Create(ctx, job))
		ids = append(ids, job.ID)
	}

	pool := NewWorkerPool(f.registry, f.pipeline, 2)
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := f.registry.Get(ctx, id)
			if err != nil || !job.Status.IsTerminal() {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	for _, id := range ids {
		job, err := f.registry.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusComplete, job.Status)
	}
}

func TestWorkerPool_FailsStalledJobsOnStart(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stalled := domain.NewJob("stalled.mp4", "/tmp/s.mp4", domain.DefaultOptions())
	require.NoError(t, f.registry.Create(ctx, stalled))
	_, err := f.registry.Update(ctx, stalled.ID, func(j *domain.Job) error {
		j.Status = domain.StatusTranscribing
		j.Progress = 30
		return nil
	})
	require.NoError(t, err)

	pool := NewWorkerPool(f.registry, f.pipeline, 1)
	pool.Start(ctx)

	job, err := f.registry.Get(ctx, stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, job.Status)
	assert.Equal(t, domain.KindInternal, job.ErrorKind)
	assert.Contains(t, job.ErrorMessage, "restart")
}
