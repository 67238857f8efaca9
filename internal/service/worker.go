package service

import (
	"context"
	"errors"
	"time"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/infrastructure/logger"
	"github.com/avela/lectern/internal/port"
)

const (
	pollInterval      = 500 * time.Millisecond
	claimErrorBackoff = 2 * time.Second
)

// WorkerPool bounds the number of concurrently running pipelines. Each worker
// claims queued jobs from the registry and runs them to a terminal state.
type WorkerPool struct {
	registry port.JobRegistry
	pipeline *Pipeline
	workers  int
}

func NewWorkerPool(registry port.JobRegistry, pipeline *Pipeline, workers int) *WorkerPool {
	return &WorkerPool{
		registry: registry,
		pipeline: pipeline,
		workers:  workers,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	// Jobs left mid-stage by a previous run can never resume; fail them so
	// callers see a terminal state instead of a job stuck in-flight forever.
	n, err := wp.registry.FailStalled(ctx, "processing interrupted by service restart")
	if err != nil {
		logger.Error.Printf("failed to fail stalled jobs: %v", err)
	} else if n > 0 {
		logger.Warn.Printf("failed %d stalled jobs from previous run", n)
	}

	for i := range wp.workers {
		go wp.runWorker(ctx, i)
	}
	logger.Info.Printf("started %d workers", wp.workers)
}

func (wp *WorkerPool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			logger.Info.Printf("worker %d shutting down", id)
			return
		default:
		}

		job, err := wp.registry.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNoJobAvailable) {
				time.Sleep(pollInterval)
				continue
			}
			logger.Error.Printf("worker %d: failed to claim job: %v", id, err)
			time.Sleep(claimErrorBackoff)
			continue
		}

		logger.Info.Printf("worker %d: processing job %s (%s)", id, job.ID, logger.SanitizeForLog(job.OriginalName))
		wp.pipeline.Run(ctx, job)
	}
}
