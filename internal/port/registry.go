package port

import (
	"context"

	"github.com/avela/lectern/internal/domain"
)

// JobRegistry stores jobs and enforces their lifecycle rules: terminal jobs
// are immutable and progress never moves backward except into the error state.
type JobRegistry interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	// Update applies fn to the stored job atomically. fn receives the current
	// job and mutates it; the registry rejects illegal transitions.
	Update(ctx context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error)
	// ClaimNext atomically takes the oldest queued job and moves it to the
	// first processing stage. Returns domain.ErrNoJobAvailable when the queue
	// is empty.
	ClaimNext(ctx context.Context) (*domain.Job, error)
	// FailStalled marks every job stuck in a processing stage as failed.
	// Called on startup so jobs orphaned by a crash do not stay in-flight
	// forever.
	FailStalled(ctx context.Context, reason string) (int, error)
	List(ctx context.Context) ([]*domain.Job, error)
}
