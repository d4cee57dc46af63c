package repository

import (
	"context"
	"time"

	"brain-orchestrator/internal/domain/model"
)

// JobQueue is the sole transport between producers and workers: a shared
// multi-producer/multi-consumer FIFO with blocking pop.
type JobQueue interface {
	// Enqueue appends the job to the FIFO tail.
	Enqueue(ctx context.Context, job *model.Job) error

	// Dequeue blocks up to timeout and returns the oldest job, or
	// domain.ErrQueueEmpty when the timeout elapses with nothing to pop.
	// The pop is atomic across consumers.
	Dequeue(ctx context.Context, timeout time.Duration) (*model.Job, error)

	// Depth returns the current queue length (observability only).
	Depth(ctx context.Context) (int64, error)
}

// LivenessIndex is the short-lived, best-effort "currently processing" marker.
// It is explicitly non-authoritative: losing it never corrupts job state.
type LivenessIndex interface {
	MarkProcessing(ctx context.Context, jobID string, ttl time.Duration) error
	ClearProcessing(ctx context.Context, jobID string) error
}
