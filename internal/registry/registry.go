// Package registry persists Job rows and implements the atomic claim,
// fair-queueing, and lifecycle transitions the worker pool (C11) and
// pipeline runner (C9) depend on.
package registry

import (
	"context"
	"time"

	"github.com/kushagrasharma/censorly/internal/jobs"
)

// ListFilter narrows a List query.
type ListFilter struct {
	Status jobs.Status // empty = any
	Limit  int
	Offset int
}

// Store is the capability set every backend implements. Atomicity of
// ClaimNext is the single hard requirement: no two callers may ever
// receive the same job.
type Store interface {
	Submit(ctx context.Context, userID, inputRef string, inputSizeBytes int64, inputDurationS float64, cfg jobs.Config, expiresAt time.Time) (string, error)
	ClaimNext(ctx context.Context, workerID string) (*jobs.Job, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	Complete(ctx context.Context, jobID string, outputRef string, intervalCount int, totalCensoredS, processingS float64) error
	Fail(ctx context.Context, jobID string, kind jobs.ErrKind, detail string) error
	Cancel(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*jobs.Job, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]*jobs.Job, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)
