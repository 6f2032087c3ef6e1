package job

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository persists jobs between the HTTP request that creates them and
// the worker that muxes them.
type Repository interface {
	// Save persists a job, replacing an existing job with the same ID.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// Update applies fn to the stored job with the given ID and persists the
	// result atomically. When fn returns an error the stored job is unchanged.
	// Returns ErrJobNotFound if the job does not exist.
	Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error)

	// List returns all jobs ordered by creation time.
	List(ctx context.Context) ([]*Job, error)

	// Prune removes terminal jobs that completed before cutoff and returns
	// them so their files can be released. Queued and running jobs are kept.
	Prune(ctx context.Context, cutoff time.Time) ([]*Job, error)
}
