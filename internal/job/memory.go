package job

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in a map. Jobs are lost on restart, together
// with the temp files they point to.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]*Job)}
}

// Save stores a clone of job, replacing any previous version.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	snapshot := job.Clone()

	r.mu.Lock()
	r.jobs[snapshot.ID] = snapshot
	r.mu.Unlock()
	return nil
}

// FindByID retrieves a clone of the job with the given ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// Update runs fn on a clone of the stored job while holding the write lock,
// so no Save can interleave between the read and the write.
func (r *MemoryRepository) Update(_ context.Context, id string, fn func(*Job) error) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.jobs[id] = next.Clone()
	return next, nil
}

// List returns clones of all jobs, oldest first. Jobs created in the same
// instant are ordered by ID.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(result, byCreation)
	return result, nil
}

// Prune deletes COMPLETED and FAILED jobs whose CompletedAt is before cutoff.
func (r *MemoryRepository) Prune(_ context.Context, cutoff time.Time) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned []*Job
	for id, job := range r.jobs {
		if !job.Status.IsTerminal() || !job.CompletedAt.Before(cutoff) {
			continue
		}
		pruned = append(pruned, job)
		delete(r.jobs, id)
	}

	slices.SortFunc(pruned, byCreation)
	return pruned, nil
}

func byCreation(a, b *Job) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
