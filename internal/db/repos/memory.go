package repos

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/celestiaorg/maasprov/internal/db/models"
)

// MemoryJobRepository keeps provisioning jobs in process memory. Jobs are lost on restart.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*memoryEntry
	seq  uint64
	now  func() time.Time
}

type memoryEntry struct {
	seq uint64
	job *models.ProvisioningJob
}

// NewMemoryJobRepository creates an empty in-memory job repository
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*memoryEntry),
		now:  time.Now,
	}
}

// Create stores a new pending job and returns a snapshot of it
func (r *MemoryJobRepository) Create(ctx context.Context, config models.JobConfig, validation *models.ResourceValidation) (*models.ProvisioningJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := NewJobID()
	for r.jobs[id] != nil {
		id = NewJobID()
	}

	r.seq++
	job := models.NewProvisioningJob(id, config, validation, r.now())
	r.jobs[id] = &memoryEntry{seq: r.seq, job: job}
	return job.Clone(), nil
}

// Get returns a snapshot of the job with the given ID
func (r *MemoryJobRepository) Get(ctx context.Context, id string) (*models.ProvisioningJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[id]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return entry.job.Clone(), nil
}

// List returns snapshots sorted by creation time, newest first.
// Jobs created within the same clock tick keep submission order (newest first).
func (r *MemoryJobRepository) List(ctx context.Context, opts *models.ListOptions) ([]*models.ProvisioningJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*memoryEntry, 0, len(r.jobs))
	for _, entry := range r.jobs {
		if opts != nil && opts.Status != models.JobStatusUnknown && entry.job.Status != opts.Status {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.seq > b.seq
	})

	limit := opts.EffectiveLimit()
	if len(entries) > limit {
		entries = entries[:limit]
	}

	jobs := make([]*models.ProvisioningJob, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, entry.job.Clone())
	}
	return jobs, nil
}

// Count returns the number of jobs in the repository
func (r *MemoryJobRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.jobs)), nil
}

// Update applies fn to the stored job under the write lock and returns the
// resulting snapshot. Readers never observe a half-applied fn.
func (r *MemoryJobRepository) Update(ctx context.Context, id string, fn func(*models.ProvisioningJob) error) (*models.ProvisioningJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[id]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	if entry.job.Status.IsTerminal() {
		return nil, models.ErrJobTerminal
	}

	working := entry.job.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Touch(r.now())
	entry.job = working
	return working.Clone(), nil
}
