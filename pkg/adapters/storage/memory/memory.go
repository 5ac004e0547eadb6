package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/scenegen/pkg/domain"
)

// JobStore implements ports.JobStore using an in-memory map.
// Records are never evicted.
type JobStore struct {
	jobs map[string]*domain.Job
	mu   sync.RWMutex
}

// NewJobStore creates a new in-memory job store
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*domain.Job),
	}
}

// Create inserts a new job
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Update replaces the record of an existing job
func (s *JobStore) Update(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a copy of the job
func (s *JobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

// List returns copies of all jobs
func (s *JobStore) List(ctx context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	return jobs, nil
}
