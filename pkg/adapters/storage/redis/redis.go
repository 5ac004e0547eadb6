package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "scenegen:job:"

// JobStore implements ports.JobStore using Redis. Every write refreshes the
// record's TTL; a zero TTL keeps records forever.
type JobStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewJobStore creates a new Redis job store
func NewJobStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *JobStore {
	return &JobStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Create inserts a new job; it fails if the id already exists
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.client.SetNX(ctx, getJobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if !ok {
		return fmt.Errorf("job already exists: %s", job.ID)
	}

	s.logger.Debug("job created", zap.String("job_id", job.ID))
	return nil
}

// Update replaces the record of an existing job
func (s *JobStore) Update(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.client.SetXX(ctx, getJobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, job.ID)
	}

	s.logger.Debug("job saved",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)))
	return nil
}

// Get returns the job or domain.ErrJobNotFound
func (s *JobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, getJobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// List returns all stored jobs. Records that expire or fail to decode
// between the scan and the read are skipped.
func (s *JobStore) List(ctx context.Context) ([]*domain.Job, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	jobs := make([]*domain.Job, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var job domain.Job
		if err := json.Unmarshal(data, &job); err != nil {
			s.logger.Warn("skipping undecodable job record",
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// getJobKey returns the Redis key for a job
func getJobKey(jobID string) string {
	return keyPrefix + jobID
}
