package ports

import (
	"context"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
)

// JobStore is the job registry shared by all running jobs
type JobStore interface {
	// Create inserts a new job; it fails if the id already exists
	Create(ctx context.Context, job *domain.Job) error
	// Update replaces the stored record for an existing job
	Update(ctx context.Context, job *domain.Job) error
	// Get returns a copy of the job or domain.ErrJobNotFound
	Get(ctx context.Context, id string) (*domain.Job, error)
	// List returns copies of all stored jobs
	List(ctx context.Context) ([]*domain.Job, error)
}

// EventHandler handles one event delivered by the bus
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes and delivers job lifecycle events
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe delivers events until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records job and pipeline metrics
type MetricsCollector interface {
	RecordJobSubmitted()
	RecordJobCompleted(status string, duration time.Duration)
	SetActiveJobs(count int)
	RecordNodeExecuted(node, status string, duration time.Duration)
	RecordFanOut(width int)
	RecordRetry()
	RecordLLMCall(model string, inputTokens, outputTokens int, latency time.Duration)
	RecordExecution(outcome string, duration time.Duration)
}
