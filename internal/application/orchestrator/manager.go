package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/scenegen/internal/application/graph"
	"github.com/aescanero/scenegen/internal/application/pipeline"
	"github.com/aescanero/scenegen/internal/application/workers"
	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes one job's request through the pipeline
type Runner interface {
	Run(ctx context.Context, jobID, req string, opts ...graph.RunOption) (*pipeline.Result, error)
	RetryBudget() int
}

// Manager accepts jobs, runs them in the background and answers status queries
type Manager struct {
	store    ports.JobStore
	eventBus ports.EventBus
	metrics  ports.MetricsCollector
	runner   Runner
	pool     *workers.Pool
	logger   *zap.Logger
}

// NewManager creates a new job manager
func NewManager(
	store ports.JobStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	runner Runner,
	pool *workers.Pool,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		store:    store,
		eventBus: eventBus,
		metrics:  metrics,
		runner:   runner,
		pool:     pool,
		logger:   logger,
	}
}

// Submit registers a queued job and schedules its run. It returns as soon
// as the job is registered.
func (m *Manager) Submit(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ErrEmptyPrompt
	}
	if !m.pool.Accepting() {
		return "", domain.ErrShuttingDown
	}

	job := domain.NewJob(uuid.New().String(), prompt)
	if err := m.store.Create(ctx, job); err != nil {
		m.logger.Error("failed to register job",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return "", fmt.Errorf("failed to register job: %w", err)
	}

	m.metrics.RecordJobSubmitted()
	m.publish(ctx, domain.TopicJobEvents, domain.EventTypeJobSubmitted, job.ID, "", nil)

	if err := m.pool.Go(job.ID, func(runCtx context.Context) { m.run(runCtx, job) }); err != nil {
		m.logger.Error("failed to schedule job",
			zap.String("job_id", job.ID),
			zap.Error(err))
		// the job is already registered, so it must still reach a terminal status
		if startErr := job.Start(); startErr == nil {
			m.finish(ctx, job, "", err)
		}
		return "", fmt.Errorf("failed to schedule job: %w", err)
	}

	m.logger.Info("job submitted", zap.String("job_id", job.ID))
	return job.ID, nil
}

// GetStatus returns a snapshot of the job or domain.ErrJobNotFound
func (m *Manager) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// HealthCheck reports liveness. It does not probe collaborators or storage.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return nil
}

// Shutdown stops accepting jobs and waits for the runs in flight
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down job manager")
	return m.pool.Shutdown(ctx)
}

// run drives one job from queued to a terminal status
func (m *Manager) run(ctx context.Context, job *domain.Job) {
	logger := m.logger.With(zap.String("job_id", job.ID))

	if err := job.Start(); err != nil {
		logger.Error("failed to start job", zap.Error(err))
		return
	}
	if err := m.store.Update(ctx, job.Clone()); err != nil {
		logger.Error("failed to save running job", zap.Error(err))
	}
	m.publish(ctx, domain.TopicJobEvents, domain.EventTypeJobRunning, job.ID, "", nil)

	var (
		result *pipeline.Result
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", graph.ErrNodePanic, r)
			}
		}()
		result, err = m.runner.Run(ctx, job.ID, job.Prompt,
			graph.WithObserver(&jobObserver{manager: m, jobID: job.ID}))
	}()

	if err != nil {
		if errors.Is(err, domain.ErrBudgetExhausted) {
			job.RetryCount = m.runner.RetryBudget()
		}
		m.finish(ctx, job, "", err)
		return
	}

	job.RetryCount = result.RetryCount
	m.finish(ctx, job, result.Output, nil)
}

// finish moves the job to its terminal status and records it
func (m *Manager) finish(ctx context.Context, job *domain.Job, output string, runErr error) {
	logger := m.logger.With(zap.String("job_id", job.ID))

	var (
		transitionErr error
		eventType     domain.EventType
		data          map[string]interface{}
	)
	if runErr == nil {
		transitionErr = job.Succeed(output)
		eventType = domain.EventTypeJobSucceeded
		data = map[string]interface{}{"result": output, "retry_count": job.RetryCount}
		logger.Info("job succeeded", zap.Int("retry_count", job.RetryCount))
	} else {
		message := safeMessage(runErr)
		transitionErr = job.Fail(message)
		eventType = domain.EventTypeJobFailed
		data = map[string]interface{}{"error": message, "retry_count": job.RetryCount}
		logger.Warn("job failed",
			zap.Int("retry_count", job.RetryCount),
			zap.Error(runErr))
	}
	if transitionErr != nil {
		logger.Error("failed to complete job", zap.Error(transitionErr))
		return
	}

	if err := m.store.Update(ctx, job.Clone()); err != nil {
		logger.Error("failed to save completed job", zap.Error(err))
	}

	var duration time.Duration
	if job.StartedAt != nil && job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(*job.StartedAt)
	}
	m.metrics.RecordJobCompleted(string(job.Status), duration)
	m.publish(ctx, domain.TopicJobEvents, eventType, job.ID, "", data)
}

// safeMessage maps a run error to the message shown to callers. Raw
// diagnostics stay in the logs.
func safeMessage(err error) string {
	if errors.Is(err, domain.ErrBudgetExhausted) || errors.Is(err, graph.ErrStepLimitExceeded) {
		return domain.MessageTooComplex
	}
	return domain.MessageInternal
}

// publish sends an event; delivery failures are logged and never fail a job
func (m *Manager) publish(ctx context.Context, topic string, eventType domain.EventType, jobID, node string, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		JobID:     jobID,
		Node:      node,
		Timestamp: time.Now(),
		Data:      data,
	}

	if err := m.eventBus.Publish(ctx, topic, event); err != nil {
		m.logger.Warn("failed to publish event",
			zap.String("job_id", jobID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

// List returns all jobs the store still holds
func (m *Manager) List(ctx context.Context) ([]*domain.Job, error) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
