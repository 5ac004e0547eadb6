package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"go.uber.org/zap"
)

// Pool runs every job on its own goroutine and tracks the runs in flight.
// It places no cap on the number of concurrent runs.
type Pool struct {
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	mu      sync.Mutex
	runs    map[string]*run
	closing bool
	wg      sync.WaitGroup
}

// run is one job in flight
type run struct {
	jobID     string
	startedAt time.Time
}

// RunStatus describes a run in flight
type RunStatus struct {
	JobID     string
	StartedAt time.Time
}

// NewPool creates a new job pool
func NewPool(metrics ports.MetricsCollector, logger *zap.Logger, healthCheckInterval time.Duration) *Pool {
	pool := &Pool{
		metrics: metrics,
		logger:  logger,
		runs:    make(map[string]*run),
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the health monitor
func (p *Pool) Start() error {
	p.logger.Info("starting job pool")
	p.health.Start()
	return nil
}

// Go runs fn for jobID on a new goroutine. The context passed to fn is not
// cancelled by shutdown; runs are waited for instead.
func (p *Pool) Go(jobID string, fn func(ctx context.Context)) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return domain.ErrShuttingDown
	}
	if _, exists := p.runs[jobID]; exists {
		p.mu.Unlock()
		return fmt.Errorf("job %s is already running", jobID)
	}
	p.runs[jobID] = &run{jobID: jobID, startedAt: time.Now()}
	active := len(p.runs)
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.SetActiveJobs(active)

	go func() {
		defer p.wg.Done()
		defer p.finish(jobID)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("job run panicked",
					zap.String("job_id", jobID),
					zap.Any("panic", r))
			}
		}()

		fn(context.Background())
	}()

	return nil
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Active returns the number of runs in flight
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runs)
}

// GetStatus returns the runs in flight
func (p *Pool) GetStatus() []RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := make([]RunStatus, 0, len(p.runs))
	for _, r := range p.runs {
		status = append(status, RunStatus{JobID: r.jobID, StartedAt: r.startedAt})
	}
	return status
}

// Accepting reports whether new runs are accepted
func (p *Pool) Accepting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closing
}

// Shutdown stops accepting runs and waits for the runs in flight
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down job pool", zap.Int("active", p.Active()))

	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()

	p.health.Stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("job pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout with %d jobs still running", p.Active())
	}
}

func (p *Pool) finish(jobID string) {
	p.mu.Lock()
	delete(p.runs, jobID)
	active := len(p.runs)
	p.mu.Unlock()

	p.metrics.SetActiveJobs(active)
}
