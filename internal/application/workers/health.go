package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// longRunThreshold is the age after which a run is reported as long-running
const longRunThreshold = 15 * time.Minute

// HealthMonitor monitors the job pool
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus represents the health status of the job pool
type HealthStatus struct {
	ActiveJobs  int
	LongRunning int
	OldestRun   time.Duration
	Accepting   bool
	Healthy     bool
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the health monitor
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running || h.interval <= 0 {
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})

	go h.run(h.stopCh)
}

// Stop stops the health monitor
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
}

// run is the main health monitoring loop
func (h *HealthMonitor) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// checkHealth logs the pool status
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.logger.Info("job pool health check",
		zap.Int("active", status.ActiveJobs),
		zap.Int("long_running", status.LongRunning),
		zap.Duration("oldest_run", status.OldestRun),
		zap.Bool("accepting", status.Accepting),
		zap.Bool("healthy", status.Healthy))

	h.pool.metrics.SetActiveJobs(status.ActiveJobs)

	if status.LongRunning > 0 {
		h.logger.Warn("jobs running longer than expected",
			zap.Int("count", status.LongRunning),
			zap.Duration("threshold", longRunThreshold))
	}
}

// GetStatus returns the current health status
func (h *HealthMonitor) GetStatus() *HealthStatus {
	now := time.Now()
	runs := h.pool.GetStatus()

	var oldest time.Duration
	var long int
	for _, r := range runs {
		age := now.Sub(r.StartedAt)
		if age > oldest {
			oldest = age
		}
		if age > longRunThreshold {
			long++
		}
	}

	accepting := h.pool.Accepting()

	return &HealthStatus{
		ActiveJobs:  len(runs),
		LongRunning: long,
		OldestRun:   oldest,
		Accepting:   accepting,
		Healthy:     accepting,
	}
}

// IsHealthy returns true if the pool accepts new jobs
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
