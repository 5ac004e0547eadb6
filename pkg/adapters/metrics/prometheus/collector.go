package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	jobsSubmitted prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	activeJobs    prometheus.Gauge
	jobDuration   *prometheus.HistogramVec
	nodesExecuted *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	fanOutWidth   prometheus.Histogram
	retries       prometheus.Counter
	llmCalls      *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	executions    *prometheus.CounterVec
	executionTime *prometheus.HistogramVec
}

// NewCollector creates a collector whose metrics are registered on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		jobsSubmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scenegen_jobs_submitted_total",
				Help: "Total number of jobs submitted",
			},
		),
		jobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenegen_jobs_completed_total",
				Help: "Total number of jobs that reached a terminal status",
			},
			[]string{"status"},
		),
		activeJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scenegen_active_jobs",
				Help: "Number of jobs currently running",
			},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scenegen_job_duration_seconds",
				Help:    "Job run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		nodesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenegen_nodes_executed_total",
				Help: "Total number of node executions",
			},
			[]string{"node", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scenegen_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"node"},
		),
		fanOutWidth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scenegen_fanout_width",
				Help:    "Number of parallel units spawned per fan-out",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
		),
		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scenegen_correction_cycles_total",
				Help: "Total number of correction cycles",
			},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenegen_llm_calls_total",
				Help: "Total number of LLM API calls",
			},
			[]string{"model"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenegen_llm_tokens_total",
				Help: "Total number of LLM tokens used",
			},
			[]string{"model", "type"},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scenegen_llm_latency_seconds",
				Help:    "LLM API call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60},
			},
			[]string{"model"},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenegen_sandbox_executions_total",
				Help: "Total number of sandbox executions",
			},
			[]string{"outcome"},
		),
		executionTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scenegen_sandbox_duration_seconds",
				Help:    "Sandbox execution duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
	}
}

// RecordJobSubmitted counts a submitted job
func (c *Collector) RecordJobSubmitted() {
	c.jobsSubmitted.Inc()
}

// RecordJobCompleted counts a terminal job and observes its run time
func (c *Collector) RecordJobCompleted(status string, duration time.Duration) {
	c.jobsCompleted.WithLabelValues(status).Inc()
	c.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetActiveJobs sets the number of running jobs
func (c *Collector) SetActiveJobs(count int) {
	c.activeJobs.Set(float64(count))
}

// RecordNodeExecuted counts a node execution and observes its duration
func (c *Collector) RecordNodeExecuted(node, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(node, status).Inc()
	c.nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
}

// RecordFanOut observes the width of a fan-out
func (c *Collector) RecordFanOut(width int) {
	c.fanOutWidth.Observe(float64(width))
}

// RecordRetry counts a correction cycle
func (c *Collector) RecordRetry() {
	c.retries.Inc()
}

// RecordLLMCall counts an LLM call with its token usage and latency
func (c *Collector) RecordLLMCall(model string, inputTokens, outputTokens int, latency time.Duration) {
	c.llmCalls.WithLabelValues(model).Inc()
	c.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	c.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	c.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordExecution counts a sandbox execution by outcome
func (c *Collector) RecordExecution(outcome string, duration time.Duration) {
	c.executions.WithLabelValues(outcome).Inc()
	c.executionTime.WithLabelValues(outcome).Observe(duration.Seconds())
}
