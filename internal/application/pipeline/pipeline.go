package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/scenegen/internal/application/graph"
	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"go.uber.org/zap"
)

// DefaultMaxInstructions is the largest instruction list a decomposition may return
const DefaultMaxInstructions = 10

// Config holds pipeline tuning
type Config struct {
	RetryBudget      int
	TopK             int
	MaxInstructions  int
	ExecutionTimeout time.Duration
	// MaxSteps bounds node executions per run; zero derives it from RetryBudget
	MaxSteps int
}

// Collaborators are the external services the nodes call
type Collaborators struct {
	Classifier  ports.Classifier
	Decomposer  ports.Decomposer
	Retriever   ports.Retriever
	Synthesizer ports.Synthesizer
	Executor    ports.Executor
}

func (c Collaborators) validate() error {
	switch {
	case c.Classifier == nil:
		return fmt.Errorf("classifier is required")
	case c.Decomposer == nil:
		return fmt.Errorf("decomposer is required")
	case c.Retriever == nil:
		return fmt.Errorf("retriever is required")
	case c.Synthesizer == nil:
		return fmt.Errorf("synthesizer is required")
	case c.Executor == nil:
		return fmt.Errorf("executor is required")
	}
	return nil
}

// Result is the outcome of a run that ended normally
type Result struct {
	Output      string
	DirectReply bool
	RetryCount  int
	State       graph.State
}

// Pipeline is the request-to-artifact graph with its collaborators
type Pipeline struct {
	graph   *graph.Graph
	collab  Collaborators
	cfg     Config
	retry   *RetryController
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// New builds the pipeline graph
func New(collab Collaborators, cfg Config, metrics ports.MetricsCollector, logger *zap.Logger) (*Pipeline, error) {
	if err := collab.validate(); err != nil {
		return nil, err
	}
	if cfg.TopK < 1 {
		cfg.TopK = 1
	}
	if cfg.MaxInstructions < 1 {
		cfg.MaxInstructions = DefaultMaxInstructions
	}
	if cfg.RetryBudget < 0 {
		return nil, fmt.Errorf("retry budget must not be negative: %d", cfg.RetryBudget)
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps(cfg.RetryBudget)
	}

	p := &Pipeline{
		collab:  collab,
		cfg:     cfg,
		retry:   NewRetryController(cfg.RetryBudget),
		metrics: metrics,
		logger:  logger,
	}

	g, err := graph.NewBuilder(Schema()).
		AddNode(NodeClassify, p.classify).
		AddNode(NodeDecompose, p.decompose).
		AddNode(NodeRetrieve, p.retrieve).
		AddNode(NodeSynthesize, p.synthesize).
		AddNode(NodeExecute, p.execute).
		AddNode(NodeCorrect, p.correct).
		AddConditionalEdge(NodeClassify, routeAfterClassify, NodeDecompose).
		AddFanOut(NodeDecompose, fanOutInstructions, NodeRetrieve, NodeSynthesize).
		AddEdge(NodeSynthesize, NodeExecute).
		AddConditionalEdge(NodeExecute, p.retry.Route, NodeCorrect).
		AddEdge(NodeCorrect, NodeExecute).
		SetEntry(NodeClassify).
		SetMaxSteps(cfg.MaxSteps).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline graph: %w", err)
	}
	p.graph = g

	return p, nil
}

// DefaultMaxSteps is the step count of a run that spends its whole retry
// budget: classify, decompose, synthesize and execute, then correct and
// execute once per cycle. Fan-out units do not count as steps.
func DefaultMaxSteps(budget int) int {
	return 4 + 2*budget
}

// RetryBudget returns the configured number of correction cycles
func (p *Pipeline) RetryBudget() int {
	return p.retry.Budget()
}

// Run executes one job's request on a fresh state.
//
// A run that spends its retry budget returns domain.ErrBudgetExhausted; any
// other error is fatal to the job.
func (p *Pipeline) Run(ctx context.Context, jobID, req string, opts ...graph.RunOption) (*Result, error) {
	final, err := p.graph.Run(ctx, InitialState(jobID, req), opts...)
	if err != nil {
		return nil, err
	}

	if wants, ok := wantsGeneration(final); ok && !wants {
		return &Result{
			Output:      directReply(final),
			DirectReply: true,
			State:       final,
		}, nil
	}

	out, ok := outcome(final)
	switch {
	case !ok:
		return nil, errors.New("malformed state: run ended without an execution outcome")
	case out.Succeeded():
		return &Result{
			Output:     out.Locator,
			RetryCount: retryCount(final),
			State:      final,
		}, nil
	case p.retry.Exhausted(final):
		return nil, fmt.Errorf("%w after %d corrections", domain.ErrBudgetExhausted, retryCount(final))
	default:
		return nil, errors.New("malformed state: run ended on a retryable failure")
	}
}
