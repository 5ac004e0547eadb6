package ports

import (
	"context"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
)

// Classifier decides whether a request should be answered by generation
type Classifier interface {
	Classify(ctx context.Context, request string) (*domain.Classification, error)
}

// Decomposer splits a request into self-contained instructions
type Decomposer interface {
	Decompose(ctx context.Context, request string) ([]string, error)
}

// Retriever returns up to topK matches for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.Match, error)
}

// Synthesizer writes an artifact from evidence and rewrites it after a failed execution
type Synthesizer interface {
	Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.Artifact, error)
	Correct(ctx context.Context, req domain.CorrectionRequest) (*domain.Artifact, error)
}

// Executor runs an artifact in a sandbox.
//
// Execution problems, timeouts included, are reported as a Failure outcome.
// A non-nil error means the sandbox itself could not be used.
type Executor interface {
	Execute(ctx context.Context, artifact domain.Artifact, timeout time.Duration) (domain.ExecutionOutcome, error)
}

// LLMClient is a provider-neutral completion client
type LLMClient interface {
	GenerateCompletion(ctx context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error)
}
