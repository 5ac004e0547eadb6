package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
)

type fakeClassifier struct {
	result *domain.Classification
	err    error
	calls  atomic.Int32
}

func (f *fakeClassifier) Classify(ctx context.Context, request string) (*domain.Classification, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type fakeDecomposer struct {
	instructions []string
	err          error
	calls        atomic.Int32
}

func (f *fakeDecomposer) Decompose(ctx context.Context, request string) ([]string, error) {
	f.calls.Add(1)
	return f.instructions, f.err
}

// fakeRetriever answers in random order and fails for queries listed in fail
type fakeRetriever struct {
	fail  map[string]bool
	calls atomic.Int32
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	f.calls.Add(1)
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	if f.fail[query] {
		return nil, errors.New("index unavailable")
	}
	return []domain.Match{{ID: "doc-" + query, Text: "evidence for " + query}}, nil
}

type fakeSynthesizer struct {
	mu          sync.Mutex
	err         error
	seen        []domain.Evidence
	corrections []domain.CorrectionRequest
	calls       atomic.Int32
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.Artifact, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.seen = req.Evidence
	f.mu.Unlock()
	return &domain.Artifact{Source: "v0", Name: "ProjectileScene"}, nil
}

func (f *fakeSynthesizer) Correct(ctx context.Context, req domain.CorrectionRequest) (*domain.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrections = append(f.corrections, req)
	return &domain.Artifact{Source: req.Previous.Source + "+fix", Name: req.Previous.Name}, nil
}

// fakeExecutor fails the first failures calls, then succeeds
type fakeExecutor struct {
	failures int
	err      error
	calls    atomic.Int32
}

func (f *fakeExecutor) Execute(ctx context.Context, a domain.Artifact, timeout time.Duration) (domain.ExecutionOutcome, error) {
	n := int(f.calls.Add(1))
	if f.err != nil {
		return domain.ExecutionOutcome{}, f.err
	}
	if n <= f.failures {
		return domain.Failure("Traceback: NameError in " + a.Name), nil
	}
	return domain.Success("https://cdn.example.test/" + a.Name + ".mp4"), nil
}

type nopMetrics struct{}

func (nopMetrics) RecordJobSubmitted()                              {}
func (nopMetrics) RecordJobCompleted(string, time.Duration)         {}
func (nopMetrics) SetActiveJobs(int)                                {}
func (nopMetrics) RecordNodeExecuted(string, string, time.Duration) {}
func (nopMetrics) RecordFanOut(int)                                 {}
func (nopMetrics) RecordRetry()                                     {}
func (nopMetrics) RecordLLMCall(string, int, int, time.Duration)    {}
func (nopMetrics) RecordExecution(string, time.Duration)            {}
