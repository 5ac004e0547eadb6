package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/scenegen/internal/application/graph"
	"github.com/aescanero/scenegen/pkg/domain"
	"go.uber.org/zap"
)

// Node ids
const (
	NodeClassify   = "classify"
	NodeDecompose  = "decompose"
	NodeRetrieve   = "retrieve"
	NodeSynthesize = "synthesize"
	NodeExecute    = "execute"
	NodeCorrect    = "correct"
)

// classify decides whether the request needs generation at all
func (p *Pipeline) classify(ctx context.Context, s graph.State) (graph.Patch, error) {
	c, err := p.collab.Classifier.Classify(ctx, request(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrClassifyFailed, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: no classification returned", domain.ErrClassifyFailed)
	}

	patch := graph.Patch{FieldWantsGeneration: c.WantsGeneration}
	if !c.WantsGeneration {
		patch[FieldDirectReply] = c.DirectReply
	}

	p.logger.Debug("request classified",
		zap.String("job_id", jobID(s)),
		zap.Bool("wants_generation", c.WantsGeneration))

	return patch, nil
}

// routeAfterClassify ends the run for requests that only need a reply
func routeAfterClassify(s graph.State) string {
	if wants, ok := wantsGeneration(s); ok && wants {
		return NodeDecompose
	}
	return graph.End
}

// decompose splits the request into self-contained instructions
func (p *Pipeline) decompose(ctx context.Context, s graph.State) (graph.Patch, error) {
	raw, err := p.collab.Decomposer.Decompose(ctx, request(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecomposeFailed, err)
	}

	cleaned := make([]string, 0, len(raw))
	for _, instr := range raw {
		if instr = strings.TrimSpace(instr); instr != "" {
			cleaned = append(cleaned, instr)
		}
	}

	if len(cleaned) == 0 || len(cleaned) > p.cfg.MaxInstructions {
		return nil, fmt.Errorf("%w: got %d instructions, want 1..%d",
			domain.ErrInvalidInstruction, len(cleaned), p.cfg.MaxInstructions)
	}

	p.logger.Debug("request decomposed",
		zap.String("job_id", jobID(s)),
		zap.Int("instructions", len(cleaned)))

	return graph.Patch{FieldInstructions: cleaned}, nil
}

// fanOutInstructions narrows the state to one view per instruction
func fanOutInstructions(s graph.State) []graph.State {
	instrs := instructions(s)
	views := make([]graph.State, len(instrs))
	for i, instr := range instrs {
		views[i] = graph.State{
			FieldJobID:       jobID(s),
			FieldInstruction: instr,
		}
	}
	return views
}

// retrieve looks up evidence for a single instruction. A failed lookup is
// recorded as an empty match list.
func (p *Pipeline) retrieve(ctx context.Context, s graph.State) (graph.Patch, error) {
	instr := instruction(s)

	matches, err := p.collab.Retriever.Retrieve(ctx, instr, p.cfg.TopK)
	if err != nil {
		p.logger.Warn("retrieval failed, continuing without evidence",
			zap.String("job_id", jobID(s)),
			zap.String("instruction", instr),
			zap.Error(err))
		matches = nil
	}
	if matches == nil {
		matches = []domain.Match{}
	}

	return graph.Patch{
		FieldEvidence: []domain.Evidence{{Instruction: instr, Matches: matches}},
	}, nil
}

// synthesize writes the first version of the artifact
func (p *Pipeline) synthesize(ctx context.Context, s graph.State) (graph.Patch, error) {
	ev, err := barrierEvidence(s)
	if err != nil {
		return nil, err
	}

	a, err := p.collab.Synthesizer.Synthesize(ctx, domain.SynthesisRequest{
		Request:  request(s),
		Evidence: ev,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: no artifact returned", domain.ErrSynthesisFailed)
	}

	p.logger.Debug("artifact synthesized",
		zap.String("job_id", jobID(s)),
		zap.String("artifact_name", a.Name))

	return artifactPatch(a), nil
}

// execute runs the current artifact in the sandbox
func (p *Pipeline) execute(ctx context.Context, s graph.State) (graph.Patch, error) {
	start := time.Now()

	out, err := p.collab.Executor.Execute(ctx, artifact(s), p.cfg.ExecutionTimeout)
	if err != nil {
		return nil, fmt.Errorf("sandbox unavailable: %w", err)
	}

	p.metrics.RecordExecution(string(out.Kind), time.Since(start))

	if !out.Succeeded() {
		p.logger.Info("artifact execution failed",
			zap.String("job_id", jobID(s)),
			zap.Int("retry_count", retryCount(s)),
			zap.Int("retry_budget", p.retry.Budget()))
	}

	return graph.Patch{FieldOutcome: out}, nil
}

// correct rewrites the artifact using the last diagnostic and counts the cycle
func (p *Pipeline) correct(ctx context.Context, s graph.State) (graph.Patch, error) {
	out, _ := outcome(s)
	attempt := retryCount(s) + 1

	a, err := p.collab.Synthesizer.Correct(ctx, domain.CorrectionRequest{
		Request:    request(s),
		Evidence:   orderedEvidence(s),
		Previous:   artifact(s),
		Diagnostic: out.Diagnostic,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: correction %d: %w", domain.ErrSynthesisFailed, attempt, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: correction %d returned no artifact", domain.ErrSynthesisFailed, attempt)
	}

	p.metrics.RecordRetry()
	p.logger.Info("artifact corrected",
		zap.String("job_id", jobID(s)),
		zap.Int("retry_count", attempt))

	patch := artifactPatch(a)
	patch[FieldRetryCount] = attempt
	return patch, nil
}

// barrierEvidence returns the ordered evidence, checking that every
// instruction contributed exactly one entry
func barrierEvidence(s graph.State) ([]domain.Evidence, error) {
	ev := orderedEvidence(s)
	if n := len(instructions(s)); len(ev) != n {
		return nil, fmt.Errorf("malformed state: %d evidence entries for %d instructions", len(ev), n)
	}
	return ev, nil
}

func artifactPatch(a *domain.Artifact) graph.Patch {
	return graph.Patch{
		FieldArtifactSource: a.Source,
		FieldArtifactName:   a.Name,
	}
}
