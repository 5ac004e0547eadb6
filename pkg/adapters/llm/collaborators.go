package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"go.uber.org/zap"
)

// Options tune the completion requests sent by the collaborators
type Options struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	MaxInstructions int
}

func (o Options) request(system, user string) *domain.LLMRequest {
	return &domain.LLMRequest{
		Model:       o.Model,
		System:      system,
		Messages:    []domain.Message{{Role: "user", Content: user}},
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
}

// Classifier implements ports.Classifier
type Classifier struct {
	client ports.LLMClient
	opts   Options
	logger *zap.Logger
}

// NewClassifier creates a new LLM classifier
func NewClassifier(client ports.LLMClient, opts Options, logger *zap.Logger) *Classifier {
	return &Classifier{client: client, opts: opts, logger: logger}
}

// Classify decides whether the request is answered by generation or by a
// direct reply
func (c *Classifier) Classify(ctx context.Context, request string) (*domain.Classification, error) {
	resp, err := c.client.GenerateCompletion(ctx, c.opts.request(classifySystemPrompt, request))
	if err != nil {
		return nil, err
	}

	var out struct {
		WantsGeneration bool   `json:"wants_generation"`
		DirectReply     string `json:"direct_reply"`
	}
	if err := decodeReply(resp.Content, &out); err != nil {
		return nil, err
	}

	if !out.WantsGeneration && strings.TrimSpace(out.DirectReply) == "" {
		return nil, errors.New("classification declined generation without a reply")
	}

	c.logger.Debug("request classified", zap.Bool("wants_generation", out.WantsGeneration))

	return &domain.Classification{
		WantsGeneration: out.WantsGeneration,
		DirectReply:     out.DirectReply,
	}, nil
}

// Decomposer implements ports.Decomposer
type Decomposer struct {
	client ports.LLMClient
	opts   Options
	logger *zap.Logger
}

// NewDecomposer creates a new LLM decomposer
func NewDecomposer(client ports.LLMClient, opts Options, logger *zap.Logger) *Decomposer {
	if opts.MaxInstructions < 1 {
		opts.MaxInstructions = 10
	}
	return &Decomposer{client: client, opts: opts, logger: logger}
}

// Decompose splits the request into instructions. Bounds are enforced by
// the caller.
func (d *Decomposer) Decompose(ctx context.Context, request string) ([]string, error) {
	system := fmt.Sprintf(decomposeSystemPrompt, d.opts.MaxInstructions)
	resp, err := d.client.GenerateCompletion(ctx, d.opts.request(system, request))
	if err != nil {
		return nil, err
	}

	var out struct {
		Instructions []string `json:"instructions"`
	}
	if err := decodeReply(resp.Content, &out); err != nil {
		return nil, err
	}

	d.logger.Debug("request decomposed", zap.Int("instructions", len(out.Instructions)))
	return out.Instructions, nil
}

// Synthesizer implements ports.Synthesizer
type Synthesizer struct {
	client ports.LLMClient
	opts   Options
	logger *zap.Logger
}

// NewSynthesizer creates a new LLM synthesizer
func NewSynthesizer(client ports.LLMClient, opts Options, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{client: client, opts: opts, logger: logger}
}

// Synthesize writes a first artifact from the ordered evidence
func (s *Synthesizer) Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.Artifact, error) {
	var b strings.Builder
	writeRequest(&b, req.Request)
	writeEvidence(&b, req.Evidence)

	return s.generate(ctx, synthesizeSystemPrompt, b.String())
}

// Correct rewrites the previous artifact using the execution diagnostic
func (s *Synthesizer) Correct(ctx context.Context, req domain.CorrectionRequest) (*domain.Artifact, error) {
	var b strings.Builder
	writeRequest(&b, req.Request)
	writeEvidence(&b, req.Evidence)
	fmt.Fprintf(&b, "## Program (scene %s)\n```python\n%s\n```\n\n", req.Previous.Name, req.Previous.Source)
	fmt.Fprintf(&b, "## Render error\n```\n%s\n```\n", req.Diagnostic)

	return s.generate(ctx, correctSystemPrompt, b.String())
}

func (s *Synthesizer) generate(ctx context.Context, system, user string) (*domain.Artifact, error) {
	resp, err := s.client.GenerateCompletion(ctx, s.opts.request(system, user))
	if err != nil {
		return nil, err
	}

	var out domain.Artifact
	if err := decodeReply(resp.Content, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Source) == "" {
		return nil, errors.New("reply has no source")
	}
	out.Name = strings.TrimSpace(out.Name)

	s.logger.Debug("artifact generated",
		zap.String("name", out.Name),
		zap.Int("source_bytes", len(out.Source)))

	return &out, nil
}

func writeRequest(b *strings.Builder, request string) {
	fmt.Fprintf(b, "## Request\n%s\n\n", request)
}

func writeEvidence(b *strings.Builder, evidence []domain.Evidence) {
	for i, ev := range evidence {
		fmt.Fprintf(b, "## Step %d\n%s\n", i+1, ev.Instruction)
		if len(ev.Matches) == 0 {
			b.WriteString("(no reference documentation found)\n\n")
			continue
		}
		for _, m := range ev.Matches {
			fmt.Fprintf(b, "### Reference %s\n%s\n", m.ID, m.Text)
		}
		b.WriteString("\n")
	}
}
