package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// DefaultModel is used when neither the client nor the request names a model
const DefaultModel = "claude-sonnet-4-5"

// Config holds Anthropic client settings
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
}

// Client implements ports.LLMClient with the Anthropic Messages API
type Client struct {
	api     anthropic.Client
	model   string
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewClient creates a new Anthropic client
func NewClient(cfg Config, metrics ports.MetricsCollector, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		api:     anthropic.NewClient(opts...),
		model:   model,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// GenerateCompletion sends one Messages API request and joins the text blocks
// of the reply
func (c *Client) GenerateCompletion(ctx context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case "user":
			messages = append(messages, anthropic.NewUserMessage(block))
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			return nil, fmt.Errorf("unsupported message role: %q", m.Role)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	start := time.Now()
	msg, err := c.api.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("anthropic request failed",
			zap.String("model", model),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, fmt.Errorf("failed to call anthropic: %w", err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	resp := &domain.LLMResponse{
		Content:      content.String(),
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}

	c.metrics.RecordLLMCall(model, resp.InputTokens, resp.OutputTokens, latency)
	c.logger.Debug("anthropic request completed",
		zap.String("model", resp.Model),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Duration("latency", latency))

	return resp, nil
}
