package llm

import (
	"fmt"
	"time"

	"github.com/aescanero/scenegen/pkg/adapters/llm/anthropic"
	"github.com/aescanero/scenegen/pkg/ports"
	"go.uber.org/zap"
)

// Config holds LLM client configuration
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	Metrics        ports.MetricsCollector
	Logger         *zap.Logger
}

// NewClient creates a new LLM client based on provider
func NewClient(cfg *Config) (ports.LLMClient, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			BaseURL:        cfg.BaseURL,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
		}, cfg.Metrics, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
