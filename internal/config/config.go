package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backend names accepted by the storage, events and retrieval sections
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the scene generation service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"SCENEGEN_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"SCENEGEN_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Redis     RedisConfig
	LLM       LLMConfig
	Pipeline  PipelineConfig
	Sandbox   SandboxConfig
	Storage   StorageConfig
	Events    EventsConfig
	Retrieval RetrievalConfig
	Workers   WorkerConfig
	Timeouts  TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`
	BaseURL  string `env:"LLM_BASE_URL"`

	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`
	MaxRetries     int           `env:"LLM_MAX_RETRIES" envDefault:"2"`

	// Default model settings
	Model       string  `env:"LLM_MODEL" envDefault:"claude-sonnet-4-5"`
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	MaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"4096"`
}

// PipelineConfig holds orchestration tuning
type PipelineConfig struct {
	RetryBudget     int `env:"PIPELINE_RETRY_BUDGET" envDefault:"3"`
	TopK            int `env:"PIPELINE_TOP_K" envDefault:"1"`
	MaxInstructions int `env:"PIPELINE_MAX_INSTRUCTIONS" envDefault:"10"`
	// MaxSteps of zero derives the step limit from the retry budget
	MaxSteps int `env:"PIPELINE_MAX_STEPS" envDefault:"0"`
}

// SandboxConfig holds the execution environment settings
type SandboxConfig struct {
	Command  string `env:"SANDBOX_COMMAND" envDefault:"manim --media_dir {media_dir} -r 640,360 --fps 15 {file} {name}"`
	WorkRoot string `env:"SANDBOX_WORK_ROOT" envDefault:"/tmp/scenegen"`
	MediaDir string `env:"SANDBOX_MEDIA_DIR" envDefault:"/tmp/scenegen/media"`
	// PublicBaseURL is where MediaDir is reachable; the HTTP server serves it at /media
	PublicBaseURL string `env:"SANDBOX_PUBLIC_BASE_URL" envDefault:"http://localhost:8080/media"`
	// Quality names the output folder; empty derives it from the command's -r and --fps
	Quality      string        `env:"SANDBOX_QUALITY"`
	Timeout      time.Duration `env:"SANDBOX_TIMEOUT" envDefault:"120s"`
	KeepWorkDirs bool          `env:"SANDBOX_KEEP_WORK_DIRS" envDefault:"false"`
}

// CommandArgs splits the sandbox command into arguments
func (s SandboxConfig) CommandArgs() []string {
	return strings.Fields(s.Command)
}

// OutputQuality returns the folder name manim renders into, such as
// "360p15" for "-r 640,360 --fps 15". Without those flags it is manim's
// default of 1080p60.
func (s SandboxConfig) OutputQuality() string {
	if s.Quality != "" {
		return s.Quality
	}

	height, fps := "1080", "60"
	args := s.CommandArgs()
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "-r", "--resolution":
			if _, h, ok := strings.Cut(args[i+1], ","); ok && h != "" {
				height = h
			}
		case "--fps", "--frame_rate":
			fps = args[i+1]
		}
	}
	return height + "p" + fps
}

// StorageConfig selects the job registry
type StorageConfig struct {
	Backend string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	JobTTL  time.Duration `env:"STORAGE_JOB_TTL" envDefault:"24h"`
}

// EventsConfig selects the event bus
type EventsConfig struct {
	Backend   string `env:"EVENTS_BACKEND" envDefault:"memory"`
	StreamMax int64  `env:"EVENTS_STREAM_MAX_LEN" envDefault:"10000"`
}

// RetrievalConfig selects the retrieval index
type RetrievalConfig struct {
	Backend    string `env:"RETRIEVAL_BACKEND" envDefault:"memory"`
	CorpusPath string `env:"RETRIEVAL_CORPUS_PATH"`
}

// WorkerConfig holds job pool configuration
type WorkerConfig struct {
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("LLM max tokens must be at least 1")
	}

	if c.Pipeline.RetryBudget < 0 {
		return fmt.Errorf("retry budget must not be negative: %d", c.Pipeline.RetryBudget)
	}
	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("retrieval top-k must be at least 1")
	}
	if c.Pipeline.MaxSteps < 0 {
		return fmt.Errorf("max steps must not be negative: %d", c.Pipeline.MaxSteps)
	}

	if len(c.Sandbox.CommandArgs()) == 0 {
		return fmt.Errorf("sandbox command is required")
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("sandbox timeout must be positive")
	}

	backends := map[string]string{
		"storage":   c.Storage.Backend,
		"events":    c.Events.Backend,
		"retrieval": c.Retrieval.Backend,
	}
	for section, backend := range backends {
		if backend != BackendMemory && backend != BackendRedis {
			return fmt.Errorf("invalid %s backend: %s (must be memory or redis)", section, backend)
		}
	}
	if c.Retrieval.Backend == BackendMemory && c.Retrieval.CorpusPath == "" {
		return fmt.Errorf("retrieval corpus path is required for the memory backend")
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == BackendRedis ||
		c.Events.Backend == BackendRedis ||
		c.Retrieval.Backend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
