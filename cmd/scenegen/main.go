package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/scenegen/internal/application/orchestrator"
	"github.com/aescanero/scenegen/internal/application/pipeline"
	"github.com/aescanero/scenegen/internal/application/workers"
	"github.com/aescanero/scenegen/internal/config"
	eventsmemory "github.com/aescanero/scenegen/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/scenegen/pkg/adapters/events/redis"
	"github.com/aescanero/scenegen/pkg/adapters/llm"
	"github.com/aescanero/scenegen/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/scenegen/pkg/adapters/retrieval"
	retrievalmemory "github.com/aescanero/scenegen/pkg/adapters/retrieval/memory"
	retrievalredis "github.com/aescanero/scenegen/pkg/adapters/retrieval/redis"
	"github.com/aescanero/scenegen/pkg/adapters/sandbox/local"
	storagememory "github.com/aescanero/scenegen/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/scenegen/pkg/adapters/storage/redis"
	"github.com/aescanero/scenegen/pkg/api/grpc"
	"github.com/aescanero/scenegen/pkg/api/http"
	"github.com/aescanero/scenegen/pkg/api/websocket"
	"github.com/aescanero/scenegen/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting scenegen",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	registry := promclient.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := prometheus.NewCollector(registry)

	var jobStore ports.JobStore
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		jobStore = storageredis.NewJobStore(redisClient, cfg.Storage.JobTTL, logger)
	default:
		jobStore = storagememory.NewJobStore()
	}

	var eventBus ports.EventBus
	switch cfg.Events.Backend {
	case config.BackendRedis:
		// no consumer group: every stream client sees every event
		eventBus = eventsredis.NewStreamsEventBus(redisClient, "", fmt.Sprintf("scenegen-%d", os.Getpid()), cfg.Events.StreamMax, logger)
	default:
		eventBus = eventsmemory.NewEventBus(logger)
	}

	retriever, err := newRetriever(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to create retriever", zap.Error(err))
	}

	llmClient, err := llm.NewClient(&llm.Config{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		BaseURL:        cfg.LLM.BaseURL,
		RequestTimeout: cfg.LLM.RequestTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		Metrics:        metricsCollector,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}

	llmOpts := llm.Options{
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		MaxInstructions: cfg.Pipeline.MaxInstructions,
	}

	executor, err := local.NewExecutor(local.Config{
		Command:        cfg.Sandbox.CommandArgs(),
		WorkRoot:       cfg.Sandbox.WorkRoot,
		MediaDir:       cfg.Sandbox.MediaDir,
		PublicBaseURL:  cfg.Sandbox.PublicBaseURL,
		Quality:        cfg.Sandbox.OutputQuality(),
		DefaultTimeout: cfg.Sandbox.Timeout,
		KeepWorkDirs:   cfg.Sandbox.KeepWorkDirs,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create sandbox executor", zap.Error(err))
	}

	runner, err := pipeline.New(pipeline.Collaborators{
		Classifier:  llm.NewClassifier(llmClient, llmOpts, logger),
		Decomposer:  llm.NewDecomposer(llmClient, llmOpts, logger),
		Retriever:   retriever,
		Synthesizer: llm.NewSynthesizer(llmClient, llmOpts, logger),
		Executor:    executor,
	}, pipeline.Config{
		RetryBudget:      cfg.Pipeline.RetryBudget,
		TopK:             cfg.Pipeline.TopK,
		MaxInstructions:  cfg.Pipeline.MaxInstructions,
		ExecutionTimeout: cfg.Sandbox.Timeout,
		MaxSteps:         cfg.Pipeline.MaxSteps,
	}, metricsCollector, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}

	jobPool := workers.NewPool(metricsCollector, logger, cfg.Workers.HealthCheckInterval)
	if err := jobPool.Start(); err != nil {
		logger.Fatal("failed to start job pool", zap.Error(err))
	}

	manager := orchestrator.NewManager(jobStore, eventBus, metricsCollector, runner, jobPool, logger)

	httpServer := http.NewServer(&http.Config{
		Port:     cfg.HTTPPort,
		Jobs:     manager,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MediaDir: cfg.Sandbox.MediaDir,
		Logger:   logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, manager, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Source: jobPool.Health(),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("scenegen started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("retry_budget", runner.RetryBudget()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.String("retrieval", cfg.Retrieval.Backend))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// stop intake first, then drain the runs in flight
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("job manager shutdown error", zap.Error(err))
	}
	grpcServer.Refresh()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("scenegen shut down complete")
}

// newRetriever builds the configured retrieval index
func newRetriever(ctx context.Context, cfg *config.Config, client *goredis.Client, logger *zap.Logger) (ports.Retriever, error) {
	if cfg.Retrieval.Backend == config.BackendRedis {
		index := retrievalredis.NewIndex(client, logger)
		if cfg.Retrieval.CorpusPath != "" {
			docs, err := retrieval.LoadCorpus(cfg.Retrieval.CorpusPath)
			if err != nil {
				return nil, err
			}
			skipped, err := index.Add(ctx, docs...)
			if err != nil {
				return nil, fmt.Errorf("failed to index corpus: %w", err)
			}
			logger.Info("corpus indexed",
				zap.Int("documents", len(docs)-skipped),
				zap.Int("already_indexed", skipped))
		}
		return index, nil
	}

	start := time.Now()
	docs, err := retrieval.LoadCorpus(cfg.Retrieval.CorpusPath)
	if err != nil {
		return nil, err
	}
	index := retrievalmemory.NewIndex(logger)
	if err := index.Add(docs...); err != nil {
		return nil, fmt.Errorf("failed to index corpus: %w", err)
	}
	logger.Info("corpus loaded",
		zap.String("path", cfg.Retrieval.CorpusPath),
		zap.Int("documents", index.Len()),
		zap.Duration("duration", time.Since(start)))
	return index, nil
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
