package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// JobService is the job manager surface the API needs
type JobService interface {
	Submit(ctx context.Context, prompt string) (string, error)
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context) ([]*domain.Job, error)
	HealthCheck(ctx context.Context) error
}

// StreamHandler serves a live event stream for one job
type StreamHandler interface {
	HandleJobStream(c *gin.Context)
}

// Server represents the HTTP API server
type Server struct {
	router *gin.Engine
	server *http.Server
	jobs   JobService
	logger *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port int
	Jobs JobService
	// Metrics serves /metrics; nil uses the default Prometheus registry
	Metrics http.Handler
	// MediaDir, when set, is served under /media
	MediaDir string
	Logger   *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router: router,
		jobs:   cfg.Jobs,
		logger: cfg.Logger,
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	s.setupRoutes(metrics)
	if cfg.MediaDir != "" {
		router.Static("/media", cfg.MediaDir)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/jobs", s.handleSubmitJob)
		v1.GET("/jobs", s.handleListJobs)
		v1.GET("/jobs/:id", s.handleGetJob)
	}

	// routes kept for existing clients
	s.router.POST("/run-task", s.handleRunTask)
	s.router.GET("/status/:id", s.handleTaskStatus)
}

// SetupWebSocket adds the job event stream route
func (s *Server) SetupWebSocket(handler StreamHandler) {
	s.router.GET("/api/v1/jobs/:id/ws", handler.HandleJobStream)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
