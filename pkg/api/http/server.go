package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/application/orchestrator"
	"github.com/aescanero/reelgen/internal/auth"
)

// Server is the HTTP API: run lifecycle, checkpoint resolution, artifact
// queries, plus health, metrics, and local media serving.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	manager *orchestrator.Manager
	auth    *auth.Service
	logger  *zap.Logger

	devTokens bool
	outputDir string
}

// Config holds HTTP server configuration
type Config struct {
	Port    int
	Manager *orchestrator.Manager
	Auth    *auth.Service
	Logger  *zap.Logger

	// DevTokens enables the development token mint endpoint.
	DevTokens bool

	// OutputDir, when set, is served under /outputs for the local media
	// provider. Empty disables the route.
	OutputDir string
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:    router,
		manager:   cfg.Manager,
		auth:      cfg.Auth,
		logger:    cfg.Logger,
		devTokens: cfg.DevTokens,
		outputDir: cfg.OutputDir,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Local media provider objects
	if s.outputDir != "" {
		s.router.Static("/outputs", s.outputDir)
	}

	// Development token mint, disabled in production config
	if s.devTokens {
		s.router.POST("/api/auth/token", s.handleMintToken)
	}

	// Run lifecycle
	runs := s.router.Group("/api/runs")
	{
		runs.POST("", OptionalAuth(s.auth), s.handleCreateRun)
		runs.GET("", RequireAuth(s.auth), s.handleListRuns)
		runs.GET("/:run_id", s.handleGetRun)
		runs.DELETE("/:run_id", OptionalAuth(s.auth), s.handleDeleteRun)
	}

	// Checkpoint and artifact operations
	v1 := s.router.Group("/api/v1/runs/:run_id", OptionalAuth(s.auth))
	{
		v1.POST("/cancel", s.handleCancelRun)

		v1.GET("/plot-json", s.handleGetPlot)
		v1.POST("/plot-confirm", s.handleConfirmPlot)
		v1.POST("/plot-regenerate", s.handleRegeneratePlot)

		v1.GET("/assets", s.handleGetAssets)
		v1.POST("/assets/confirm", s.handleConfirmAssets)
		v1.POST("/assets/regenerate-image/:scene_id", s.handleRegenerateImage)
		v1.POST("/assets/regenerate-bgm", s.handleRegenerateBGM)

		v1.GET("/layout-config", s.handleGetLayout)
		v1.POST("/layout-confirm", s.handleConfirmLayout)
		v1.POST("/layout-regenerate", s.handleRegenerateLayout)
	}
}

// RegisterWebSocket mounts the run event stream handler at /ws/:run_id.
func (s *Server) RegisterWebSocket(handler gin.HandlerFunc) {
	s.router.GET("/ws/:run_id", handler)
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

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
