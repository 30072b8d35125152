package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aescanero/reelgen/internal/application/orchestrator"
)

// healthRefreshInterval is how often the serving status is reconciled with
// orchestrator readiness.
const healthRefreshInterval = 5 * time.Second

// Server represents the gRPC API server
type Server struct {
	server       *grpc.Server
	listener     net.Listener
	health       *health.Server
	orchestrator *orchestrator.Manager
	logger       *zap.Logger
	done         chan struct{}
}

// Config holds gRPC server configuration
type Config struct {
	Port         int
	Orchestrator *orchestrator.Manager
	Logger       *zap.Logger
}

// NewServer creates a new gRPC server
func NewServer(cfg *Config) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		server:       grpcServer,
		listener:     listener,
		health:       healthServer,
		orchestrator: cfg.Orchestrator,
		logger:       cfg.Logger,
		done:         make(chan struct{}),
	}

	// The run service registration point stays open; clients use the HTTP
	// API until the proto surface lands.

	s.refreshHealth()
	return s, nil
}

// Addr returns the listener address, useful when the port was 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start starts the gRPC server
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.listener.Addr().String()))

	go s.healthLoop()

	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	close(s.done)
	s.health.Shutdown()
	s.server.GracefulStop()

	s.logger.Info("gRPC server shut down complete")
	return nil
}

// healthLoop keeps the serving status in sync with orchestrator readiness.
func (s *Server) healthLoop() {
	ticker := time.NewTicker(healthRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.refreshHealth()
		}
	}
}

func (s *Server) refreshHealth() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.orchestrator.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}
