package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/reelgen/internal/application/orchestrator"
	"github.com/aescanero/reelgen/internal/application/stages"
	"github.com/aescanero/reelgen/internal/application/stages/stub"
	"github.com/aescanero/reelgen/internal/application/workers"
	"github.com/aescanero/reelgen/internal/auth"
	"github.com/aescanero/reelgen/internal/config"
	"github.com/aescanero/reelgen/internal/ports"
	catalogmem "github.com/aescanero/reelgen/pkg/adapters/catalog/memory"
	catalogpg "github.com/aescanero/reelgen/pkg/adapters/catalog/postgres"
	eventsmem "github.com/aescanero/reelgen/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/reelgen/pkg/adapters/events/redis"
	"github.com/aescanero/reelgen/pkg/adapters/llm"
	"github.com/aescanero/reelgen/pkg/adapters/media/local"
	miniomedia "github.com/aescanero/reelgen/pkg/adapters/media/minio"
	"github.com/aescanero/reelgen/pkg/adapters/metrics/prometheus"
	asynqqueue "github.com/aescanero/reelgen/pkg/adapters/queue/asynq"
	storagemem "github.com/aescanero/reelgen/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/reelgen/pkg/adapters/storage/redis"
	"github.com/aescanero/reelgen/pkg/api/grpc"
	"github.com/aescanero/reelgen/pkg/api/http"
	"github.com/aescanero/reelgen/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting reelgen",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("role", cfg.Role))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsCollector := prometheus.NewCollector()

	// Redis client, shared by the run store, event bus, and asynq dispatcher
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		opt, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid Redis URL", zap.Error(err))
		}
		redisClient = goredis.NewClient(opt)

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", opt.Addr))
		metricsCollector.SetComponentUp("redis", true)
	}

	// Run store: Redis when configured, in-memory otherwise
	var store ports.RunStore
	if redisClient != nil {
		store = redisstorage.NewRunStore(redisClient, redisstorage.DefaultTTL, logger)
	} else {
		store = storagemem.NewRunStore()
		logger.Info("using in-memory run store")
	}

	// Run catalog: Postgres when configured, in-memory otherwise
	var catalog ports.RunCatalog
	if cfg.DatabaseURL != "" {
		pg, err := catalogpg.Open(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to open run catalog", zap.Error(err))
		}
		catalog = pg
		logger.Info("connected to Postgres run catalog")
		metricsCollector.SetComponentUp("postgres", true)
	} else {
		catalog = catalogmem.NewCatalog()
		logger.Info("using in-memory run catalog")
	}

	// Event bus: Redis pub/sub carries worker events to the API process;
	// single-process deployments use the in-process bus
	var bus ports.EventBus
	if redisClient != nil {
		bus = redisevents.NewEventBus(redisClient, logger)
	} else {
		bus = eventsmem.NewEventBus()
	}

	// Media store
	var media ports.MediaStore
	var outputDir string
	switch cfg.Media.Provider {
	case "minio":
		m, err := miniomedia.NewStore(
			cfg.Media.MinioEndpoint,
			cfg.Media.MinioAccessKey,
			cfg.Media.MinioSecretKey,
			cfg.Media.MinioBucket,
			cfg.Media.MinioUseSSL,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to create media store", zap.Error(err))
		}
		if err := m.EnsureBucket(ctx); err != nil {
			logger.Fatal("failed to ensure media bucket", zap.Error(err))
		}
		media = m
		logger.Info("using MinIO media store", zap.String("bucket", cfg.Media.MinioBucket))
	default:
		l, err := local.NewStore(cfg.Media.OutputDir, cfg.Media.PublicBaseURL, logger)
		if err != nil {
			logger.Fatal("failed to create media store", zap.Error(err))
		}
		media = l
		outputDir = l.OutputDir()
		logger.Info("using local media store", zap.String("output_dir", outputDir))
	}

	// LLM-backed plot generation when a provider is configured; runs can
	// still force the stub per request
	var llmPlot ports.StageExecutor
	if cfg.LLM.Provider != "stub" {
		llmClient, err := llm.NewClient(&llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.AnthropicAPIKey,
			Model:    cfg.LLM.AnthropicModel,
			Timeout:  cfg.LLM.RequestTimeout,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("failed to create LLM client", zap.Error(err))
		}
		llmPlot = stages.NewLLMPlotExecutor(llmClient, logger)
		logger.Info("plot generation using LLM", zap.String("provider", cfg.LLM.Provider))
	}

	registry := stages.NewRegistry(
		stub.NewPlotExecutor(logger),
		llmPlot,
		stub.NewAssetsExecutor(media, logger),
		stub.NewRenderExecutor(media, logger),
		stub.NewQAExecutor(logger),
	)

	// Initialize application components
	manager := orchestrator.NewManager(
		store,
		catalog,
		bus,
		media,
		registry,
		metricsCollector,
		orchestrator.NewValidator(),
		logger,
		cfg.Pipeline.StageTimeout,
		cfg.Pipeline.QAMaxRetries,
	)

	// Stage dispatch: in-process worker pool, or asynq when API and workers
	// are split across processes
	var pool *workers.Pool
	var queueDispatcher *asynqqueue.Dispatcher
	var queueWorker *asynqqueue.Worker

	switch cfg.Dispatcher {
	case "asynq":
		dispatcher, err := asynqqueue.NewDispatcher(cfg.RedisURL, cfg.Pipeline.StageTimeout, logger)
		if err != nil {
			logger.Fatal("failed to create stage dispatcher", zap.Error(err))
		}
		queueDispatcher = dispatcher
		manager.SetDispatcher(dispatcher)

		if cfg.RunsWorker() {
			worker, err := asynqqueue.NewWorker(
				cfg.RedisURL,
				cfg.Pipeline.WorkerConcurrency,
				manager.ExecuteStage,
				logger,
			)
			if err != nil {
				logger.Fatal("failed to create stage worker", zap.Error(err))
			}
			if err := worker.Start(); err != nil {
				logger.Fatal("failed to start stage worker", zap.Error(err))
			}
			queueWorker = worker
		}
	default:
		pool = workers.NewPool(
			cfg.Pipeline.WorkerConcurrency,
			manager.ExecuteStage,
			metricsCollector,
			logger,
			30*time.Second,
		)
		if err := pool.Start(); err != nil {
			logger.Fatal("failed to start worker pool", zap.Error(err))
		}
		manager.SetDispatcher(pool)
	}

	// API servers
	var httpServer *http.Server
	var grpcServer *grpc.Server
	if cfg.RunsAPI() {
		authService := auth.NewService(cfg.Auth.Secret, cfg.Auth.TokenTTL)

		httpServer = http.NewServer(&http.Config{
			Port:      cfg.HTTPPort,
			Manager:   manager,
			Auth:      authService,
			Logger:    logger,
			DevTokens: cfg.Auth.DevTokens,
			OutputDir: outputDir,
		})

		hub := websocket.NewHub(bus, manager, metricsCollector, logger)
		if err := hub.Start(context.Background()); err != nil {
			logger.Fatal("failed to start WebSocket hub", zap.Error(err))
		}
		httpServer.RegisterWebSocket(hub.HandleRunStream)

		gs, err := grpc.NewServer(&grpc.Config{
			Port:         cfg.GRPCPort,
			Orchestrator: manager,
			Logger:       logger,
		})
		if err != nil {
			logger.Fatal("failed to create gRPC server", zap.Error(err))
		}
		grpcServer = gs

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
	}

	logger.Info("reelgen started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("dispatcher", cfg.Dispatcher),
		zap.String("media_provider", cfg.Media.Provider))

	// Wait for interrupt signal
	<-ctx.Done()
	stop()

	logger.Info("received shutdown signal")

	// Graceful shutdown: stop accepting requests, drain stage workers, then
	// let the orchestrator settle
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
	}

	if queueWorker != nil {
		queueWorker.Shutdown()
	}
	if queueDispatcher != nil {
		if err := queueDispatcher.Close(); err != nil {
			logger.Error("stage dispatcher close error", zap.Error(err))
		}
	}
	if pool != nil {
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Error("worker pool shutdown error", zap.Error(err))
		}
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}
	if err := bus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("reelgen shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
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
