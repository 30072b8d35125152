package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the reelgen service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8000"`
	GRPCPort int    `env:"GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Process topology. Role selects which components this process hosts,
	// Dispatcher selects how stage jobs reach the workers.
	Role       string `env:"ROLE" envDefault:"all"`
	Dispatcher string `env:"DISPATCHER" envDefault:"inline"`

	// Backing services. An empty URL selects the in-memory adapter.
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Media storage configuration
	Media MediaConfig

	// Pipeline configuration
	Pipeline PipelineConfig

	// LLM configuration
	LLM LLMConfig

	// Auth configuration
	Auth AuthConfig

	// Timeouts
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// MediaConfig holds media storage configuration
type MediaConfig struct {
	Provider      string `env:"MEDIA_PROVIDER" envDefault:"local"`
	OutputDir     string `env:"OUTPUT_DIR" envDefault:"./outputs"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8000"`

	// MinIO settings, used when Provider is "minio"
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"reelgen"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

// PipelineConfig holds stage execution configuration
type PipelineConfig struct {
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	StageTimeout      time.Duration `env:"STAGE_TIMEOUT" envDefault:"10m"`
	QAMaxRetries      int           `env:"QA_MAX_RETRIES" envDefault:"1"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"stub"`

	// Anthropic settings, used when Provider is "anthropic"
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20241022"`

	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`
}

// AuthConfig holds token issuing and verification configuration
type AuthConfig struct {
	Secret    string        `env:"AUTH_SECRET" envDefault:"reelgen-dev-secret"`
	TokenTTL  time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	DevTokens bool          `env:"AUTH_DEV_TOKENS" envDefault:"true"`
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
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate topology
	switch c.Role {
	case "all", "api", "worker":
	default:
		return fmt.Errorf("invalid role: %s (must be all, api, or worker)", c.Role)
	}
	switch c.Dispatcher {
	case "inline", "asynq":
	default:
		return fmt.Errorf("invalid dispatcher: %s (must be inline or asynq)", c.Dispatcher)
	}
	if c.Dispatcher == "asynq" && c.RedisURL == "" {
		return fmt.Errorf("asynq dispatcher requires REDIS_URL")
	}
	if c.Role == "worker" && c.Dispatcher != "asynq" {
		return fmt.Errorf("worker role requires the asynq dispatcher")
	}

	// Validate media config
	switch c.Media.Provider {
	case "local":
		if c.Media.OutputDir == "" {
			return fmt.Errorf("output directory is required for local media storage")
		}
	case "minio":
		if c.Media.MinioEndpoint == "" {
			return fmt.Errorf("MinIO endpoint is required for minio media storage")
		}
		if c.Media.MinioAccessKey == "" || c.Media.MinioSecretKey == "" {
			return fmt.Errorf("MinIO credentials are required for minio media storage")
		}
		if c.Media.MinioBucket == "" {
			return fmt.Errorf("MinIO bucket is required for minio media storage")
		}
	default:
		return fmt.Errorf("invalid media provider: %s (must be local or minio)", c.Media.Provider)
	}

	// Validate pipeline config
	if c.Pipeline.WorkerConcurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1")
	}
	if c.Pipeline.QAMaxRetries < 0 {
		return fmt.Errorf("QA max retries must not be negative")
	}

	// Validate LLM config
	switch c.LLM.Provider {
	case "stub":
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic API key is required when LLM provider is anthropic")
		}
	default:
		return fmt.Errorf("invalid LLM provider: %s (must be stub or anthropic)", c.LLM.Provider)
	}

	// Validate auth config
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token TTL must be positive")
	}

	// Validate log level
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

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// RunsAPI reports whether this process serves the HTTP and WebSocket APIs
func (c *Config) RunsAPI() bool {
	return c.Role == "all" || c.Role == "api"
}

// RunsWorker reports whether this process executes stage jobs
func (c *Config) RunsWorker() bool {
	return c.Role == "all" || c.Role == "worker"
}
