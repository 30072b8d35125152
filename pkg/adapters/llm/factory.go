package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/ports"
	"github.com/aescanero/reelgen/pkg/adapters/llm/anthropic"
)

// Config holds LLM client configuration
type Config struct {
	Provider string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient creates a new LLM client based on provider. The stub provider
// has no client; stub runs use the deterministic plot executor instead.
func NewClient(cfg *Config) (ports.LLMClient, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(cfg.APIKey, cfg.Model, cfg.Timeout, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
