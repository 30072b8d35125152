package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// maxTokens bounds completion size; plot JSON stays well under this.
const maxTokens = 4096

// Client implements ports.LLMClient using the Anthropic Messages API
type Client struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a new Anthropic client. timeout bounds each request
// within the surrounding stage budget; zero disables the bound.
func NewClient(apiKey, model string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}

	return &Client{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// GenerateJSON asks the model for a strict-JSON completion (ports.LLMClient
// interface). Markdown fences around the payload are tolerated and stripped.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	raw := extractJSON(text.String())
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, fmt.Errorf("model did not return valid JSON")
	}

	c.logger.Debug("anthropic completion received",
		zap.String("model", c.model),
		zap.Int("bytes", len(raw)))

	return raw, nil
}

// extractJSON strips the markdown fences models sometimes wrap JSON in
func extractJSON(text string) json.RawMessage {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return json.RawMessage(trimmed)
}
