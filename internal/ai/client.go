package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/khrees2412/callscreen/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNotConfigured is returned when no language model is available
var ErrNotConfigured = errors.New("language model not configured")

// Completer answers a single system + user prompt
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client wraps a langchaingo model for short, low temperature completions
type Client struct {
	llm       llms.Model
	modelName string
}

// NewClient creates a model client for the configured provider
func NewClient(cfg *config.Config) (*Client, error) {
	var model llms.Model
	var err error

	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key not configured. Run: callscreen config set --key openai_key --value YOUR_KEY", ErrNotConfigured)
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIKey),
			openai.WithModel(modelOr(cfg.DefaultModel, "gpt-4o-mini")),
		)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("%w: Anthropic API key not configured. Run: callscreen config set --key anthropic_key --value YOUR_KEY", ErrNotConfigured)
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicKey),
			anthropic.WithModel(modelOr(cfg.DefaultModel, "claude-3-5-haiku-latest")),
		)
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(modelOr(cfg.DefaultModel, "llama3.2")),
			ollama.WithServerURL(modelOr(cfg.OllamaURL, "http://localhost:11434")),
		)
	case "lmstudio":
		// LM Studio serves the OpenAI API and ignores the token
		model, err = openai.New(
			openai.WithToken("lm-studio"),
			openai.WithBaseURL(strings.TrimRight(modelOr(cfg.LMStudioURL, "http://localhost:1234"), "/")+"/v1"),
			openai.WithModel(modelOr(cfg.DefaultModel, "local-model")),
		)
	default:
		return nil, fmt.Errorf("%w: unsupported AI provider: %s", ErrNotConfigured, cfg.AIProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.AIProvider, err)
	}

	return &Client{llm: model, modelName: cfg.DefaultModel}, nil
}

// Complete generates a response to a system prompt and user text
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	response, err := c.llm.GenerateContent(ctx, messages, llms.WithTemperature(0.1))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Model returns the model name
func (c *Client) Model() string {
	return c.modelName
}

func modelOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
