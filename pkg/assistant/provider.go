package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

var (
	// ErrMissingKey is returned when the provider has no API key configured
	ErrMissingKey = errors.New("missing API key")

	// ErrUnknownProvider is returned for providers other than anthropic and openai
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyResponse is returned when the provider answers with no text
	ErrEmptyResponse = errors.New("empty response")
)

// Provider is an LLM API provider
type Provider interface {
	// Complete sends a single-turn request
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Request is a single prompt
type Request struct {
	Model        string
	Prompt       string
	SystemPrompt string
	MaxTokens    int
}

// Response is the provider's answer
type Response struct {
	Content string
	Usage   TokenUsage
}

// TokenUsage tracks token usage
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ProviderConfig is the connection setup for one provider
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewProvider creates a provider by name
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingKey, name)
	}

	switch strings.ToLower(name) {
	case ProviderAnthropic, "claude":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	case ProviderOpenAI, "gpt":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}
