package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Config configures the assistant
type Config struct {
	Anthropic ProviderConfig
	OpenAI    ProviderConfig
	MaxTokens int
	Timeout   time.Duration
}

// Answer is the result of Ask
type Answer struct {
	Success  bool       `json:"success"`
	Provider string     `json:"provider"`
	Model    string     `json:"model,omitempty"`
	Text     string     `json:"text,omitempty"`
	Message  string     `json:"message,omitempty"`
	Usage    TokenUsage `json:"usage"`
}

// Assistant answers prompts through the configured providers
type Assistant struct {
	config    Config
	providers map[string]Provider
}

// New creates an assistant. Providers without a key are left out; asking
// them yields a missing-key answer.
func New(config Config) *Assistant {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}

	a := &Assistant{
		config:    config,
		providers: make(map[string]Provider),
	}
	if p, err := NewProvider(ProviderAnthropic, config.Anthropic); err == nil {
		a.providers[ProviderAnthropic] = p
	}
	if p, err := NewProvider(ProviderOpenAI, config.OpenAI); err == nil {
		a.providers[ProviderOpenAI] = p
	}

	observability.EnsureRegistered()
	return a
}

// normalize maps provider aliases onto canonical names
func normalize(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderAnthropic, "claude":
		return ProviderAnthropic
	case ProviderOpenAI, "gpt":
		return ProviderOpenAI
	}
	return provider
}

func (a *Assistant) model(provider string) string {
	if provider == ProviderOpenAI {
		return a.config.OpenAI.Model
	}
	return a.config.Anthropic.Model
}

// Ask sends prompt to provider. An empty provider means anthropic.
func (a *Assistant) Ask(ctx context.Context, provider, prompt string) Answer {
	name := normalize(provider)
	answer := Answer{Provider: name, Model: a.model(name)}

	ctx, span := tracing.StartSpan(ctx, "vibely.assistant", "assistant.ask",
		attribute.String("provider", name),
		attribute.String("model", answer.Model),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if name != ProviderAnthropic && name != ProviderOpenAI {
		answer.Message = fmt.Sprintf("%v: %s", ErrUnknownProvider, provider)
		return answer
	}

	p, ok := a.providers[name]
	if !ok {
		answer.Message = fmt.Sprintf("%v: set the %s API key first", ErrMissingKey, name)
		return answer
	}

	if strings.TrimSpace(prompt) == "" {
		answer.Message = "prompt cannot be empty"
		return answer
	}

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := p.Complete(ctx, Request{
		Model:     answer.Model,
		Prompt:    prompt,
		MaxTokens: a.config.MaxTokens,
	})
	if err == nil && strings.TrimSpace(response.Content) == "" {
		err = ErrEmptyResponse
	}
	observability.RecordAssistantAsk(name, time.Since(start), err == nil)

	if err != nil {
		tracing.RecordError(span, err)
		logger.Warn().Err(err).Str("provider", name).Msg("Ask failed")
		answer.Message = fmt.Sprintf("%s error: %v", name, err)
		if errors.Is(err, context.DeadlineExceeded) {
			answer.Message = fmt.Sprintf("%s error: request timed out", name)
		}
		return answer
	}

	answer.Success = true
	answer.Text = response.Content
	answer.Usage = response.Usage
	span.SetAttributes(
		attribute.Int("input_tokens", response.Usage.InputTokens),
		attribute.Int("output_tokens", response.Usage.OutputTokens),
	)
	logger.Debug().
		Str("provider", name).
		Int("output_tokens", response.Usage.OutputTokens).
		Msg("Ask answered")

	return answer
}
