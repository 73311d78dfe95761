package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs every structural check against cfg
func (v *Validator) Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.ProjectsRoot) == "" {
		return fmt.Errorf("projects_root cannot be empty")
	}

	for name, raw := range map[string]string{
		"netlify.api_url":    cfg.Netlify.APIURL,
		"vercel.api_url":     cfg.Vercel.APIURL,
		"render.api_url":     cfg.Render.APIURL,
		"license.verify_url": cfg.License.VerifyURL,
	} {
		if err := v.ValidateURL(name, raw); err != nil {
			return err
		}
	}

	for name, raw := range map[string]string{
		"hooks.render":  cfg.Hooks.Render,
		"hooks.vercel":  cfg.Hooks.Vercel,
		"hooks.netlify": cfg.Hooks.Netlify,
	} {
		if raw == "" {
			continue
		}
		if err := v.ValidateURL(name, raw); err != nil {
			return err
		}
	}

	if cfg.Sandbox.CommandTimeout < 0 {
		return fmt.Errorf("sandbox.command_timeout must be >= 0")
	}
	if cfg.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must be >= 0")
	}
	if cfg.HTTP.BreakerOpenTimeout < 0 {
		return fmt.Errorf("http.breaker_open_timeout must be >= 0")
	}
	if cfg.AI.MaxTokens < 0 {
		return fmt.Errorf("ai.max_tokens must be >= 0")
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}

	if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
		return err
	}
	for _, proxy := range cfg.Gateway.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			return fmt.Errorf("gateway.trusted_proxies: %q is not an IP address", proxy)
		}
	}

	if cfg.License.Enforce && cfg.License.Key == "" {
		return fmt.Errorf("license.enforce requires license.key")
	}

	return nil
}

// ValidateURL checks that raw is an absolute http(s) URL
func (v *Validator) ValidateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https (got %q)", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}

	return nil
}

// ValidateLogLevel validates a zerolog level name
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid log level %q (must be: debug, info, warn, error)", level)
	}
	return nil
}

// ValidatePort validates a port number
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid gateway port %d (must be 1-65535)", port)
	}
	return nil
}

// ValidateAPIKey validates an AI provider key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}
