package config

import (
	"encoding/json"
	"time"
)

// Config is the process-wide configuration. It is built once at startup and
// passed by value or pointer to every component; nothing reads the environment
// after Load returns.
type Config struct {
	// ProjectsRoot is the directory holding one subdirectory per session
	ProjectsRoot string `json:"projects_root" mapstructure:"projects_root"`

	Netlify NetlifyConfig `json:"netlify" mapstructure:"netlify"`
	Vercel  VercelConfig  `json:"vercel" mapstructure:"vercel"`
	Render  RenderConfig  `json:"render" mapstructure:"render"`

	// Hooks are the fire-and-forget deploy hook URLs
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`

	License LicenseConfig `json:"license" mapstructure:"license"`
	AI      AIConfig      `json:"ai" mapstructure:"ai"`
	Sandbox SandboxConfig `json:"sandbox" mapstructure:"sandbox"`
	HTTP    HTTPConfig    `json:"http" mapstructure:"http"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`
}

// NetlifyConfig holds Netlify API settings
type NetlifyConfig struct {
	Token  string `json:"token" mapstructure:"token"`
	APIURL string `json:"api_url" mapstructure:"api_url"`
}

// VercelConfig holds Vercel API settings
type VercelConfig struct {
	Token  string `json:"token" mapstructure:"token"`
	APIURL string `json:"api_url" mapstructure:"api_url"`
}

// RenderConfig holds Render API settings
type RenderConfig struct {
	Token     string `json:"token" mapstructure:"token"`
	ServiceID string `json:"service_id" mapstructure:"service_id"`
	APIURL    string `json:"api_url" mapstructure:"api_url"`
}

// HooksConfig holds deploy hook URLs. An empty URL skips that provider.
type HooksConfig struct {
	Render  string `json:"render" mapstructure:"render"`
	Vercel  string `json:"vercel" mapstructure:"vercel"`
	Netlify string `json:"netlify" mapstructure:"netlify"`
}

// LicenseConfig holds licensing settings
type LicenseConfig struct {
	ProductPermalink string `json:"product_permalink" mapstructure:"product_permalink"`
	VerifyURL        string `json:"verify_url" mapstructure:"verify_url"`
	// Key is the subscription key checked before deploys when Enforce is set
	Key     string `json:"key" mapstructure:"key"`
	Enforce bool   `json:"enforce" mapstructure:"enforce"`
}

// AIConfig holds model provider settings
type AIConfig struct {
	AnthropicKey   string `json:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string `json:"anthropic_model" mapstructure:"anthropic_model"`
	AnthropicURL   string `json:"anthropic_url" mapstructure:"anthropic_url"`
	OpenAIKey      string `json:"openai_key" mapstructure:"openai_key"`
	OpenAIModel    string `json:"openai_model" mapstructure:"openai_model"`
	OpenAIURL      string `json:"openai_url" mapstructure:"openai_url"`
	MaxTokens      int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// SandboxConfig holds command runner settings
type SandboxConfig struct {
	Shell          string        `json:"shell" mapstructure:"shell"`
	CommandTimeout time.Duration `json:"command_timeout" mapstructure:"command_timeout"`
}

// HTTPConfig holds outbound HTTP settings shared by every remote call
type HTTPConfig struct {
	Timeout            time.Duration `json:"timeout" mapstructure:"timeout"`
	BreakerFailures    uint32        `json:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `json:"breaker_open_timeout" mapstructure:"breaker_open_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// GatewayConfig holds HTTP API server configuration
type GatewayConfig struct {
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	SharedSecret       string `json:"shared_secret" mapstructure:"shared_secret"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	// TrustedProxies are peer IPs allowed to set X-Forwarded-For
	TrustedProxies []string `json:"trusted_proxies" mapstructure:"trusted_proxies"`
}

// Version is the vibely release version
const Version = "0.1.0"

const (
	DefaultNetlifyAPIURL    = "https://api.netlify.com"
	DefaultVercelAPIURL     = "https://api.vercel.com"
	DefaultRenderAPIURL     = "https://api.render.com"
	DefaultLicenseVerifyURL = "https://api.gumroad.com/v2/licenses/verify"
	DefaultAnthropicModel   = "claude-3-opus-20240229"
	DefaultOpenAIModel      = "gpt-4.1"
)

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		ProjectsRoot: "user-projects",
		Netlify:      NetlifyConfig{APIURL: DefaultNetlifyAPIURL},
		Vercel:       VercelConfig{APIURL: DefaultVercelAPIURL},
		Render:       RenderConfig{APIURL: DefaultRenderAPIURL},
		License: LicenseConfig{
			ProductPermalink: "otterf",
			VerifyURL:        DefaultLicenseVerifyURL,
		},
		AI: AIConfig{
			AnthropicModel: DefaultAnthropicModel,
			OpenAIModel:    DefaultOpenAIModel,
			MaxTokens:      4096,
		},
		Sandbox: SandboxConfig{
			Shell:          "/bin/sh",
			CommandTimeout: 10 * time.Minute,
		},
		HTTP: HTTPConfig{
			Timeout:            2 * time.Minute,
			BreakerFailures:    5,
			BreakerOpenTimeout: time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:     true,
			SampleRatio: 1,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Host:               "127.0.0.1",
			Port:               8787,
			RateLimitPerMinute: 120,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Netlify.Token = mask(c.Netlify.Token)
	masked.Vercel.Token = mask(c.Vercel.Token)
	masked.Render.Token = mask(c.Render.Token)
	masked.License.Key = mask(c.License.Key)
	masked.AI.AnthropicKey = mask(c.AI.AnthropicKey)
	masked.AI.OpenAIKey = mask(c.AI.OpenAIKey)
	masked.Gateway.SharedSecret = mask(c.Gateway.SharedSecret)
	masked.Hooks = HooksConfig{
		Render:  mask(c.Hooks.Render),
		Vercel:  mask(c.Hooks.Vercel),
		Netlify: mask(c.Hooks.Netlify),
	}

	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// Validate checks structural validity. Provider secrets are never required
// here: a missing token fails only deploys to that provider.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}
