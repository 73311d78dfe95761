package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that feed them.
// The unprefixed names match the ones operators already keep in .env files.
var envBindings = map[string][]string{
	"projects_root":             {"VIBELY_PROJECTS_ROOT"},
	"netlify.token":             {"NETLIFY_AUTH_TOKEN"},
	"netlify.api_url":           {"VIBELY_NETLIFY_API_URL"},
	"vercel.token":              {"VERCEL_AUTH_TOKEN"},
	"vercel.api_url":            {"VIBELY_VERCEL_API_URL"},
	"render.token":              {"RENDER_AUTH_TOKEN"},
	"render.service_id":         {"RENDER_SERVICE_ID"},
	"render.api_url":            {"VIBELY_RENDER_API_URL"},
	"hooks.render":              {"RENDER_DEPLOY_HOOK_URL"},
	"hooks.vercel":              {"VERCEL_DEPLOY_HOOK_URL"},
	"hooks.netlify":             {"NETLIFY_DEPLOY_HOOK_URL"},
	"license.product_permalink": {"GUMROAD_PRODUCT_PERMALINK"},
	"license.verify_url":        {"VIBELY_LICENSE_VERIFY_URL"},
	"license.key":               {"VIBELY_LICENSE_KEY"},
	"license.enforce":           {"VIBELY_LICENSE_ENFORCE"},
	"ai.anthropic_key":          {"CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	"ai.anthropic_model":        {"VIBELY_ANTHROPIC_MODEL"},
	"ai.openai_key":             {"OPENAI_API_KEY"},
	"ai.openai_model":           {"VIBELY_OPENAI_MODEL"},
	"sandbox.shell":             {"VIBELY_SHELL"},
	"sandbox.command_timeout":   {"VIBELY_COMMAND_TIMEOUT"},
	"http.timeout":              {"VIBELY_HTTP_TIMEOUT"},
	"logging.level":             {"VIBELY_LOG_LEVEL"},
	"logging.file":              {"VIBELY_LOG_FILE"},
	"logging.audit_file":        {"VIBELY_AUDIT_FILE"},
	"tracing.enabled":           {"VIBELY_TRACING_ENABLED"},
	"tracing.sample_ratio":      {"VIBELY_TRACING_SAMPLE_RATIO"},
	"gateway.host":              {"VIBELY_GATEWAY_HOST"},
	"gateway.port":              {"VIBELY_GATEWAY_PORT"},
	"gateway.shared_secret":     {"VIBELY_GATEWAY_SECRET"},
}

// Loader handles configuration loading
type Loader struct {
	configPath string
	envFile    string
}

// NewLoader creates a new config loader. configPath may be empty, in which
// case ./vibely.json is used when present.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    ".env",
	}
}

// WithEnvFile overrides the dotenv file read before the environment is bound.
// An empty path disables dotenv loading.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load builds the configuration from defaults, the optional JSON file, the
// dotenv file and the process environment, in increasing precedence.
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		// godotenv never overrides variables already present in the environment.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", l.envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigType("json")

	configPath := l.GetConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if l.configPath != "" {
		return nil, fmt.Errorf("config file not found: %s", l.configPath)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	root, err := filepath.Abs(cfg.ProjectsRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve projects_root: %w", err)
	}
	cfg.ProjectsRoot = root

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return "vibely.json"
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
