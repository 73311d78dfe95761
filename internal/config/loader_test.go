package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/vibely.json")
	assert.Equal(t, "/path/to/vibely.json", loader.configPath)
	assert.Equal(t, "/path/to/vibely.json", loader.GetConfigPath())
	assert.Equal(t, "vibely.json", NewLoader("").GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults without file or env", func(t *testing.T) {
		cfg, err := NewLoader("").WithEnvFile("").Load()
		require.NoError(t, err)

		assert.True(t, filepath.IsAbs(cfg.ProjectsRoot))
		assert.Equal(t, "user-projects", filepath.Base(cfg.ProjectsRoot))
		assert.Equal(t, DefaultNetlifyAPIURL, cfg.Netlify.APIURL)
	})

	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).WithEnvFile("").Load()
		assert.Error(t, err)
	})

	t.Run("load config from file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "vibely.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{
			"projects_root": "`+filepath.ToSlash(filepath.Join(dir, "projects"))+`",
			"render": {"service_id": "srv-file"},
			"sandbox": {"command_timeout": "45s"},
			"gateway": {"port": 9090}
		}`), 0o644))

		cfg, err := NewLoader(configPath).WithEnvFile("").Load()
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "projects"), cfg.ProjectsRoot)
		assert.Equal(t, "srv-file", cfg.Render.ServiceID)
		assert.Equal(t, 45*time.Second, cfg.Sandbox.CommandTimeout)
		assert.Equal(t, 9090, cfg.Gateway.Port)
		// Untouched fields keep their defaults.
		assert.Equal(t, DefaultRenderAPIURL, cfg.Render.APIURL)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "vibely.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"render": {"service_id": "srv-file"}}`), 0o644))

		t.Setenv("RENDER_SERVICE_ID", "srv-env")
		t.Setenv("NETLIFY_AUTH_TOKEN", "netlify-env-token")
		t.Setenv("CLAUDE_API_KEY", "sk-ant-env")
		t.Setenv("VIBELY_COMMAND_TIMEOUT", "2m")

		cfg, err := NewLoader(configPath).WithEnvFile("").Load()
		require.NoError(t, err)

		assert.Equal(t, "srv-env", cfg.Render.ServiceID)
		assert.Equal(t, "netlify-env-token", cfg.Netlify.Token)
		assert.Equal(t, "sk-ant-env", cfg.AI.AnthropicKey)
		assert.Equal(t, 2*time.Minute, cfg.Sandbox.CommandTimeout)
	})

	t.Run("dotenv file feeds tokens", func(t *testing.T) {
		dir := t.TempDir()
		envFile := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("VERCEL_AUTH_TOKEN=vercel-from-dotenv\n"), 0o644))
		t.Setenv("VERCEL_AUTH_TOKEN", "")
		require.NoError(t, os.Unsetenv("VERCEL_AUTH_TOKEN"))

		cfg, err := NewLoader("").WithEnvFile(envFile).Load()
		require.NoError(t, err)
		assert.Equal(t, "vercel-from-dotenv", cfg.Vercel.Token)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		t.Setenv("VIBELY_LOG_LEVEL", "shouty")

		_, err := NewLoader("").WithEnvFile("").Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
