package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// testEnv is a projects root plus a config file pointing at it
type testEnv struct {
	root       string
	configPath string
}

func newTestEnv(t *testing.T, overrides map[string]interface{}) *testEnv {
	t.Helper()

	// Keep real provider secrets from the environment out of the tests.
	for _, name := range []string{
		"NETLIFY_AUTH_TOKEN", "VERCEL_AUTH_TOKEN", "RENDER_AUTH_TOKEN", "RENDER_SERVICE_ID",
		"CLAUDE_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "VIBELY_LICENSE_KEY",
		"VIBELY_LOG_LEVEL", "VIBELY_PROJECTS_ROOT",
	} {
		t.Setenv(name, "")
	}

	env := &testEnv{
		root:       t.TempDir(),
		configPath: filepath.Join(t.TempDir(), "vibely.json"),
	}

	cfg := map[string]interface{}{
		"projects_root": env.root,
		"logging": map[string]interface{}{
			"level":  "error",
			"pretty": false,
		},
	}
	for k, v := range overrides {
		cfg[k] = v
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.configPath, data, 0o644))
	return env
}

// execute runs the root command with fresh flag state
func (e *testEnv) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath, "--env-file", ""}, args...))

	err := cmd.ExecuteContext(context.Background())
	return output.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func hasCommand(cmd *cobra.Command, name string) bool {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}
