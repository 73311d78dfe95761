package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, timeout time.Duration) *HostRunner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	runner, err := NewHostRunner(cfg)
	require.NoError(t, err)
	return runner
}

func TestNewHostRunner(t *testing.T) {
	cfg := DefaultConfig()
	runner, err := NewHostRunner(cfg)

	require.NoError(t, err)
	assert.NotNil(t, runner)
	assert.Equal(t, cfg, runner.GetConfig())
}

func TestNewHostRunner_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shell = ""

	runner, err := NewHostRunner(cfg)

	assert.Error(t, err)
	assert.Nil(t, runner)
	assert.ErrorIs(t, err, ErrInvalidShell)
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "ls", CommandLine("ls", nil))
	assert.Equal(t, "npm install --save left-pad", CommandLine("npm", []string{"install", "--save", "left-pad"}))
}

func TestHostRunner_Execute_SimpleCommand(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)

	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "echo",
		Args:       []string{"hi"},
		WorkingDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hi\n", result.Output)
	assert.False(t, result.TimedOut)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestHostRunner_Execute_NonZeroExit(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)

	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "exit 3",
		WorkingDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestHostRunner_Execute_UnknownCommand(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)

	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "definitely-not-a-real-binary-xyz",
		WorkingDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.Equal(t, 127, result.ExitCode)
	assert.NotEmpty(t, result.Output)
}

func TestHostRunner_Execute_CombinedOutputOrder(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)

	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "echo one; echo two 1>&2; echo three",
		WorkingDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", result.Output)
}

func TestHostRunner_Execute_WorkingDir(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)
	dir := t.TempDir()

	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "touch",
		Args:       []string{"marker.txt"},
		WorkingDir: dir,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.FileExists(t, filepath.Join(dir, "marker.txt"))
}

func TestHostRunner_Execute_MissingWorkingDir(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)

	_, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "echo hi",
		WorkingDir: filepath.Join(t.TempDir(), "missing"),
	})

	assert.ErrorIs(t, err, ErrWorkingDir)
}

func TestHostRunner_Execute_EmptyCommand(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)

	_, err := runner.Execute(context.Background(), ExecuteRequest{Command: "   "})

	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestHostRunner_Execute_Environment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Env = map[string]string{"VIBELY_A": "from-config"}
	runner, err := NewHostRunner(cfg)
	require.NoError(t, err)

	t.Setenv("VIBELY_INHERITED", "inherited")

	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "echo $VIBELY_A $VIBELY_B $VIBELY_INHERITED",
		Env:        map[string]string{"VIBELY_B": "from-request"},
		WorkingDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.Equal(t, "from-config from-request inherited", strings.TrimSpace(result.Output))
}

func TestHostRunner_Execute_Timeout(t *testing.T) {
	runner := newTestRunner(t, 200*time.Millisecond)

	start := time.Now()
	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "echo started; sleep 10",
		WorkingDir: t.TempDir(),
	})

	assert.ErrorIs(t, err, ErrExecutionTimeout)
	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Output, "started")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHostRunner_Execute_RequestTimeoutOverrides(t *testing.T) {
	runner := newTestRunner(t, time.Minute)

	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "sleep 10",
		WorkingDir: t.TempDir(),
		Timeout:    100 * time.Millisecond,
	})

	assert.ErrorIs(t, err, ErrExecutionTimeout)
	assert.True(t, result.TimedOut)
}

func TestHostRunner_Execute_TimeoutKillsChildren(t *testing.T) {
	runner := newTestRunner(t, 200*time.Millisecond)
	dir := t.TempDir()

	_, err := runner.Execute(context.Background(), ExecuteRequest{
		Command:    "(sleep 1; touch late.txt) & wait",
		WorkingDir: dir,
	})
	assert.ErrorIs(t, err, ErrExecutionTimeout)

	time.Sleep(1500 * time.Millisecond)
	_, statErr := os.Stat(filepath.Join(dir, "late.txt"))
	assert.True(t, os.IsNotExist(statErr), "background child should have been killed")
}

func TestHostRunner_Execute_Canceled(t *testing.T) {
	runner := newTestRunner(t, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := runner.Execute(ctx, ExecuteRequest{
		Command:    "sleep 10",
		WorkingDir: t.TempDir(),
	})

	assert.ErrorIs(t, err, ErrExecutionCanceled)
	assert.True(t, result.Canceled)
	assert.False(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)
}

func TestHostRunner_Execute_Concurrent(t *testing.T) {
	runner := newTestRunner(t, 10*time.Second)

	results := make(chan CommandResult, 8)
	for i := 0; i < 8; i++ {
		go func() {
			res, err := runner.Execute(context.Background(), ExecuteRequest{
				Command:    "echo ok",
				WorkingDir: t.TempDir(),
			})
			if err != nil {
				res.ExitCode = -1
			}
			results <- res
		}()
	}

	for i := 0; i < 8; i++ {
		res := <-results
		assert.Equal(t, 0, res.ExitCode)
		assert.Equal(t, "ok\n", res.Output)
	}
}
