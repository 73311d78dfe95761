package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// waitDelay bounds how long Wait keeps reading output after the process
// has been killed.
const waitDelay = 2 * time.Second

// HostRunner executes commands through the host shell
type HostRunner struct {
	config Config
}

// NewHostRunner creates a new host runner
func NewHostRunner(config Config) (*HostRunner, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	observability.EnsureRegistered()

	return &HostRunner{config: config}, nil
}

// GetConfig returns the runner configuration
func (h *HostRunner) GetConfig() Config {
	return h.config
}

// CommandLine joins command and args the way the shell will see them
func CommandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}

// Execute runs req.Command (plus args) through the shell in req.WorkingDir.
// A non-zero exit is not an error; the exit code is on the result.
func (h *HostRunner) Execute(ctx context.Context, req ExecuteRequest) (CommandResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.Command) == "" {
		return CommandResult{ExitCode: -1}, ErrEmptyCommand
	}

	if req.WorkingDir != "" {
		info, err := os.Stat(req.WorkingDir)
		if err != nil || !info.IsDir() {
			return CommandResult{ExitCode: -1}, fmt.Errorf("%w: %s", ErrWorkingDir, req.WorkingDir)
		}
	}

	line := CommandLine(req.Command, req.Args)
	ctx, span := tracing.StartSpan(ctx, "vibely.sandbox", "sandbox.run",
		attribute.String("command", req.Command),
		attribute.Int("args", len(req.Args)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = h.config.Timeout
	}

	execCtx := ctx
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(execCtx, h.config.Shell, "-c", line)
	cmd.Dir = req.WorkingDir
	cmd.Env = h.buildEnvironment(req.Env)
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	// Same writer for both streams: exec serializes the writes, so the
	// buffer keeps arrival order.
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := CommandResult{
		Output:   output.String(),
		Duration: duration,
	}

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.ExitCode = -1
		result.TimedOut = true
		observability.RecordCommand(duration, false)
		tracing.RecordError(span, ErrExecutionTimeout)
		logger.Warn().Str("command", line).Dur("timeout", timeout).Msg("Command timed out")
		return result, ErrExecutionTimeout

	case ctx.Err() != nil:
		result.ExitCode = -1
		result.Canceled = true
		observability.RecordCommand(duration, false)
		err = fmt.Errorf("%w: %v", ErrExecutionCanceled, ctx.Err())
		tracing.RecordError(span, err)
		return result, err
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			result.ExitCode = -1
			observability.RecordCommand(duration, false)
			err = fmt.Errorf("%w: %v", ErrStartFailed, err)
			tracing.RecordError(span, err)
			return result, err
		}
		result.ExitCode = exitErr.ExitCode()
	}

	span.SetAttributes(attribute.Int("exit_code", result.ExitCode))
	observability.RecordCommand(duration, result.ExitCode == 0)

	logger.Debug().
		Str("command", line).
		Str("dir", req.WorkingDir).
		Int("exit_code", result.ExitCode).
		Dur("duration", duration).
		Msg("Command executed")

	return result, nil
}

// buildEnvironment inherits the process environment so build tools keep
// their PATH and HOME, then layers config and request variables on top.
func (h *HostRunner) buildEnvironment(env map[string]string) []string {
	result := os.Environ()

	for _, extra := range []map[string]string{h.config.Env, env} {
		keys := make([]string, 0, len(extra))
		for key := range extra {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			result = append(result, fmt.Sprintf("%s=%s", key, extra[key]))
		}
	}

	return result
}
