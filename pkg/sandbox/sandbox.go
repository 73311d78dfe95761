package sandbox

import (
	"context"
	"time"
)

// Config defines command runner configuration
type Config struct {
	// Shell interprets the command line, as in "<shell> -c <line>"
	Shell string `json:"shell"`

	// Timeout bounds every execution; zero means no limit
	Timeout time.Duration `json:"timeout"`

	// Env is added on top of the inherited process environment
	Env map[string]string `json:"env"`
}

// ExecuteRequest represents one command invocation
type ExecuteRequest struct {
	// Command is the command, possibly with shell syntax
	Command string `json:"command"`

	// Args are appended to Command separated by spaces before the shell sees them
	Args []string `json:"args"`

	// Env are extra environment variables for this invocation
	Env map[string]string `json:"env"`

	// WorkingDir is the directory the command runs in
	WorkingDir string `json:"working_dir"`

	// Timeout overrides Config.Timeout when positive
	Timeout time.Duration `json:"timeout"`
}

// CommandResult is the outcome of one command invocation. It is never modified
// after Execute returns.
type CommandResult struct {
	// ExitCode is the process exit code, -1 when the process was killed
	ExitCode int `json:"code"`

	// Output holds stdout and stderr interleaved in arrival order
	Output string `json:"output"`

	// Duration is the wall time of the invocation
	Duration time.Duration `json:"duration"`

	// TimedOut is set when the configured timeout killed the process
	TimedOut bool `json:"timedOut,omitempty"`

	// Canceled is set when the caller's context ended the process
	Canceled bool `json:"canceled,omitempty"`
}

// Runner executes commands
type Runner interface {
	// Execute runs a command and waits for it to exit
	Execute(ctx context.Context, req ExecuteRequest) (CommandResult, error)
}

// DefaultConfig returns a default runner configuration
func DefaultConfig() Config {
	return Config{
		Shell:   "/bin/sh",
		Timeout: 10 * time.Minute,
	}
}

// ValidateConfig validates a runner configuration
func ValidateConfig(cfg Config) error {
	if cfg.Shell == "" {
		return ErrInvalidShell
	}

	if cfg.Timeout < 0 {
		return ErrInvalidTimeout
	}

	return nil
}
