package sandbox

import "errors"

var (
	// ErrInvalidShell is returned when no shell is configured
	ErrInvalidShell = errors.New("invalid shell (must not be empty)")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be >= 0)")

	// ErrEmptyCommand is returned when the command is blank
	ErrEmptyCommand = errors.New("command cannot be empty")

	// ErrWorkingDir is returned when the working directory is unusable
	ErrWorkingDir = errors.New("invalid working directory")

	// ErrExecutionTimeout is returned when execution times out
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrExecutionCanceled is returned when the caller canceled execution
	ErrExecutionCanceled = errors.New("execution canceled")

	// ErrStartFailed is returned when the shell could not be started
	ErrStartFailed = errors.New("failed to start command")
)
