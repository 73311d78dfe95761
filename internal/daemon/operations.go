package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vibely/vibely/internal/tracing"
	"github.com/vibely/vibely/pkg/archive"
	"github.com/vibely/vibely/pkg/assistant"
	"github.com/vibely/vibely/pkg/deploy"
	"github.com/vibely/vibely/pkg/license"
	"github.com/vibely/vibely/pkg/sandbox"
	"github.com/vibely/vibely/pkg/session"
)

// CommandOutcome is the result of RunCommand. It extends the runner result
// with the uniform success flag and message every operation reports.
type CommandOutcome struct {
	sandbox.CommandResult
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WriteFile writes content to relPath inside the session directory
func (d *Daemon) WriteFile(ctx context.Context, sessionID, relPath string, content []byte) session.Ack {
	ctx = tracing.WithSessionKey(ctx, sessionID)
	return d.sessions.Write(ctx, sessionID, relPath, content)
}

// RunCommand runs command with args in the session directory. A non-zero
// exit code is reported in the result, not as a failure.
func (d *Daemon) RunCommand(ctx context.Context, sessionID, command string, args []string) CommandOutcome {
	ctx = tracing.WithSessionKey(ctx, sessionID)
	logger := tracing.LoggerFromContext(ctx, d.logger.GetZerolog())

	dir, err := d.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return CommandOutcome{
			CommandResult: sandbox.CommandResult{ExitCode: -1},
			Message:       err.Error(),
		}
	}

	result, err := d.runner.Execute(ctx, sandbox.ExecuteRequest{
		Command:    command,
		Args:       args,
		WorkingDir: dir,
	})
	if err != nil {
		logger.Warn().Err(err).Str("command", command).Msg("Command did not complete")
		return CommandOutcome{CommandResult: result, Message: err.Error()}
	}

	return CommandOutcome{
		CommandResult: result,
		Success:       true,
		Message:       fmt.Sprintf("Exited with code %d", result.ExitCode),
	}
}

// DeployTo deploys the session to target
func (d *Daemon) DeployTo(ctx context.Context, target, sessionID string) deploy.Result {
	return d.dispatcher.Deploy(ctx, target, sessionID)
}

// TriggerHooks calls every configured deploy hook
func (d *Daemon) TriggerHooks(ctx context.Context) deploy.HookReport {
	return d.hooks.TriggerHooks(ctx)
}

// VerifyLicense checks key against the licensing service
func (d *Daemon) VerifyLicense(ctx context.Context, key string) license.Verdict {
	return d.verifier.Verify(ctx, key)
}

// Ask sends prompt to provider
func (d *Daemon) Ask(ctx context.Context, provider, prompt string) assistant.Answer {
	return d.assistant.Ask(ctx, provider, prompt)
}

// NewSession creates a session directory. An empty id gets a generated one.
func (d *Daemon) NewSession(ctx context.Context, id string) (session.Info, error) {
	if id == "" {
		generated, err := session.NewID()
		if err != nil {
			return session.Info{}, fmt.Errorf("failed to generate session id: %w", err)
		}
		id = generated
	}

	dir, err := d.sessions.Resolve(ctx, id)
	if err != nil {
		return session.Info{}, err
	}
	return session.Info{ID: id, Path: dir, LastModified: time.Now()}, nil
}

// ListSessions returns every session
func (d *Daemon) ListSessions() ([]session.Info, error) {
	return d.sessions.List()
}

// SessionPath returns the directory for id without creating it
func (d *Daemon) SessionPath(id string) (string, error) {
	return d.sessions.Path(id)
}

// RemoveSession deletes a session directory and its staged archive
func (d *Daemon) RemoveSession(ctx context.Context, id string) error {
	if err := d.sessions.Remove(ctx, id); err != nil {
		return err
	}

	staged := filepath.Dir(archive.StagingPath(d.sessions.Root(), id))
	if err := os.RemoveAll(staged); err != nil {
		d.logger.Warn().Err(err).Str("session_key", id).Msg("Failed to remove staged archive")
	}
	return nil
}

// PruneSessions removes sessions untouched for longer than age
func (d *Daemon) PruneSessions(ctx context.Context, age time.Duration) ([]string, error) {
	if age <= 0 {
		return nil, errors.New("prune age must be positive")
	}

	removed, err := d.sessions.Prune(ctx, age)
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		_ = os.RemoveAll(filepath.Dir(archive.StagingPath(d.sessions.Root(), id)))
	}
	return removed, nil
}
