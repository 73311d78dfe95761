package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Ack reports the outcome of a file write
type Ack struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// Write is WriteFile with the error folded into the returned Ack
func (s *Store) Write(ctx context.Context, id, relPath string, content []byte) Ack {
	if err := s.WriteFile(ctx, id, relPath, content); err != nil {
		return Ack{Success: false, Path: relPath, Message: err.Error()}
	}
	return Ack{Success: true, Path: relPath, Message: "File written"}
}

// FilePath returns the absolute path of relPath inside the session directory
// for id. It does not touch the filesystem.
func (s *Store) FilePath(id, relPath string) (string, error) {
	dir, err := s.Path(id)
	if err != nil {
		return "", err
	}
	return joinWithin(dir, relPath)
}

// WriteFile writes content to relPath inside the session, creating the
// session and any parent directories. An existing file is replaced whole.
func (s *Store) WriteFile(ctx context.Context, id, relPath string, content []byte) (err error) {
	ctx = tracing.WithSessionKey(ctx, id)
	ctx, span := tracing.StartSpan(
		ctx,
		"vibely.session",
		"session.write",
		attribute.String("session_key", id),
		attribute.String("path", relPath),
		attribute.Int("bytes", len(content)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	defer func() {
		observability.RecordFileWrite(err == nil)
		tracing.RecordError(span, err)
	}()

	dir, err := s.Resolve(ctx, id)
	if err != nil {
		return err
	}

	target, err := joinWithin(dir, relPath)
	if err != nil {
		return err
	}

	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrIO, err)
	}

	// A symlink created by a session command must not redirect writes
	// outside the session.
	if err := ensureWithin(dir, parent); err != nil {
		return err
	}

	if err := writeAtomic(target, content); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrIO, relPath, err)
	}

	logger.Debug().Str("path", relPath).Int("bytes", len(content)).Msg("File written")
	return nil
}

// ReadFile returns the content of relPath inside the session
func (s *Store) ReadFile(id, relPath string) ([]byte, error) {
	target, err := s.FilePath(id, relPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return data, nil
}

func joinWithin(dir, relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	if strings.Contains(relPath, "\x00") {
		return "", fmt.Errorf("%w: path cannot contain null bytes", ErrInvalidPath)
	}
	if filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "/") || strings.HasPrefix(relPath, `\`) {
		return "", fmt.Errorf("%w: path must be relative: %s", ErrInvalidPath, relPath)
	}

	target := filepath.Join(dir, filepath.FromSlash(relPath))
	if target == dir || !strings.HasPrefix(target, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes session directory: %s", ErrInvalidPath, relPath)
	}

	return target, nil
}

func ensureWithin(dir, path string) error {
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if resolved != resolvedDir && !strings.HasPrefix(resolved, resolvedDir+string(filepath.Separator)) {
		return fmt.Errorf("%w: path escapes session directory via symlink", ErrInvalidPath)
	}
	return nil
}

func writeAtomic(target string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
