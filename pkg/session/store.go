package session

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Store owns the mapping from session id to directory
type Store struct {
	root string
}

// Info describes one session directory
type Info struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	LastModified time.Time `json:"lastModified"`
}

// NewStore creates the projects root if needed and returns a Store over it
func NewStore(root string) (*Store, error) {
	observability.EnsureRegistered()

	if root == "" {
		return nil, fmt.Errorf("%w: projects root cannot be empty", ErrIO)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve projects root: %v", ErrIO, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create projects root: %v", ErrIO, err)
	}

	log.Info().Str("dir", abs).Msg("Session store initialized")

	s := &Store{root: abs}
	s.updateActiveSessionsMetric()
	return s, nil
}

// NewID returns a fresh lowercase alphanumeric session id
func NewID() (string, error) {
	return gonanoid.Generate(idAlphabet, 12)
}

// Root returns the projects root directory
func (s *Store) Root() string {
	return s.root
}

// ValidateID rejects ids that could address anything but a direct child of the root
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id cannot be empty", ErrInvalidSession)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: session id cannot contain '..'", ErrInvalidSession)
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: session id cannot contain path separators", ErrInvalidSession)
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("%w: session id cannot contain null bytes", ErrInvalidSession)
	}
	if strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: session id cannot start with '.'", ErrInvalidSession)
	}
	if len(id) > 255 {
		return fmt.Errorf("%w: session id is too long", ErrInvalidSession)
	}
	return nil
}

// Path returns the directory for id without creating it
func (s *Store) Path(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id), nil
}

// Resolve returns the directory for id, creating it if absent
func (s *Store) Resolve(ctx context.Context, id string) (string, error) {
	ctx = tracing.WithSessionKey(ctx, id)
	ctx, span := tracing.StartSpan(ctx, "vibely.session", "session.resolve", attribute.String("session_key", id))
	defer span.End()

	dir, err := s.Path(id)
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, nil
	case err == nil:
		err = fmt.Errorf("%w: %s exists and is not a directory", ErrIO, dir)
		tracing.RecordError(span, err)
		return "", err
	case !os.IsNotExist(err):
		err = fmt.Errorf("%w: %v", ErrIO, err)
		tracing.RecordError(span, err)
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("%w: failed to create session directory: %v", ErrIO, err)
		tracing.RecordError(span, err)
		return "", err
	}

	logger := tracing.LoggerFromContext(ctx, log.Logger)
	logger.Info().Str("dir", dir).Msg("Session created")
	s.updateActiveSessionsMetric()

	return dir, nil
}

// Exists reports whether the session directory is present
func (s *Store) Exists(id string) bool {
	dir, err := s.Path(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// List returns every session under the root, sorted by id
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read projects root: %v", ErrIO, err)
	}

	sessions := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || ValidateID(entry.Name()) != nil {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		modified, err := lastModified(dir)
		if err != nil {
			continue
		}
		sessions = append(sessions, Info{
			ID:           entry.Name(),
			Path:         dir,
			LastModified: modified,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})

	return sessions, nil
}

// lastModified returns the newest mtime of dir or anything below it. Writes
// into subdirectories and renames over existing files leave the session
// directory's own mtime untouched.
func lastModified(dir string) (time.Time, error) {
	var newest time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}

// Remove deletes a session directory and everything in it
func (s *Store) Remove(ctx context.Context, id string) error {
	ctx = tracing.WithSessionKey(ctx, id)
	dir, err := s.Path(id)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: failed to remove session: %v", ErrIO, err)
	}

	logger := tracing.LoggerFromContext(ctx, log.Logger)
	logger.Info().Msg("Session removed")
	s.updateActiveSessionsMetric()

	return nil
}

// Prune removes sessions whose directory has not been modified for longer
// than age. It only runs when a caller asks for it.
func (s *Store) Prune(ctx context.Context, age time.Duration) ([]string, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-age)
	var removed []string
	for _, info := range sessions {
		if !info.LastModified.Before(cutoff) {
			continue
		}
		if err := s.Remove(ctx, info.ID); err != nil {
			log.Warn().Err(err).Str("session_key", info.ID).Msg("Failed to prune session")
			continue
		}
		removed = append(removed, info.ID)
	}

	if len(removed) > 0 {
		log.Info().Int("removed", len(removed)).Dur("age", age).Msg("Pruned idle sessions")
	}

	return removed, nil
}

func (s *Store) updateActiveSessionsMetric() {
	sessions, err := s.List()
	if err != nil {
		return
	}
	observability.SetActiveSessions(len(sessions))
}
