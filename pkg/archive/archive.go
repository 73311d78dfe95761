package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// FileName is the fixed name of every deploy archive
const FileName = "deploy.zip"

// StagingDir is the directory under the projects root holding per-session archives
const StagingDir = ".deploy"

var (
	// ErrArchive wraps any failure to read the source or write the archive
	ErrArchive = errors.New("archive error")

	// ErrEmptyDirectory is returned when there is nothing to pack
	ErrEmptyDirectory = fmt.Errorf("%w: directory is empty", ErrArchive)
)

// Archive describes a packed archive
type Archive struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
	Size  int64  `json:"size"`
}

// StagingPath returns where the archive for a session lives. Each session
// gets its own directory so concurrent deploys never share an archive.
func StagingPath(root, sessionID string) string {
	return filepath.Join(root, StagingDir, sessionID, FileName)
}

// Pack zips every regular file under dir into dest, replacing any previous
// archive at dest.
func Pack(ctx context.Context, dir, dest string) (result Archive, err error) {
	ctx, span := tracing.StartSpan(ctx, "vibely.archive", "archive.pack",
		attribute.String("dir", dir),
	)
	defer span.End()
	defer func() { tracing.RecordError(span, err) }()

	logger := tracing.LoggerFromContext(ctx, log.Logger)

	files, err := collect(dir)
	if err != nil {
		return Archive{}, err
	}
	if len(files) == 0 {
		return Archive{}, fmt.Errorf("%w: %s", ErrEmptyDirectory, dir)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Archive{}, fmt.Errorf("%w: failed to create archive directory: %v", ErrArchive, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".deploy-*.zip")
	if err != nil {
		return Archive{}, fmt.Errorf("%w: failed to create temp archive: %v", ErrArchive, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return Archive{}, fmt.Errorf("%w: %v", ErrArchive, err)
		}
		if err := addFile(zw, dir, name); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return Archive{}, err
		}
	}

	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return Archive{}, fmt.Errorf("%w: failed to finalize archive: %v", ErrArchive, err)
	}
	if err := tmp.Close(); err != nil {
		return Archive{}, fmt.Errorf("%w: failed to close archive: %v", ErrArchive, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return Archive{}, fmt.Errorf("%w: failed to move archive into place: %v", ErrArchive, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return Archive{}, fmt.Errorf("%w: %v", ErrArchive, err)
	}

	result = Archive{Path: dest, Files: len(files), Size: info.Size()}
	observability.RecordArchiveSize(result.Size)
	span.SetAttributes(
		attribute.Int("files", result.Files),
		attribute.Int64("bytes", result.Size),
	)
	logger.Debug().
		Str("archive", dest).
		Int("files", result.Files).
		Int64("bytes", result.Size).
		Msg("Directory packed")

	return result, nil
}

// collect returns slash-separated relative names of every regular file under dir
func collect(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchive, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrArchive, dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrArchive, dir, err)
	}

	sort.Strings(files)
	return files, nil
}

func addFile(zw *zip.Writer, dir, name string) error {
	path := filepath.Join(dir, filepath.FromSlash(name))

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchive, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchive, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("%w: failed to add %s: %v", ErrArchive, name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchive, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("%w: failed to add %s: %v", ErrArchive, name, err)
	}
	return nil
}
