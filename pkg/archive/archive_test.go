package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(data)
	}
	return out
}

func TestPackRoundTrip(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "site")
	files := map[string]string{
		"a.txt":   "alpha",
		"b/c.txt": "charlie\n",
	}
	writeTree(t, dir, files)

	dest := StagingPath(root, "site")
	result, err := Pack(context.Background(), dir, dest)
	require.NoError(t, err)

	assert.Equal(t, dest, result.Path)
	assert.Equal(t, 2, result.Files)
	assert.Greater(t, result.Size, int64(0))
	assert.Equal(t, files, readArchive(t, dest))
}

func TestPackOverwritesPreviousArchive(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "site")
	dest := StagingPath(root, "site")

	writeTree(t, dir, map[string]string{"old.txt": "old"})
	_, err := Pack(context.Background(), dir, dest)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "old.txt")))
	writeTree(t, dir, map[string]string{"new.txt": "new"})
	_, err = Pack(context.Background(), dir, dest)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"new.txt": "new"}, readArchive(t, dest))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}

func TestPackEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))

	_, err := Pack(context.Background(), dir, StagingPath(root, "empty"))

	assert.ErrorIs(t, err, ErrEmptyDirectory)
	assert.ErrorIs(t, err, ErrArchive)
	assert.NoFileExists(t, StagingPath(root, "empty"))
}

func TestPackMissingDirectory(t *testing.T) {
	root := t.TempDir()

	_, err := Pack(context.Background(), filepath.Join(root, "missing"), StagingPath(root, "missing"))

	assert.ErrorIs(t, err, ErrArchive)
}

func TestPackIncludesDotFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "site")
	writeTree(t, dir, map[string]string{
		".gitignore":    "node_modules\n",
		"netlify.toml":  "[build]\n",
		".env.example":  "KEY=\n",
		"src/index.tsx": "export {}\n",
	})

	dest := StagingPath(root, "site")
	_, err := Pack(context.Background(), dir, dest)
	require.NoError(t, err)

	assert.Len(t, readArchive(t, dest), 4)
}

func TestPackCanceled(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "site")
	writeTree(t, dir, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Pack(ctx, dir, StagingPath(root, "site"))
	assert.ErrorIs(t, err, ErrArchive)
}

func TestStagingPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/srv/projects", ".deploy", "abc", "deploy.zip"),
		StagingPath("/srv/projects", "abc"),
	)
}
