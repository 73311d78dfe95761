package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv/projects", ".vibely", "vibely.pid"), PIDFilePath("/srv/projects"))
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		pidFile := filepath.Join(dir, "valid.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("1234\n"), 0o644))

		pid, err := ReadPID(pidFile)
		require.NoError(t, err)
		assert.Equal(t, 1234, pid)
	})

	t.Run("invalid", func(t *testing.T) {
		pidFile := filepath.Join(dir, "invalid.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("invalid"), 0o644))

		_, err := ReadPID(pidFile)
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadPID(filepath.Join(dir, "missing.pid"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestIsRunning(t *testing.T) {
	dir := t.TempDir()

	t.Run("no pid file", func(t *testing.T) {
		assert.False(t, IsRunning(filepath.Join(dir, "nonexistent.pid")))
	})

	t.Run("invalid pid file", func(t *testing.T) {
		pidFile := filepath.Join(dir, "invalid.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("invalid"), 0o644))
		assert.False(t, IsRunning(pidFile))
	})

	t.Run("current process", func(t *testing.T) {
		pidFile := filepath.Join(dir, "self.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))
		assert.True(t, IsRunning(pidFile))
	})
}

func TestLifecycleRefusesSecondInstance(t *testing.T) {
	d := newTestDaemon(t, nil)

	pidFile := d.lifecycle.PIDFile()
	require.NoError(t, os.MkdirAll(filepath.Dir(pidFile), 0o755))
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))

	err := d.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another daemon is running")
	assert.False(t, d.Status().Running)
}
