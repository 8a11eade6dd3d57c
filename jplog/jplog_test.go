package jplog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLogLevelDefaultsToInfo(t *testing.T) {
	t.Setenv("JP_LOG_LEVEL", "")
	require.Equal(t, 1, int(GetLogLevel())) // zerolog.InfoLevel == 1
}

func TestGetLogLevelReadsEnvOverride(t *testing.T) {
	t.Setenv("JP_LOG_LEVEL", "0")
	require.Equal(t, 0, int(GetLogLevel()))
}

func TestDailyRotatingLogWriterCreatesTodayFile(t *testing.T) {
	dir := t.TempDir()
	w, err := newDailyRotatingLogWriter(dir)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, filepath.Ext(entries[0].Name()) == ".log")
}

func TestCleanupOldLogFilesKeepsOnlyMostRecent(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"jp-2026-01-01.log", "jp-2026-01-02.log", "jp-2026-01-03.log",
		"jp-2026-01-04.log", "jp-2026-01-05.log", "jp-2026-01-06.log",
		"jp-2026-01-07.log", "jp-2026-01-08.log",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	cleanupOldLogFiles(dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, maxLogFileCount)
	_, err = os.Stat(filepath.Join(dir, "jp-2026-01-01.log"))
	require.True(t, os.IsNotExist(err))
}
