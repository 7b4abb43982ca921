package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyFilename(t *testing.T) {
	day := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "stdout_3-7-24.log", DailyFilename(day))
}

func TestWriterAppendsToDailyFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(filepath.Join(dir, "log"))
	require.NoError(t, err)
	day := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return day }

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(w.Dir(), DailyFilename(day)))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestNewZapLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewZapLogger(dir, "debug", false)
	require.NoError(t, err)
	logger.Debug("hello")
	_ = logger.Sync()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
