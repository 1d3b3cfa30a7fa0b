package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func TestLogWritesLevelAndMessage(t *testing.T) {
	logger, path := newTestLogger(t)
	var echo bytes.Buffer
	logger.SetEcho(&echo)

	logger.Info("dataset loaded")
	logger.Debug("hidden at INFO")
	logger.Warningf("dropped %d rows", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "INFO: dataset loaded")
	assert.Contains(t, text, "WARNING: dropped 3 rows")
	assert.NotContains(t, text, "hidden at INFO")
	assert.Equal(t, text, echo.String())

	logger.SetLevel(DEBUG)
	logger.Debug("row 7 skipped")
	data, _ = os.ReadFile(path)
	assert.Contains(t, string(data), "DEBUG: row 7 skipped")
}

func TestSubscribe(t *testing.T) {
	logger, _ := newTestLogger(t)
	ch := logger.Subscribe()

	logger.Error("reload failed")

	select {
	case msg := <-ch:
		assert.True(t, strings.HasSuffix(msg, "ERROR: reload failed\n"))
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}

	logger.Unsubscribe(ch)
	logger.Info("after unsubscribe")
	select {
	case msg := <-ch:
		t.Fatalf("unexpected entry %q", msg)
	default:
	}
}

func TestCheckRotate(t *testing.T) {
	logger, path := newTestLogger(t)
	logger.Info(strings.Repeat("x", 64))

	require.NoError(t, logger.CheckRotate("1024"))
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "app.*.log"))
	assert.Empty(t, matches)

	require.NoError(t, logger.CheckRotate("2 * 8"))
	matches, _ = filepath.Glob(filepath.Join(filepath.Dir(path), "app.*.log"))
	assert.Len(t, matches, 1)

	logger.Info("fresh file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "xxxx")
	assert.Contains(t, string(data), "fresh file")

	assert.Error(t, logger.CheckRotate("ten megabytes"))
}

func TestRotateFailureKeepsLogging(t *testing.T) {
	logger, path := newTestLogger(t)
	logger.Info(strings.Repeat("x", 64))
	require.NoError(t, os.Remove(path))

	assert.ErrorContains(t, logger.CheckRotate("16"), "rotate log file")

	logger.Info("still logging")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "still logging")
}

func TestReopen(t *testing.T) {
	logger, path := newTestLogger(t)
	other := filepath.Join(filepath.Dir(path), "other.log")

	require.NoError(t, logger.Reopen(other))
	logger.Info("moved")

	data, err := os.ReadFile(other)
	require.NoError(t, err)
	assert.Contains(t, string(data), "moved")
}

func TestParseHelpers(t *testing.T) {
	size, err := ParseSize("10 * 1024 * 1024")
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), size)

	assert.Equal(t, WARNING, ParseLevel("warn"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
