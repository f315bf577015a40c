package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLogger_WritesServiceTaggedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, closeFn, err := NewFileLogger(path, "testsvc", slog.LevelInfo, DefaultFileLoggerConfig())
	require.NoError(t, err)

	logger.Info("hello", "key", "value")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"msg":"hello"`)
	assert.Contains(t, content, `"service":"testsvc"`)
	assert.Contains(t, content, `"key":"value"`)
}

func TestInitFileOutput_RedirectsServiceLoggers(t *testing.T) {
	t.Cleanup(Init) // restore the stdout loggers

	path := filepath.Join(t.TempDir(), "app.log")
	closeFn, err := InitFileOutput(path, "main", slog.LevelDebug, FileLoggerConfig{MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	ForService("worker").Info("file bound")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file bound")
	assert.Contains(t, string(data), `"service":"worker"`)
}

func TestSetLevelControlsStructuredLogger(t *testing.T) {
	t.Cleanup(Init)

	SetLevel(slog.LevelDebug)
	assert.True(t, Structured().Enabled(context.Background(), slog.LevelDebug))

	SetLevel(slog.LevelInfo)
	assert.False(t, Structured().Enabled(context.Background(), slog.LevelDebug))
}
