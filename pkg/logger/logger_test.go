package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	appConfig "github.com/festy23/datajpa/internal/config"
)

func TestNew(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_OUTPUT", "stderr")

	logger, err := New()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, logger.Level())
}

func TestNewWithConfig_Levels(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewWithConfig(appConfig.LoggerConfig{Level: tt.level, Format: "console", Output: "stdout"})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, logger.Level())
		})
	}
}

func TestNewWithConfig_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := NewWithConfig(appConfig.LoggerConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Infow("member listed", "member_id", 7)
	logger.Debugw("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "member listed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.InDelta(t, 7, entry["member_id"], 0)
}

func TestNewWithConfig_ConsoleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	logger, err := NewWithConfig(appConfig.LoggerConfig{Level: "debug", Format: "console", Output: path})
	require.NoError(t, err)

	logger.Debugw("sql", "rows", 2)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEBUG")
	assert.Contains(t, string(data), "sql")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(string(data)))))
}

func TestNewWithConfig_DefaultOutput(t *testing.T) {
	logger, err := NewWithConfig(appConfig.LoggerConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewWithConfig_InvalidOutput(t *testing.T) {
	_, err := NewWithConfig(appConfig.LoggerConfig{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "missing", "dir", "app.log"),
	})
	assert.Error(t, err)
}
