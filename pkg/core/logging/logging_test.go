package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"ERROR", slog.LevelError},
		{"warning", slog.LevelWarn},
		{"Warn", slog.LevelWarn},
		{"INFO", slog.LevelInfo},
		{" debug ", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestLevelForVerbosity(t *testing.T) {
	assert.Equal(t, "WARNING", LevelForVerbosity(-1))
	assert.Equal(t, "WARNING", LevelForVerbosity(0))
	assert.Equal(t, "INFO", LevelForVerbosity(1))
	assert.Equal(t, "DEBUG", LevelForVerbosity(2))
	assert.Equal(t, "DEBUG", LevelForVerbosity(5))
}

func TestNewLoggerTo_Logfmt(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "INFO")

	logger.Info("Transaction completed", "module", "system", "entries", 3)

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "level=INFO")
	assert.Contains(t, line, `msg="Transaction completed"`)
	assert.Contains(t, line, "module=system")
	assert.Contains(t, line, "entries=3")
}

func TestNewLoggerTo_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "WARNING")

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "level=WARN")
	assert.Contains(t, lines[1], "level=ERROR")
}

func TestNewLogger_Enabled(t *testing.T) {
	logger := NewLogger("DEBUG")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = NewLogger("ERROR")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
