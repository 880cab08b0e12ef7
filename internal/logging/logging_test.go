package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("component", "test")

	logger.Debug("details", "mission_id", "1_1")
	logger.Warn("careful")

	assert.Contains(t, debugBuf.String(), `"mission_id":"1_1"`)
	assert.Contains(t, debugBuf.String(), `"component":"test"`)
	assert.Contains(t, debugBuf.String(), "careful")
	assert.NotContains(t, warnBuf.String(), "details")
	assert.Contains(t, warnBuf.String(), "component=test")
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := NewMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	assert.False(t, h.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, h.Enabled(t.Context(), slog.LevelError))
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	var console bytes.Buffer

	f, err := Setup(dir, "pylabd", slog.LevelInfo, &console)
	require.NoError(t, err)

	slog.Info("daemon started", "port", 7842)
	slog.Debug("hidden")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(dir, "logs", "pylabd.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "daemon started", entry["msg"])
	assert.EqualValues(t, 7842, entry["port"])

	assert.Contains(t, console.String(), "daemon started")
	assert.NotContains(t, console.String(), "hidden")
}
