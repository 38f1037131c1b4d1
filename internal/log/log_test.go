package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/phone/internal/config"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := parseLevel("loud")
	require.Error(t, err)
}

func TestNewRejectsBadSettings(t *testing.T) {
	t.Parallel()

	_, _, err := New(config.LogConfig{Level: "loud"})
	require.Error(t, err)
	_, _, err = New(config.LogConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "phone.log")
	logger, closer, err := New(config.LogConfig{
		Level:  "debug",
		Format: "json",
		File:   config.FileConfig{Path: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)
	logger.Info("registered", "component", "sipua")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	require.Equal(t, "registered", rec["msg"])
	require.Equal(t, "sipua", rec["component"])
}

func TestNewWithoutFileDiscards(t *testing.T) {
	t.Parallel()

	logger, closer, err := New(config.LogConfig{Level: "info"})
	require.NoError(t, err)
	logger.Info("dropped")
	require.NoError(t, closer.Close())
}
