package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := newLogger(Config{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closeFn()

	logger.Info("dropped")
	logger.Warn("extractor failed", "extractor", "statistical")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "extractor failed", rec["msg"])
	assert.Equal(t, "statistical", rec["extractor"])
}

func TestNewLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zoonotes.log")
	var console bytes.Buffer
	logger, closeFn, err := newLogger(Config{File: path}, &console)
	require.NoError(t, err)

	logger.Info("saved observation", "animal_id", 7)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "saved observation")
	assert.Contains(t, console.String(), "animal_id=7")
}

func TestNewLogger_BadFormat(t *testing.T) {
	_, _, err := newLogger(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
