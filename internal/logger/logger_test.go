package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  int
	}{
		{"debug logs everything", "debug", 4},
		{"info drops debug", "info", 3},
		{"warn keeps warn and error", "warn", 2},
		{"warning alias", "WARNING", 2},
		{"error only", "error", 1},
		{"unknown falls back to info", "verbose", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(Config{Level: tt.level, Format: "json"}, &buf)

			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			assert.Len(t, lines, tt.want)
		})
	}
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	l.Component("stream").Info("connected", slog.String("source", "commands"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "connected", entry["msg"])
	assert.Equal(t, "stream", entry["component"])
	assert.Equal(t, "commands", entry["source"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info", Format: "console", NoColor: true}, &buf)

	l.Info("printer ready", "port", 9100)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "printer ready")
	assert.Contains(t, out, "port=9100")
}

func TestWithAndGroup(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json"}, &buf)

	l.With("agent", "kitchen").WithGroup("job").Info("done", "id", "A1_client_auto")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kitchen", entry["agent"])
	job, ok := entry["job"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A1_client_auto", job["id"])
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")

	l, err := New(Config{Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestNew_FileOutputError(t *testing.T) {
	_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "agent.log")})
	assert.Error(t, err)
}

func TestNew_StdStreams(t *testing.T) {
	for _, out := range []string{"", "stdout", "stderr"} {
		l, err := New(Config{Output: out})
		require.NoError(t, err)
		assert.NoError(t, l.Close())
	}
}
