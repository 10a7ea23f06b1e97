package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append(opts, withBuffer(&buf))
	logger, err := New(&Config{Level: level, Format: "json", Output: "buffer"}, opts...)
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"默认配置", nil, false},
		{"合法配置", &Config{Level: "debug", Format: "json", Output: "stdout"}, false},
		{"非法级别", &Config{Level: "verbose"}, true},
		{"非法格式", &Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger(t, "debug")

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "INFO", lines[1]["level"])
	assert.Equal(t, "WARN", lines[2]["level"])
	assert.Equal(t, "ERROR", lines[3]["level"])
}

func TestLoggerSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	logger.Info("filtered")
	assert.Empty(t, buf.String())

	require.NoError(t, logger.SetLevel(DebugLevel))
	logger.Debug("visible")
	assert.Len(t, decodeLines(t, buf), 1)

	assert.Error(t, logger.SetLevel(Level(100)))
}

func TestLoggerFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	logger.Info("fields",
		String("device", "lamp"),
		Int("count", 3),
		Bool("ok", true),
		Error(errors.New("boom")),
		ErrorWithCode(errors.New("bad"), "E_BAD"),
	)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "lamp", line["device"])
	assert.EqualValues(t, 3, line["count"])
	assert.Equal(t, true, line["ok"])
	assert.Equal(t, "boom", line["err_msg"])
	group, ok := line["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "E_BAD", group["code"])
}

func TestErrorFieldWithNil(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	logger.Info("nil error", Error(nil))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, exists := lines[0][""]
	assert.False(t, exists)
}

func TestLoggerWithNamespace(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("warden"))

	logger.WithNamespace("guard").Info("ns")
	logger.Info("root")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warden.guard", lines[0][NamespaceKey])
	assert.Equal(t, "warden", lines[1][NamespaceKey])
}

func TestLoggerWith(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	child := logger.With(String("component", "cache")).WithNamespace("cache")
	sibling := logger.With(String("component", "breaker"))

	child.Info("a")
	sibling.Info("b")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "cache", lines[0]["component"])
	assert.Equal(t, "cache", lines[0][NamespaceKey])
	assert.Equal(t, "breaker", lines[1]["component"])
}

func TestLoggerWithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithStandardContext())

	ctx := context.WithValue(context.Background(), "request_id", "req-1")
	logger.InfoContext(ctx, "ctx")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0]["request_id"])
	_, hasTrace := lines[0]["trace_id"]
	assert.False(t, hasTrace)
}

func TestAddSource(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: "info", Format: "json", Output: "buffer", AddSource: true}, withBuffer(&buf))
	require.NoError(t, err)

	logger.Info("where")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	caller, ok := lines[0]["caller"].(string)
	require.True(t, ok)
	assert.Contains(t, caller, "clog_test.go")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, level)
	assert.Equal(t, "warn", level.String())

	_, err = ParseLevel("nope")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("ignored")
	assert.Same(t, logger, logger.WithNamespace("x"))
	assert.NoError(t, logger.SetLevel(DebugLevel))
}
