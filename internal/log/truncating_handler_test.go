package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestTruncatingHandler_Handle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Короткое сообщение не меняется",
			input:    "Archive loaded",
			expected: "Archive loaded",
		},
		{
			name:     "Длинное сообщение обрезается",
			input:    strings.Repeat("a", 20),
			expected: strings.Repeat("a", 8) + "…",
		},
		{
			name:     "Обрезка по рунам, а не байтам",
			input:    strings.Repeat("я", 10),
			expected: strings.Repeat("я", 8) + "…",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := slog.New(NewTruncatingHandler(slog.NewJSONHandler(&buf, nil), 8))

			logger.Info(tt.input)

			assert.Equal(t, tt.expected, decodeLine(t, &buf)["msg"])
		})
	}
}

func TestTruncatingHandler_Attrs(t *testing.T) {
	t.Run("Атрибуты записи и ошибки", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewTruncatingHandler(slog.NewJSONHandler(&buf, nil), 4))

		logger.Info("m", "text", "hello world", "error", errors.New("boom boom"), "count", 123456)

		line := decodeLine(t, &buf)
		assert.Equal(t, "hell…", line["text"])
		assert.Equal(t, "boom…", line["error"])
		assert.Equal(t, float64(123456), line["count"])
	})

	t.Run("Атрибуты из With и группы", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewTruncatingHandler(slog.NewJSONHandler(&buf, nil), 4))

		logger.With("session", "abcdefgh").Info("m", slog.Group("record", slog.String("sender", "Alexander")))

		line := decodeLine(t, &buf)
		assert.Equal(t, "abcd…", line["session"])
		assert.Equal(t, map[string]any{"sender": "Alex…"}, line["record"])
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Уровень из конфигурации", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, "warn", "json")

		logger.Info("hidden")
		assert.Zero(t, buf.Len())

		logger.Warn("shown")
		assert.Equal(t, "shown", decodeLine(t, &buf)["msg"])
	})

	t.Run("Текстовый формат", func(t *testing.T) {
		var buf bytes.Buffer
		NewLogger(&buf, "debug", "text").Debug("hello", "k", "v")
		assert.Contains(t, buf.String(), "msg=hello k=v")
	})

	t.Run("ParseLevel", func(t *testing.T) {
		assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
		assert.Equal(t, slog.LevelError, ParseLevel("error"))
		assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
	})
}
