// Package log собирает slog-логгер приложения.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DefaultMaxValueLen - предел длины строкового значения в логе, в рунах.
const DefaultMaxValueLen = 256

const ellipsis = "…"

// TruncatingHandler - обертка для slog.Handler, которая обрезает длинные строки в логах.
// Текст сообщений переписки попадает в лог целиком только до этого предела.
type TruncatingHandler struct {
	handler slog.Handler
	maxLen  int
}

// NewTruncatingHandler создает новый обработчик. maxLen <= 0 означает DefaultMaxValueLen.
func NewTruncatingHandler(handler slog.Handler, maxLen int) *TruncatingHandler {
	if maxLen <= 0 {
		maxLen = DefaultMaxValueLen
	}
	return &TruncatingHandler{
		handler: handler,
		maxLen:  maxLen,
	}
}

func (h *TruncatingHandler) truncate(s string) string {
	n := 0
	for i := range s {
		if n == h.maxLen {
			return s[:i] + ellipsis
		}
		n++
	}
	return s
}

// Enabled реализует интерфейс slog.Handler
func (h *TruncatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *TruncatingHandler) Handle(ctx context.Context, record slog.Record) error {
	// Clone делит хранилище атрибутов с оригиналом, поэтому собираем новую запись.
	r := slog.NewRecord(record.Time, record.Level, h.truncate(record.Message), record.PC)

	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(slog.Attr{
			Key:   a.Key,
			Value: h.truncateValue(a.Value),
		})
		return true
	})

	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *TruncatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clipped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		clipped[i] = slog.Attr{
			Key:   attr.Key,
			Value: h.truncateValue(attr.Value),
		}
	}
	return &TruncatingHandler{
		handler: h.handler.WithAttrs(clipped),
		maxLen:  h.maxLen,
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *TruncatingHandler) WithGroup(name string) slog.Handler {
	return &TruncatingHandler{
		handler: h.handler.WithGroup(name),
		maxLen:  h.maxLen,
	}
}

// truncateValue рекурсивно обрезает строковые значения атрибутов
func (h *TruncatingHandler) truncateValue(value slog.Value) slog.Value {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(h.truncate(value.String()))
	case slog.KindAny:
		switch v := value.Any().(type) {
		case error:
			return slog.StringValue(h.truncate(v.Error()))
		case fmt.Stringer:
			return slog.StringValue(h.truncate(v.String()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		clipped := make([]slog.Attr, len(group))
		for i, attr := range group {
			clipped[i] = slog.Attr{
				Key:   attr.Key,
				Value: h.truncateValue(attr.Value),
			}
		}
		return slog.GroupValue(clipped...)
	default:
		return value
	}
}

// ParseLevel переводит уровень из конфигурации в slog.Level. Неизвестное значение - info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создает логгер с выводом в w в формате text или json и обрезкой длинных значений.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewTruncatingHandler(handler, DefaultMaxValueLen))
}
