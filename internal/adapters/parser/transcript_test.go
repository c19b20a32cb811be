package parser

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-archive-parser/internal/adapters/archive"
)

func newTestParser() *TranscriptParser {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTranscriptParser(WithLocation(time.UTC), WithLogger(logger)).(*TranscriptParser)
}

func TestTranscriptParser_Dialects(t *testing.T) {
	p := newTestParser()

	cases := []struct {
		name   string
		line   string
		want   time.Time
		sender string
		text   string
	}{
		{
			name:   "Квадратные скобки с секундами",
			line:   "[05/01/2024, 14:03:22] Alice: Привет",
			want:   time.Date(2024, 1, 5, 14, 3, 22, 0, time.UTC),
			sender: "Alice",
			text:   "Привет",
		},
		{
			name:   "Квадратные скобки без секунд и запятой",
			line:   "[5/1/24 9:07] Bob Smith: see you",
			want:   time.Date(2024, 1, 5, 9, 7, 0, 0, time.UTC),
			sender: "Bob Smith",
			text:   "see you",
		},
		{
			name:   "Квадратные скобки с AM/PM",
			line:   "[05/01/2024, 2:03:22 PM] Alice: hi",
			want:   time.Date(2024, 1, 5, 14, 3, 22, 0, time.UTC),
			sender: "Alice",
			text:   "hi",
		},
		{
			name:   "Дефис, 24 часа",
			line:   "05/01/2024, 14:03 - Alice: hello there",
			want:   time.Date(2024, 1, 5, 14, 3, 0, 0, time.UTC),
			sender: "Alice",
			text:   "hello there",
		},
		{
			name:   "Тире и полночь в 12-часовом формате",
			line:   "05/01/2024, 12:15 am – Carol: late",
			want:   time.Date(2024, 1, 5, 0, 15, 0, 0, time.UTC),
			sender: "Carol",
			text:   "late",
		},
		{
			name:   "Узкий пробел перед PM",
			line:   "05/01/24, 1:05\u202fPM - Dave: ok",
			want:   time.Date(2024, 1, 5, 13, 5, 0, 0, time.UTC),
			sender: "Dave",
			text:   "ok",
		},
		{
			name:   "Невидимые символы в начале строки",
			line:   "\u200e\u202a[05/01/2024, 14:03:22] Alice: \u200e<attached: IMG-20240105-WA0001.jpg>",
			want:   time.Date(2024, 1, 5, 14, 3, 22, 0, time.UTC),
			sender: "Alice",
			text:   "\u200e<attached: IMG-20240105-WA0001.jpg>",
		},
		{
			name:   "Двузначный год 99",
			line:   "31/12/99, 23:59 - Eve: party",
			want:   time.Date(1999, 12, 31, 23, 59, 0, 0, time.UTC),
			sender: "Eve",
			text:   "party",
		},
		{
			name:   "Пустой текст",
			line:   "05/01/2024, 14:03 - Alice:",
			want:   time.Date(2024, 1, 5, 14, 3, 0, 0, time.UTC),
			sender: "Alice",
			text:   "",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			records := p.Parse(c.line, "_chat.txt")
			require.Len(t, records, 1)
			assert.True(t, c.want.Equal(records[0].Datetime), "got %s", records[0].Datetime)
			assert.Equal(t, c.sender, records[0].Sender)
			assert.Equal(t, c.text, records[0].Text)
			assert.Equal(t, "_chat.txt", records[0].SourceEntryName)
		})
	}
}

func TestTranscriptParser_Continuation(t *testing.T) {
	p := newTestParser()

	t.Run("Многострочное сообщение собирается из продолжений", func(t *testing.T) {
		text := "05/01/2024, 14:03 - Alice: first\r\nsecond\nthird\n05/01/2024, 14:05 - Bob: reply"
		records := p.Parse(text, "chat.txt")

		require.Len(t, records, 2)
		assert.Equal(t, "first\nsecond\nthird", records[0].Text)
		assert.Equal(t, "reply", records[1].Text)
	})

	t.Run("Пустая строка внутри сообщения сохраняется как перевод строки", func(t *testing.T) {
		text := "05/01/2024, 14:03 - Alice: first\n\nafter gap"
		records := p.Parse(text, "chat.txt")

		require.Len(t, records, 1)
		assert.Equal(t, "first\n\nafter gap", records[0].Text)
	})

	t.Run("Преамбула без метки времени отбрасывается", func(t *testing.T) {
		text := "Messages are end-to-end encrypted.\n\n05/01/2024, 14:03 - Alice: hi"
		records := p.Parse(text, "chat.txt")

		require.Len(t, records, 1)
		assert.Equal(t, "hi", records[0].Text)
	})

	t.Run("Текст без единой метки дает пустой результат", func(t *testing.T) {
		records := p.Parse("just some notes\nand more", "notes.txt")
		assert.Empty(t, records)
	})

	t.Run("Порядок сообщений совпадает с порядком в тексте", func(t *testing.T) {
		text := "06/01/2024, 10:00 - Alice: later\n05/01/2024, 10:00 - Bob: earlier"
		records := p.Parse(text, "chat.txt")

		require.Len(t, records, 2)
		assert.Equal(t, "Alice", records[0].Sender)
		assert.Equal(t, "Bob", records[1].Sender)
	})
}

func TestTranscriptParser_InvalidDates(t *testing.T) {
	p := newTestParser()

	text := "05/01/2024, 14:03 - Alice: ok\n31/02/2024, 10:00 - Bob: not a date"
	records := p.Parse(text, "chat.txt")

	require.Len(t, records, 1)
	assert.Equal(t, "ok\n31/02/2024, 10:00 - Bob: not a date", records[0].Text)
}

func TestTranscriptParser_Location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	p := NewTranscriptParser(WithLocation(loc))

	records := p.Parse("05/01/2024, 14:03 - Alice: hi", "chat.txt")

	require.Len(t, records, 1)
	assert.Equal(t, time.Date(2024, 1, 5, 11, 3, 0, 0, time.UTC), records[0].Datetime.UTC())
}

func TestCleanLine(t *testing.T) {
	assert.Equal(t, "abc", CleanLine("\ufeff\u200eabc\r"))
	assert.Equal(t, "1:05 PM", CleanLine("1:05\u202fPM"))
	assert.Equal(t, "a\u200eb", CleanLine("a\u200eb"))
}

func TestParseArchive(t *testing.T) {
	p := NewTranscriptParser()

	build := func(t *testing.T, names ...string) *archive.Archive {
		t.Helper()
		var buf bytes.Buffer
		w := archive.NewWriter(&buf)
		for _, name := range names {
			require.NoError(t, w.WriteEntry(name, time.Time{}, strings.NewReader("[05/01/2024, 12:00:00] Bob: hi from "+name)))
		}
		require.NoError(t, w.Close())
		arc, err := archive.Open(buf.Bytes(), time.UTC)
		require.NoError(t, err)
		return arc
	}

	t.Run("Разбирает найденную переписку", func(t *testing.T) {
		records, name, err := ParseArchive(p, build(t, "other.txt", "_chat.txt", "a.jpg"), nil)
		require.NoError(t, err)
		assert.Equal(t, "_chat.txt", name)
		require.Len(t, records, 1)
		assert.Equal(t, "hi from _chat.txt", records[0].Text)
		assert.Equal(t, "_chat.txt", records[0].SourceEntryName)
	})

	t.Run("Без переписки пустой результат", func(t *testing.T) {
		records, name, err := ParseArchive(p, build(t, "a.jpg"), nil)
		require.NoError(t, err)
		assert.Empty(t, name)
		assert.Empty(t, records)
	})
}
