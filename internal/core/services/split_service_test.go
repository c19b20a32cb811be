package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-archive-parser/internal/adapters/archive"
	"chat-archive-parser/internal/domain"
)

type zipEntry struct {
	name     string
	modified time.Time
	body     string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	for _, e := range entries {
		require.NoError(t, w.WriteEntry(e.name, e.modified, strings.NewReader(e.body)))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func entryNames(t *testing.T, data []byte) map[string]string {
	t.Helper()
	arc, err := archive.Open(data, time.UTC)
	require.NoError(t, err)
	out := make(map[string]string)
	for _, e := range arc.Entries() {
		body, err := archive.ReadEntry(e)
		require.NoError(t, err)
		out[e.Name] = string(body)
	}
	return out
}

const splitTranscript = "Messages are end-to-end encrypted\n" +
	"[01/01/2024, 10:00:00] Alice: Happy new year\n" +
	"still january first\n" +
	"[05/01/2024, 12:00:00] Bob: mid week\n" +
	"second line of mid week\n" +
	"[10/01/2024, 09:00:00] Alice: too late"

func TestSplitService_Split(t *testing.T) {
	svc := NewSplitService(WithSplitLogger(discardLogger()))

	source := buildZip(t,
		zipEntry{name: "_chat.txt", body: splitTranscript},
		zipEntry{name: "IMG-20240105-WA0001.jpg", body: "in"},
		zipEntry{name: "IMG-20240120-WA0002.jpg", body: "out"},
		zipEntry{name: "photo.jpg", modified: day(4).Add(15 * time.Hour), body: "by mtime"},
		zipEntry{name: "scan.png", body: "no time"},
		zipEntry{name: "notes.bin", body: "not media"},
	)

	t.Run("Оставляет блоки и вложения из интервала", func(t *testing.T) {
		opts := domain.NewSplitOptions(day(3), day(8))

		out, report, err := svc.Split(context.Background(), source, opts)
		require.NoError(t, err)

		entries := entryNames(t, out)
		assert.Equal(t, "[05/01/2024, 12:00:00] Bob: mid week\nsecond line of mid week", entries["_chat.txt"])
		assert.Contains(t, entries, "IMG-20240105-WA0001.jpg")
		assert.Contains(t, entries, "photo.jpg")
		assert.NotContains(t, entries, "IMG-20240120-WA0002.jpg")
		assert.NotContains(t, entries, "scan.png")
		assert.NotContains(t, entries, "notes.bin")

		assert.Equal(t, domain.SplitReport{
			TranscriptName: "_chat.txt",
			KeptBlocks:     1,
			DroppedBlocks:  2,
			KeptMedia:      2,
			DroppedMedia:   2,
		}, report)
	})

	t.Run("Без переписки выгружаются только вложения", func(t *testing.T) {
		opts := domain.NewSplitOptions(day(3), day(8))
		opts.IncludeChat = false

		out, report, err := svc.Split(context.Background(), source, opts)
		require.NoError(t, err)

		entries := entryNames(t, out)
		assert.NotContains(t, entries, "_chat.txt")
		assert.Len(t, entries, 2)
		assert.Empty(t, report.TranscriptName)
	})

	t.Run("Без вложений выгружается только переписка", func(t *testing.T) {
		opts := domain.NewSplitOptions(day(1), day(31))
		opts.IncludeMedia = false

		out, _, err := svc.Split(context.Background(), source, opts)
		require.NoError(t, err)

		entries := entryNames(t, out)
		require.Len(t, entries, 1)
		assert.NotContains(t, entries["_chat.txt"], "Messages are end-to-end encrypted")
		assert.Contains(t, entries["_chat.txt"], "too late")
	})

	t.Run("Номер снимка камеры не считается датой", func(t *testing.T) {
		data := buildZip(t,
			zipEntry{name: "DSC_010203.jpg", modified: day(5).Add(9 * time.Hour), body: "camera"},
			zipEntry{name: "P1010203.JPG", modified: day(6), body: "compact"},
		)

		out, report, err := svc.Split(context.Background(), data, domain.NewSplitOptions(day(3), day(8)))
		require.NoError(t, err)

		entries := entryNames(t, out)
		assert.Contains(t, entries, "DSC_010203.jpg")
		assert.Contains(t, entries, "P1010203.JPG")
		assert.Equal(t, 2, report.KeptMedia)
	})

	t.Run("Архив без переписки не является ошибкой", func(t *testing.T) {
		data := buildZip(t, zipEntry{name: "IMG-20240105-WA0001.jpg", body: "in"})

		out, report, err := svc.Split(context.Background(), data, domain.NewSplitOptions(day(1), day(31)))
		require.NoError(t, err)
		assert.Len(t, entryNames(t, out), 1)
		assert.Equal(t, 1, report.KeptMedia)
	})

	t.Run("Собственный список расширений", func(t *testing.T) {
		opts := domain.NewSplitOptions(day(1), day(31))
		opts.IncludeChat = false
		opts.MediaExtensions = []string{"png"}

		out, report, err := svc.Split(context.Background(), source, opts)
		require.NoError(t, err)
		assert.Empty(t, entryNames(t, out))
		assert.Equal(t, 1, report.DroppedMedia)
	})

	t.Run("Начало позже конца", func(t *testing.T) {
		_, _, err := svc.Split(context.Background(), source, domain.NewSplitOptions(day(8), day(3)))
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	})

	t.Run("Испорченный архив", func(t *testing.T) {
		_, _, err := svc.Split(context.Background(), []byte("definitely not a zip"), domain.NewSplitOptions(day(1), day(2)))
		assert.ErrorIs(t, err, domain.ErrMalformedArchive)
	})

	t.Run("Отмененный контекст", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := svc.Split(ctx, source, domain.NewSplitOptions(day(1), day(31)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSplitService_FilterTranscript(t *testing.T) {
	svc := NewSplitService(WithSplitLogger(discardLogger()))

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "Формат с дефисом",
			text: "1/2/24, 10:00 - Alice: early\n5/1/24, 10:00 - Bob: kept\n6/1/24, 23:59 - Bob: kept too",
			want: "5/1/24, 10:00 - Bob: kept\n6/1/24, 23:59 - Bob: kept too",
		},
		{
			name: "Формат с AM/PM",
			text: "5/1/2024, 9:15 PM - Bob: evening\n12/1/2024, 9:15 AM - Bob: later",
			want: "5/1/2024, 9:15 PM - Bob: evening",
		},
		{
			name: "Дата через точку",
			text: "05.01.2024, 08:30 - Carol: hi\nmore\n20.01.2024, 08:30 - Carol: bye",
			want: "05.01.2024, 08:30 - Carol: hi\nmore",
		},
		{
			name: "ISO дата",
			text: "2024-01-05 08:30:00 Dave: hi\n2023-12-31 08:30:00 Dave: old",
			want: "2024-01-05 08:30:00 Dave: hi",
		},
		{
			name: "Сохраняет возврат каретки",
			text: "[05/01/2024, 12:00:00] Bob: a\r\nb\r",
			want: "[05/01/2024, 12:00:00] Bob: a\r\nb\r",
		},
		{
			name: "Нет меток времени",
			text: "just\nplain text",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := svc.FilterTranscript(tt.text, day(3), day(8).Add(24*time.Hour-time.Second))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitService_MediaTimestamp(t *testing.T) {
	svc := NewSplitService(WithSplitLogger(discardLogger()))
	mtime := time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filename string
		modified time.Time
		want     time.Time
		ok       bool
	}{
		{"Имя WhatsApp", "IMG-20240105-WA0001.jpg", mtime, day(5), true},
		{"Имя камеры", "VID_20240105_143000.mp4", mtime, day(5).Add(14*time.Hour + 30*time.Minute), true},
		{"Снимок экрана", "Screenshot 2024-01-05 at 14.30.00.png", mtime, day(5).Add(14*time.Hour + 30*time.Minute), true},
		{"Имя Telegram", "photo_1@05-01-2024_14-30-00.jpg", mtime, day(5).Add(14*time.Hour + 30*time.Minute), true},
		{"Только дата", "scan-20240105.pdf", mtime, day(5), true},
		{"Короткая дата", "doc_240105.pdf", mtime, day(5), true},
		{"Короткая дата прошлого века", "doc_850105.pdf", mtime, time.Date(1985, time.January, 5, 0, 0, 0, 0, time.UTC), true},
		{"Номер снимка DSC", "DSC_010203.jpg", mtime, mtime, true},
		{"Номер снимка без разделителя", "P1010203.JPG", mtime, mtime, true},
		{"Время изменения записи", "holiday.jpg", mtime, mtime, true},
		{"Времени нет", "holiday.jpg", time.Time{}, time.Time{}, false},
		{"Несуществующая дата уходит к времени записи", "IMG-20241399-WA0001.jpg", mtime, mtime, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := domain.NewEntryHandle("media/"+tt.filename, tt.modified, false, 0, nil)
			got, ok := svc.MediaTimestamp(e)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}
