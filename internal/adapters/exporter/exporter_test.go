package exporter

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"chat-archive-parser/internal/domain"
)

func sampleRecords() []domain.MessageRecord {
	return []domain.MessageRecord{
		{
			Datetime:        time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC),
			Sender:          "Alice",
			Text:            "look\nat this",
			SourceEntryName: "_chat.txt",
			MediaRefs:       []domain.MediaRef{{Filename: "IMG-20240105-WA0001.jpg", Kind: domain.MediaKindImage}},
		},
		{
			Datetime:        time.Date(2024, time.January, 5, 12, 1, 0, 0, time.UTC),
			Sender:          "Bob",
			Text:            "nice",
			SourceEntryName: "_chat.txt",
		},
	}
}

func TestConsoleExporter(t *testing.T) {
	t.Run("Выводит сообщения и вложения", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewConsoleExporter(&buf).Export(sampleRecords()))

		out := buf.String()
		assert.Contains(t, out, "--- Chat Messages ---")
		assert.Contains(t, out, "1. [2024-01-05 12:00:00] Alice: look\n    at this\n")
		assert.Contains(t, out, "    + IMG-20240105-WA0001.jpg (image)\n")
		assert.Contains(t, out, "2. [2024-01-05 12:01:00] Bob: nice\n")
	})

	t.Run("Пустой список", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewConsoleExporter(&buf).Export(nil))
		assert.Contains(t, buf.String(), "No messages found.")
	})
}

func TestJSONExporter(t *testing.T) {
	t.Run("Сообщения", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONExporter(&buf).Export(sampleRecords()))

		var got []domain.MessageRecord
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, sampleRecords(), got)
	})

	t.Run("Пустой список это массив", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONExporter(&buf).Export(nil))
		assert.Equal(t, "[]\n", buf.String())
	})
}

func TestExcelExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, NewExcelExporter(&buf, logger).Export(sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Sender", "Text", "Attachments", "Source"}, rows[0])
	assert.Equal(t, []string{"2024-01-05 12:00:00", "Alice", "look\nat this", "IMG-20240105-WA0001.jpg", "_chat.txt"}, rows[1])
	assert.Equal(t, "Bob", rows[2][1])
}
