package exporter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/ports"
)

// ConsoleTimeLayout - формат времени сообщения в текстовом выводе.
const ConsoleTimeLayout = "2006-01-02 15:04:05"

// ConsoleExporter реализует интерфейс Exporter для вывода сообщений в консоль.
type ConsoleExporter struct {
	out io.Writer
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter. nil означает os.Stdout.
func NewConsoleExporter(out io.Writer) ports.Exporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleExporter{out: out}
}

// Export выводит сообщения по одному, продолжения текста с отступом, вложения отдельной строкой.
func (e *ConsoleExporter) Export(records []domain.MessageRecord) error {
	var b strings.Builder

	b.WriteString("--- Chat Messages ---\n")
	if len(records) == 0 {
		b.WriteString("No messages found.\n")
	}
	for i, rec := range records {
		text := strings.ReplaceAll(rec.Text, "\n", "\n    ")
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, rec.Datetime.Format(ConsoleTimeLayout), rec.Sender, text)
		for _, ref := range rec.MediaRefs {
			fmt.Fprintf(&b, "    + %s (%s)\n", ref.Filename, ref.Kind)
		}
	}

	if _, err := io.WriteString(e.out, b.String()); err != nil {
		return fmt.Errorf("failed to write messages: %w", err)
	}
	return nil
}
