package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/ports"
)

// JSONExporter реализует интерфейс Exporter для вывода сообщений в JSON.
type JSONExporter struct {
	out io.Writer
}

// NewJSONExporter создает новый экземпляр JSONExporter.
func NewJSONExporter(out io.Writer) ports.Exporter {
	return &JSONExporter{out: out}
}

// Export записывает массив сообщений с отступами. Пустой список - это [], а не null.
func (e *JSONExporter) Export(records []domain.MessageRecord) error {
	if records == nil {
		records = []domain.MessageRecord{}
	}
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}
	return nil
}
