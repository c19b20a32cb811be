package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/ports"
)

// SheetName - имя листа с сообщениями.
const SheetName = "Messages"

// ExcelExporter пишет сообщения в книгу xlsx, одна строка на сообщение.
type ExcelExporter struct {
	out io.Writer
	log *slog.Logger
}

// NewExcelExporter создает новый экземпляр ExcelExporter.
func NewExcelExporter(out io.Writer, logger *slog.Logger) ports.Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelExporter{out: out, log: logger}
}

// Export строит книгу и записывает ее в out.
func (e *ExcelExporter) Export(records []domain.MessageRecord) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.log.Error("failed to close excel file", slog.String("error", err.Error()))
		}
	}()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	// Заголовки
	headers := []string{"Date", "Sender", "Text", "Attachments", "Source"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	// Данные
	for i, rec := range records {
		row := i + 2
		values := []any{
			rec.Datetime.Format(ConsoleTimeLayout),
			rec.Sender,
			rec.Text,
			attachmentList(rec.MediaRefs),
			rec.SourceEntryName,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.SetColWidth(SheetName, "C", "C", 80); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if err := f.Write(e.out); err != nil {
		return fmt.Errorf("failed to write excel: %w", err)
	}
	e.log.Debug("Excel export written", "rows", len(records))
	return nil
}

func attachmentList(refs []domain.MediaRef) string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Filename)
	}
	return strings.Join(names, ", ")
}
