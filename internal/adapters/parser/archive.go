package parser

import (
	"fmt"
	"regexp"

	"chat-archive-parser/internal/adapters/archive"
	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/ports"
)

// ParseArchive находит в архиве файл переписки и разбирает его.
// Если переписки нет, возвращается пустой результат и пустое имя без ошибки.
func ParseArchive(p ports.TranscriptParser, arc *archive.Archive, candidates []*regexp.Regexp) ([]domain.MessageRecord, string, error) {
	entry, ok := arc.FindTranscript(candidates)
	if !ok {
		return nil, "", nil
	}

	raw, err := archive.ReadEntry(entry)
	if err != nil {
		return nil, entry.Name, fmt.Errorf("%w: %w", domain.ErrMalformedArchive, err)
	}
	return p.Parse(string(raw), entry.Name), entry.Name, nil
}
