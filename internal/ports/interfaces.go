package ports

import (
	"context"

	"chat-archive-parser/internal/domain"
)

// DataSource определяет интерфейс для получения байтов архива.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// TranscriptParser превращает текст переписки в упорядоченный список сообщений.
type TranscriptParser interface {
	Parse(text, entryName string) []domain.MessageRecord
}

// MediaLookup - поиск записей архива по ключу индекса.
type MediaLookup interface {
	Lookup(key string) (domain.EntryHandle, bool)
	Keys() []string
}

// ReferenceResolver находит в тексте сообщений упоминания вложений и связывает их с индексом.
type ReferenceResolver interface {
	Resolve(ctx context.Context, records []domain.MessageRecord, index MediaLookup) []domain.MessageRecord
}

// MediaLoader лениво материализует вложения и держит их в кэше до явного освобождения.
type MediaLoader interface {
	Resolve(ctx context.Context, filename string) (*domain.LoadedResource, bool)
	Release(filename string)
	Cleanup()
	Close()
	Stats() domain.LoaderStats
}

// Splitter создает новый архив из части исходного.
type Splitter interface {
	Split(ctx context.Context, data []byte, opts domain.SplitOptions) ([]byte, domain.SplitReport, error)
}

// Exporter определяет интерфейс для вывода результата.
type Exporter interface {
	// Export принимает список сообщений и выводит их.
	Export(records []domain.MessageRecord) error
}

// ParticipantExtractor собирает список участников переписки.
type ParticipantExtractor interface {
	ExtractParticipants(records []domain.MessageRecord) domain.ParticipantSummary
}
