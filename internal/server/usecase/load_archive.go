package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-archive-parser/internal/adapters/archive"
	"chat-archive-parser/internal/adapters/parser"
	"chat-archive-parser/internal/cache"
	"chat-archive-parser/internal/core/services"
	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/pkg/config"
	"chat-archive-parser/internal/ports"
)

// LoadedArchive - открытый архив: сообщения, индекс вложений и загрузчик, привязанный к индексу.
// Владелец обязан вызвать Close, когда архив больше не нужен.
type LoadedArchive struct {
	Hash           string
	Data           []byte
	TranscriptName string
	Records        []domain.MessageRecord
	Index          *services.MediaIndex
	Loader         ports.MediaLoader
	// Cached - сообщения взяты из кэша разбора.
	Cached bool
}

// Close освобождает все материализованные вложения и останавливает пул загрузки.
func (a *LoadedArchive) Close() {
	a.Loader.Cleanup()
	a.Loader.Close()
}

// LoadArchiveUseCase инкапсулирует открытие архива экспорта чата.
type LoadArchiveUseCase struct {
	cfg        *config.Config
	loc        *time.Location
	parser     ports.TranscriptParser
	resolver   ports.ReferenceResolver
	cacheStore *cache.ParseCache
	log        *slog.Logger
}

// NewLoadArchiveUseCase создает новый экземпляр LoadArchiveUseCase.
func NewLoadArchiveUseCase(
	cfg *config.Config,
	loc *time.Location,
	parser ports.TranscriptParser,
	resolver ports.ReferenceResolver,
	cacheStore *cache.ParseCache,
	logger *slog.Logger,
) *LoadArchiveUseCase {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadArchiveUseCase{
		cfg:        cfg,
		loc:        loc,
		parser:     parser,
		resolver:   resolver,
		cacheStore: cacheStore,
		log:        logger,
	}
}

// LoadArchive открывает архив, строит индекс вложений, разбирает переписку и связывает
// сообщения с вложениями. Результат разбора кэшируется по хешу содержимого.
func (uc *LoadArchiveUseCase) LoadArchive(ctx context.Context, data []byte) (*LoadedArchive, error) {
	hash := cache.HashBytes(data)

	arc, err := archive.Open(data, uc.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	index := services.NewMediaIndex(uc.log)
	index.Build(arc.Entries())

	loaded := &LoadedArchive{
		Hash:  hash,
		Data:  data,
		Index: index,
	}

	if cached, found := uc.cacheStore.Get(hash); found {
		uc.log.InfoContext(ctx, "Parse cache hit", "hash", hash)
		loaded.Records = cached.Records
		loaded.TranscriptName = cached.TranscriptName
		loaded.Cached = true
	} else {
		records, name, err := parser.ParseArchive(uc.parser, arc, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transcript: %w", err)
		}
		if name == "" {
			uc.log.WarnContext(ctx, "Transcript not found in archive", "hash", hash, "entries", len(arc.Entries()))
		}
		records = uc.resolver.Resolve(ctx, records, index)

		uc.cacheStore.Put(hash, records, name, uc.cfg.CacheTTL())
		loaded.Records = records
		loaded.TranscriptName = name
	}

	loaded.Loader = services.NewLoaderService(index,
		services.WithPoolSize(uc.cfg.Loader.PoolSize),
		services.WithQueueSize(uc.cfg.Loader.QueueSize),
		services.WithLoaderLogger(uc.log),
	)

	uc.log.InfoContext(ctx, "Archive loaded",
		"hash", hash,
		"transcript", loaded.TranscriptName,
		"messages", len(loaded.Records),
		"media", index.Len(),
		"cached", loaded.Cached,
	)
	return loaded, nil
}
