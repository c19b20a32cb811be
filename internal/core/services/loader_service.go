package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/singleflight"

	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/ports"
)

var (
	// ErrMediaNotFound - для имени не нашлось записи ни точным, ни нечетким поиском.
	ErrMediaNotFound = errors.New("media not found")
	// ErrLoaderClosed - загрузчик остановлен и больше не принимает задачи.
	ErrLoaderClosed = errors.New("loader closed")
)

// LoaderConfig хранит конфигурацию для LoaderService.
type LoaderConfig struct {
	// PoolSize — сколько записей может распаковываться одновременно.
	PoolSize int
	// QueueSize — емкость очереди ожидающих задач.
	QueueSize int
}

// LoaderOption — функциональная опция для настройки LoaderService.
type LoaderOption func(*LoaderService)

// WithPoolSize устанавливает количество одновременных воркеров.
func WithPoolSize(n int) LoaderOption {
	return func(s *LoaderService) {
		if n > 0 {
			s.config.PoolSize = n
		}
	}
}

// WithQueueSize устанавливает емкость очереди задач.
func WithQueueSize(n int) LoaderOption {
	return func(s *LoaderService) {
		if n > 0 {
			s.config.QueueSize = n
		}
	}
}

// WithLoaderLogger устанавливает логгер для загрузчика.
func WithLoaderLogger(l *slog.Logger) LoaderOption {
	return func(s *LoaderService) {
		if l != nil {
			s.log = l
		}
	}
}

var _ ports.MediaLoader = (*LoaderService)(nil)

type loadResult struct {
	res *domain.LoadedResource
	err error
}

type loadTask struct {
	filename string
	done     chan loadResult
}

// LoaderService лениво материализует вложения из архива.
//
// Жизненный цикл: индекс построен -> любое число Resolve/Release -> Cleanup -> Close.
// Одновременные запросы одного имени объединяются в одну задачу, задачи выполняет
// фиксированный пул воркеров в порядке поступления.
type LoaderService struct {
	index  ports.MediaLookup
	config LoaderConfig
	log    *slog.Logger

	group singleflight.Group
	tasks chan loadTask
	wg    sync.WaitGroup

	// sendMu не дает закрыть канал задач, пока в него кто-то пишет.
	sendMu sync.RWMutex
	closed bool

	mu           sync.Mutex
	cache        map[string]*domain.LoadedResource
	active       int
	queued       int
	peak         int
	materialized int
}

// NewLoaderService создает загрузчик поверх индекса и запускает пул воркеров.
func NewLoaderService(index ports.MediaLookup, opts ...LoaderOption) *LoaderService {
	s := &LoaderService{
		index: index,
		config: LoaderConfig{
			PoolSize:  5,
			QueueSize: 256,
		},
		log:   slog.Default(),
		cache: make(map[string]*domain.LoadedResource),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tasks = make(chan loadTask, s.config.QueueSize)
	for i := 0; i < s.config.PoolSize; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Resolve возвращает материализованное вложение. Если его нет в кэше и оно уже загружается,
// вызывающий получает результат той же задачи. Отмена ctx прекращает только ожидание,
// начатая распаковка доводится до конца и попадает в кэш.
func (s *LoaderService) Resolve(ctx context.Context, filename string) (*domain.LoadedResource, bool) {
	key := NormalizeKey(filename)
	if key == "" {
		return nil, false
	}
	if res, ok := s.cached(key); ok {
		return res, true
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// Задача могла завершиться между проверкой кэша и входом в группу.
		if res, ok := s.cached(key); ok {
			return res, nil
		}
		return s.enqueue(key)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, false
		}
		res, _ := r.Val.(*domain.LoadedResource)
		return res, res != nil
	case <-ctx.Done():
		s.log.DebugContext(ctx, "Stopped waiting for media", "filename", key, "error", ctx.Err())
		return nil, false
	}
}

// Release удаляет завершенную запись из кэша и освобождает ее байты.
// Для отсутствующего ключа ничего не делает; загружающиеся задачи не затрагивает.
func (s *LoaderService) Release(filename string) {
	key := NormalizeKey(filename)

	s.mu.Lock()
	res, ok := s.cache[key]
	if ok {
		delete(s.cache, key)
	}
	s.mu.Unlock()

	if ok {
		res.Blob.Release()
		s.log.Debug("Media released", "filename", key)
	}
}

// Cleanup освобождает все закэшированные ресурсы.
func (s *LoaderService) Cleanup() {
	s.mu.Lock()
	released := s.cache
	s.cache = make(map[string]*domain.LoadedResource)
	s.mu.Unlock()

	for _, res := range released {
		res.Blob.Release()
	}
	if len(released) > 0 {
		s.log.Debug("Media cache cleaned up", "released", len(released))
	}
}

// Close останавливает пул. Уже поставленные задачи выполняются до конца.
func (s *LoaderService) Close() {
	s.sendMu.Lock()
	if s.closed {
		s.sendMu.Unlock()
		return
	}
	s.closed = true
	close(s.tasks)
	s.sendMu.Unlock()

	s.wg.Wait()
}

// Stats возвращает текущие счетчики пула.
func (s *LoaderService) Stats() domain.LoaderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.LoaderStats{
		Active:       s.active,
		Queued:       s.queued,
		PeakActive:   s.peak,
		Materialized: s.materialized,
		Cached:       len(s.cache),
	}
}

func (s *LoaderService) cached(key string) (*domain.LoadedResource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.cache[key]
	return res, ok
}

func (s *LoaderService) enqueue(key string) (*domain.LoadedResource, error) {
	task := loadTask{filename: key, done: make(chan loadResult, 1)}

	s.sendMu.RLock()
	if s.closed {
		s.sendMu.RUnlock()
		return nil, ErrLoaderClosed
	}
	s.mu.Lock()
	s.queued++
	s.mu.Unlock()
	s.tasks <- task
	s.sendMu.RUnlock()

	r := <-task.done
	return r.res, r.err
}

func (s *LoaderService) worker() {
	defer s.wg.Done()
	for task := range s.tasks {
		s.mu.Lock()
		s.queued--
		s.active++
		if s.active > s.peak {
			s.peak = s.active
		}
		s.mu.Unlock()

		res, err := s.safeMaterialize(task.filename)

		s.mu.Lock()
		s.active--
		if err == nil {
			s.materialized++
			s.cache[task.filename] = res
		}
		s.mu.Unlock()

		switch {
		case errors.Is(err, ErrMediaNotFound):
			s.log.Debug("Media not found in archive", "filename", task.filename)
		case err != nil:
			s.log.Warn("Failed to materialize media", "filename", task.filename, "error", err)
		}
		task.done <- loadResult{res: res, err: err}
	}
}

// safeMaterialize не дает панике в одной записи остановить воркер.
func (s *LoaderService) safeMaterialize(filename string) (res *domain.LoadedResource, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic while materializing %s: %v", filename, r)
		}
	}()
	return s.materialize(filename)
}

func (s *LoaderService) materialize(filename string) (*domain.LoadedResource, error) {
	entry, ok := s.index.Lookup(filename)
	if !ok {
		entry, ok = s.fuzzyLookup(filename)
	}
	if !ok {
		return nil, ErrMediaNotFound
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", entry.Name, err)
	}

	return &domain.LoadedResource{
		Blob:        domain.NewBlob(data),
		Filename:    entry.Base(),
		Kind:        domain.KindFromFilename(entry.Name),
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
	}, nil
}

// fuzzyLookup сравнивает имя без расширения со всеми ключами индекса на вхождение
// в любую сторону и берет первый ключ в порядке регистрации.
func (s *LoaderService) fuzzyLookup(filename string) (domain.EntryHandle, bool) {
	base := strings.ToLower(domain.StripExtension(filename))
	if base == "" {
		return domain.EntryHandle{}, false
	}
	for _, key := range s.index.Keys() {
		k := strings.ToLower(key)
		if strings.Contains(k, base) || strings.Contains(base, k) {
			return s.index.Lookup(key)
		}
	}
	return domain.EntryHandle{}, false
}
