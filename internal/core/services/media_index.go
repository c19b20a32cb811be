package services

import (
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"chat-archive-parser/internal/domain"
)

// MediaIndex сопоставляет имена вложений записям архива.
// Каждая запись регистрируется под базовым именем и под базовым именем без расширения.
// Индекс перестраивается целиком при каждой загрузке архива.
type MediaIndex struct {
	mu         sync.RWMutex
	entries    map[string][]domain.EntryHandle
	keys       []string // в порядке первой регистрации
	registered int
	log        *slog.Logger
}

// NewMediaIndex создает пустой индекс.
func NewMediaIndex(logger *slog.Logger) *MediaIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaIndex{
		entries: make(map[string][]domain.EntryHandle),
		log:     logger,
	}
}

// Build очищает индекс и заполняет его заново. Каталоги, файл переписки
// и записи с неизвестным расширением пропускаются.
func (idx *MediaIndex) Build(entries []domain.EntryHandle) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = make(map[string][]domain.EntryHandle, len(entries)*2)
	idx.keys = idx.keys[:0]

	registered := 0
	for _, e := range entries {
		if e.IsDir || domain.IsTranscript(e.Name) {
			continue
		}
		if !domain.IsMediaExtension(domain.Extension(e.Name)) {
			continue
		}
		idx.add(NormalizeKey(e.Base()), e)
		idx.add(NormalizeKey(domain.StripExtension(e.Name)), e)
		registered++
	}

	idx.registered = registered
	idx.log.Debug("Media index built", "entries", len(entries), "registered", registered, "keys", len(idx.keys))
}

func (idx *MediaIndex) add(key string, e domain.EntryHandle) {
	if key == "" {
		return
	}
	if _, ok := idx.entries[key]; !ok {
		idx.keys = append(idx.keys, key)
	}
	idx.entries[key] = append(idx.entries[key], e)
}

// Lookup возвращает первую зарегистрированную запись для ключа.
func (idx *MediaIndex) Lookup(key string) (domain.EntryHandle, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	candidates := idx.entries[NormalizeKey(key)]
	if len(candidates) == 0 {
		return domain.EntryHandle{}, false
	}
	return candidates[0], true
}

// Candidates возвращает все записи под ключом, включая дубликаты.
func (idx *MediaIndex) Candidates(key string) []domain.EntryHandle {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	found := idx.entries[NormalizeKey(key)]
	out := make([]domain.EntryHandle, len(found))
	copy(out, found)
	return out
}

// Keys возвращает ключи в порядке регистрации.
func (idx *MediaIndex) Keys() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, len(idx.keys))
	copy(out, idx.keys)
	return out
}

// Len - количество ключей.
func (idx *MediaIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keys)
}

// EntryCount - количество записей архива, попавших в индекс.
func (idx *MediaIndex) EntryCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.registered
}

// Clear удаляет все ключи.
func (idx *MediaIndex) Clear() {
	idx.Build(nil)
}

// NormalizeKey приводит имя к NFC: архивы из macOS хранят имена в NFD,
// а в тексте переписки они записаны в NFC.
func NormalizeKey(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
