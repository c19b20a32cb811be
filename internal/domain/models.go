package domain

import (
	"errors"
	"io"
	"regexp"
	"sync"
	"time"
)

var (
	// ErrMalformedArchive - архив не удалось прочитать как zip-контейнер.
	ErrMalformedArchive = errors.New("malformed archive")
	// ErrTranscriptNotFound - в архиве нет текстового файла переписки.
	ErrTranscriptNotFound = errors.New("transcript not found")
	// ErrInvalidRange - начало интервала позже его конца.
	ErrInvalidRange = errors.New("invalid time range")
	// ErrEntryUnavailable - у записи архива нет источника данных.
	ErrEntryUnavailable = errors.New("archive entry has no data source")
)

// MessageRecord представляет одно сообщение, восстановленное из текста переписки.
type MessageRecord struct {
	Datetime        time.Time  `json:"datetime"`
	Sender          string     `json:"sender"`
	Text            string     `json:"text"`
	SourceEntryName string     `json:"source_entry_name"`
	MediaRefs       []MediaRef `json:"media_refs,omitempty"`
}

// MediaRef - ссылка сообщения на вложение, найденное в архиве.
type MediaRef struct {
	Filename string    `json:"filename"`
	Kind     MediaKind `json:"kind"`
}

// EntryHandle - невладеющая ссылка на одну запись архива.
// Байты читаются только при вызове Open.
type EntryHandle struct {
	Name     string
	Modified time.Time
	IsDir    bool
	Size     int64
	open     func() (io.ReadCloser, error)
}

// NewEntryHandle создает ссылку на запись с отложенным чтением.
func NewEntryHandle(name string, modified time.Time, isDir bool, size int64, open func() (io.ReadCloser, error)) EntryHandle {
	return EntryHandle{
		Name:     name,
		Modified: modified,
		IsDir:    isDir,
		Size:     size,
		open:     open,
	}
}

// Open открывает поток с распакованными байтами записи.
func (h EntryHandle) Open() (io.ReadCloser, error) {
	if h.open == nil {
		return nil, ErrEntryUnavailable
	}
	return h.open()
}

// Base возвращает имя записи без каталогов.
func (h EntryHandle) Base() string {
	return BaseName(h.Name)
}

// Blob владеет байтами материализованного ресурса до вызова Release.
type Blob struct {
	mu       sync.RWMutex
	data     []byte
	released bool
}

// NewBlob забирает срез во владение.
func NewBlob(data []byte) *Blob {
	return &Blob{data: data}
}

// Bytes возвращает содержимое; второй результат false, если blob уже освобожден.
func (b *Blob) Bytes() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return nil, false
	}
	return b.data, true
}

// Release отпускает байты. Повторный вызов ничего не делает.
func (b *Blob) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	b.released = true
}

// Released сообщает, был ли blob освобожден.
func (b *Blob) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}

// LoadedResource - материализованное вложение, находящееся в кэше загрузчика.
type LoadedResource struct {
	Blob        *Blob
	Filename    string
	Kind        MediaKind
	ContentType string
	Size        int64
}

// LoaderStats - снимок счетчиков пула загрузки вложений.
type LoaderStats struct {
	Active       int `json:"active"`
	Queued       int `json:"queued"`
	PeakActive   int `json:"peak_active"`
	Materialized int `json:"materialized"`
	Cached       int `json:"cached"`
}

// SplitOptions описывает, какую часть архива нужно выгрузить.
type SplitOptions struct {
	// Start и End - закрытый интервал, обе границы включены.
	Start time.Time
	End   time.Time
	// IncludeChat - записывать ли отфильтрованную переписку.
	IncludeChat bool
	// IncludeMedia - копировать ли вложения.
	IncludeMedia bool
	// MediaExtensions переопределяет набор расширений (без точки). Пустой - встроенный набор.
	MediaExtensions []string
	// ChatFilenameCandidates - шаблоны имени файла переписки в порядке приоритета.
	ChatFilenameCandidates []*regexp.Regexp
}

// DefaultChatFilenameCandidates: сначала каноническое имя, затем любой .txt в корне архива.
func DefaultChatFilenameCandidates() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)(^|/)_chat\.txt$`),
		regexp.MustCompile(`(?i)^[^/\\]+\.txt$`),
	}
}

// NewSplitOptions возвращает опции со значениями по умолчанию для интервала.
func NewSplitOptions(start, end time.Time) SplitOptions {
	return SplitOptions{
		Start:                  start,
		End:                    end,
		IncludeChat:            true,
		IncludeMedia:           true,
		MediaExtensions:        DefaultMediaExtensions(),
		ChatFilenameCandidates: DefaultChatFilenameCandidates(),
	}
}

// SplitReport - сводка по результату выгрузки.
type SplitReport struct {
	TranscriptName string `json:"transcript_name,omitempty"`
	KeptBlocks     int    `json:"kept_blocks"`
	DroppedBlocks  int    `json:"dropped_blocks"`
	KeptMedia      int    `json:"kept_media"`
	DroppedMedia   int    `json:"dropped_media"`
}

// Participant - автор сообщений переписки со сводной статистикой.
type Participant struct {
	Name        string    `json:"name"`
	Messages    int       `json:"messages"`
	Attachments int       `json:"attachments"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// ParticipantSummary - авторы в порядке первого появления и уникальные @-упоминания.
type ParticipantSummary struct {
	Participants []Participant `json:"participants"`
	Mentions     []string      `json:"mentions"`
}
