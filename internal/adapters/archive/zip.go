// Package archive читает и пишет zip-архивы экспорта чата.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"chat-archive-parser/internal/domain"
)

// CompressionLevel - фиксированный уровень deflate для создаваемых архивов.
const CompressionLevel = 6

// Archive - открытый только для чтения архив в памяти.
type Archive struct {
	size    int64
	entries []domain.EntryHandle
}

// Open разбирает байты архива. Ошибка всегда оборачивает domain.ErrMalformedArchive.
// Время модификации без часового пояса трактуется как местное время в loc.
func Open(data []byte, loc *time.Location) (*Archive, error) {
	if loc == nil {
		loc = time.UTC
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedArchive, err)
	}

	a := &Archive{size: int64(len(data))}
	for _, f := range r.File {
		if isResourceFork(f.Name) {
			continue
		}
		a.entries = append(a.entries, domain.NewEntryHandle(
			f.Name,
			wallClock(f.Modified, loc),
			f.FileInfo().IsDir(),
			int64(f.UncompressedSize64),
			f.Open,
		))
	}
	return a, nil
}

// Entries возвращает записи в порядке их следования в архиве.
func (a *Archive) Entries() []domain.EntryHandle {
	return a.entries
}

// Size - размер исходных байтов архива.
func (a *Archive) Size() int64 {
	return a.size
}

// FindTranscript ищет файл переписки: шаблоны проверяются по очереди,
// внутри шаблона побеждает первая подходящая запись.
func (a *Archive) FindTranscript(candidates []*regexp.Regexp) (domain.EntryHandle, bool) {
	if len(candidates) == 0 {
		candidates = domain.DefaultChatFilenameCandidates()
	}
	for _, re := range candidates {
		for _, e := range a.entries {
			if e.IsDir {
				continue
			}
			if re.MatchString(e.Name) {
				return e, true
			}
		}
	}
	return domain.EntryHandle{}, false
}

// ReadEntry читает запись целиком.
func ReadEntry(h domain.EntryHandle) ([]byte, error) {
	rc, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", h.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", h.Name, err)
	}
	return data, nil
}

// Writer создает архив с фиксированным уровнем сжатия.
type Writer struct {
	zw *zip.Writer
}

// NewWriter оборачивает w.
func NewWriter(w io.Writer) *Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, CompressionLevel)
	})
	return &Writer{zw: zw}
}

// WriteEntry записывает одну запись под заданным именем.
func (w *Writer) WriteEntry(name string, modified time.Time, r io.Reader) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	dst, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}

// Close дописывает центральный каталог.
func (w *Writer) Close() error {
	return w.zw.Close()
}

// wallClock: zip без расширенной метки времени хранит время MS-DOS,
// которое читается как UTC. Переносим те же часы в loc.
// Пустая дата MS-DOS (раньше 1980 года) означает, что метки нет.
func wallClock(t time.Time, loc *time.Location) time.Time {
	if t.Year() < 1980 {
		return time.Time{}
	}
	if t.IsZero() || t.Location() != time.UTC || loc == time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func isResourceFork(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(domain.BaseName(name), "._")
}
