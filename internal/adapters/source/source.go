// Package source получает байты архива из файла или потока с ограничением размера.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"chat-archive-parser/internal/ports"
)

// ErrTooLarge - архив больше допустимого размера.
var ErrTooLarge = errors.New("archive exceeds size limit")

// FileSource реализует интерфейс DataSource для чтения архива с диска.
type FileSource struct {
	filePath string
	maxBytes int64
}

// NewFileSource создает новый экземпляр FileSource. maxBytes <= 0 снимает ограничение.
func NewFileSource(filePath string, maxBytes int64) ports.DataSource {
	return &FileSource{filePath: filePath, maxBytes: maxBytes}
}

// Fetch читает файл по указанному пути и возвращает его содержимое.
func (s *FileSource) Fetch() ([]byte, error) {
	if s.filePath == "" {
		return nil, fmt.Errorf("не указан путь к файлу")
	}

	info, err := os.Stat(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", s.filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", s.filePath)
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, s.filePath, info.Size(), s.maxBytes)
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.filePath, err)
	}
	return data, nil
}

// ReaderSource реализует интерфейс DataSource для потока, например загруженного файла.
// Поток читается один раз.
type ReaderSource struct {
	r        io.Reader
	maxBytes int64
}

// NewReaderSource создает новый экземпляр ReaderSource. maxBytes <= 0 снимает ограничение.
func NewReaderSource(r io.Reader, maxBytes int64) ports.DataSource {
	return &ReaderSource{r: r, maxBytes: maxBytes}
}

// Fetch дочитывает поток до конца.
func (s *ReaderSource) Fetch() ([]byte, error) {
	if s.r == nil {
		return nil, fmt.Errorf("данные не установлены")
	}

	r := s.r
	if s.maxBytes > 0 {
		// Лишний байт отличает поток ровно на пределе от превышающего его.
		r = io.LimitReader(s.r, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxBytes)
	}
	return data, nil
}
