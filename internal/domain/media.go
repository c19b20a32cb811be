package domain

import (
	"path"
	"strings"
)

// MediaKind - тип вложения.
type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindSticker  MediaKind = "sticker"
	MediaKindDocument MediaKind = "document"
	MediaKindAudio    MediaKind = "audio"
	MediaKindVideo    MediaKind = "video"
)

// TranscriptExtension - расширение текстового файла переписки.
const TranscriptExtension = ".txt"

var (
	ImageExtensions    = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "heic", "heif", "tgs"}
	VideoExtensions    = []string{"mp4", "mov", "avi", "webm", "3gp", "mkv"}
	AudioExtensions    = []string{"mp3", "wav", "ogg", "m4a", "aac", "opus"}
	DocumentExtensions = []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx"}
)

var kindByExtension = func() map[string]MediaKind {
	m := make(map[string]MediaKind)
	for _, e := range ImageExtensions {
		m[e] = MediaKindImage
	}
	for _, e := range VideoExtensions {
		m[e] = MediaKindVideo
	}
	for _, e := range AudioExtensions {
		m[e] = MediaKindAudio
	}
	for _, e := range DocumentExtensions {
		m[e] = MediaKindDocument
	}
	return m
}()

// DefaultMediaExtensions возвращает копию встроенного набора расширений.
func DefaultMediaExtensions() []string {
	all := make([]string, 0, len(kindByExtension))
	all = append(all, ImageExtensions...)
	all = append(all, VideoExtensions...)
	all = append(all, AudioExtensions...)
	all = append(all, DocumentExtensions...)
	return all
}

// ExtensionSet нормализует список расширений (регистр, ведущая точка) в множество.
func ExtensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

// BaseName отрезает каталоги, понимая оба вида разделителей.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimRight(name, "/")
	if name == "" {
		return ""
	}
	return path.Base(name)
}

// Extension возвращает расширение в нижнем регистре без точки.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(BaseName(name)), "."))
}

// StripExtension возвращает базовое имя без расширения.
func StripExtension(name string) string {
	base := BaseName(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsMediaExtension проверяет расширение по встроенному набору.
func IsMediaExtension(ext string) bool {
	_, ok := kindByExtension[strings.ToLower(ext)]
	return ok
}

// IsTranscript проверяет, является ли запись текстом переписки.
func IsTranscript(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), TranscriptExtension)
}

// KindFromFilename определяет тип по расширению. Имена со словом sticker,
// префиксом STK- и анимированные .tgs считаются стикерами.
func KindFromFilename(name string) MediaKind {
	base := strings.ToLower(BaseName(name))
	ext := Extension(base)
	kind, ok := kindByExtension[ext]
	if !ok {
		return MediaKindDocument
	}
	if kind == MediaKindImage && (ext == "tgs" || strings.HasPrefix(base, "stk-") || strings.Contains(base, "sticker")) {
		return MediaKindSticker
	}
	return kind
}
