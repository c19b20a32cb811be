package services

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/ports"
)

// candidateFamily - одно семейство шаблонов поиска упоминаний вложений.
// Если filtered, найденная строка должна пройти looksLikeFilename.
type candidateFamily struct {
	name     string
	patterns []*regexp.Regexp
	filtered bool
}

// Локализованные пометки "(файл прикреплен)" из экспорта Android.
const attachedNote = `file attached|datei angehängt|archivo adjunto|fichier joint|file allegato|arquivo anexado|bestand bijgevoegd|файл прикреплен|файл прикреплён|файл вложен`

var (
	annotationRe    = regexp.MustCompile(`(?i)\s*\(\s*(?:` + attachedNote + `)\s*\)\s*$`)
	devicePrefixRe  = regexp.MustCompile(`(?i)^(?:IMG|VID|AUD|PTT|STK|DOC)-\d{8}-WA\d+`)
	generatedNameRe = regexp.MustCompile(`(?i)^(?:\d{8}-)?(?:PHOTO|VIDEO|AUDIO|STICKER|GIF|DOCUMENT)-\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}`)
)

// Семейства проверяются по порядку, найденное накапливается.
var candidateFamilies = []candidateFamily{
	{
		name:     "bracket-tag",
		patterns: []*regexp.Regexp{regexp.MustCompile(`<[^<>:\n]+:\s*([^<>\n]+?)\s*>`)},
		filtered: true,
	},
	{
		name: "labeled",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)(?:attachment|attached file|anhang|adjunto|pièce jointe|anexo|allegato|bijlage|вложение)\s*:\s*(.+?)\s*$`),
			regexp.MustCompile(`(?im)^(.+?\(\s*(?:` + attachedNote + `)\s*\))\s*$`),
		},
		filtered: true,
	},
	{
		name: "filename-shape",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:IMG|VID|AUD|PTT|STK|DOC)-\d{8}-WA\d{4,}\.[A-Za-z0-9]{2,5}\b`),
			regexp.MustCompile(`\b(?:\d{8}-)?(?:PHOTO|VIDEO|AUDIO|STICKER|GIF)-\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}\.[A-Za-z0-9]{2,5}\b`),
			regexp.MustCompile(`\b(?:photo|video|sticker|file)_\d+@\d{2}-\d{2}-\d{4}_\d{2}-\d{2}-\d{2}\.[A-Za-z0-9]{2,5}\b`),
		},
	},
}

// ReferenceService связывает упоминания вложений в тексте сообщений с записями архива.
type ReferenceService struct {
	log *slog.Logger
}

// NewReferenceService создает новый экземпляр ReferenceService.
func NewReferenceService(logger *slog.Logger) ports.ReferenceResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReferenceService{log: logger}
}

// Resolve заполняет MediaRefs у переданных сообщений и возвращает тот же срез.
// Текст сообщений не меняется. Ненайденные упоминания только логируются.
func (s *ReferenceService) Resolve(ctx context.Context, records []domain.MessageRecord, index ports.MediaLookup) []domain.MessageRecord {
	resolved, unresolved := 0, 0

	for i := range records {
		var refs []domain.MediaRef
		seen := make(map[string]struct{})

		for _, cand := range ExtractCandidates(records[i].Text) {
			entry, ok := index.Lookup(cand)
			if !ok {
				entry, ok = index.Lookup(domain.StripExtension(cand))
			}
			if !ok {
				unresolved++
				s.log.DebugContext(ctx, "Media reference not found in archive", "candidate", cand, "sender", records[i].Sender)
				continue
			}

			name := entry.Base()
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			refs = append(refs, domain.MediaRef{Filename: name, Kind: domain.KindFromFilename(name)})
		}

		records[i].MediaRefs = refs
		resolved += len(refs)
	}

	s.log.InfoContext(ctx, "Media references resolved", "messages", len(records), "resolved", resolved, "unresolved", unresolved)
	return records
}

// ExtractCandidates возвращает очищенные базовые имена вложений, упомянутых в тексте,
// без повторов, в порядке обнаружения.
func ExtractCandidates(text string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, family := range candidateFamilies {
		for _, re := range family.patterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				raw := m[0]
				if len(m) > 1 {
					raw = m[1]
				}
				cand := cleanCandidate(raw)
				if cand == "" {
					continue
				}
				if family.filtered && !looksLikeFilename(cand) {
					continue
				}
				if _, ok := seen[cand]; ok {
					continue
				}
				seen[cand] = struct{}{}
				out = append(out, cand)
			}
		}
	}
	return out
}

// cleanCandidate снимает пометку "(file attached)", кавычки и каталоги.
func cleanCandidate(raw string) string {
	s := strings.TrimSpace(raw)
	s = annotationRe.ReplaceAllString(s, "")
	s = strings.Trim(s, "\"'`«»“” \t\u200e\u200f")
	return NormalizeKey(domain.BaseName(s))
}

func looksLikeFilename(s string) bool {
	if domain.IsMediaExtension(domain.Extension(s)) {
		return true
	}
	base := domain.BaseName(s)
	return devicePrefixRe.MatchString(base) || generatedNameRe.MatchString(base)
}
