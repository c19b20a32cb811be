package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"chat-archive-parser/internal/adapters/archive"
	"chat-archive-parser/internal/adapters/parser"
	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/pkg/chrono"
)

// stampPattern - шаблон метки времени и функция, собирающая из групп время.
type stampPattern struct {
	name    string
	re      *regexp.Regexp
	extract func(m []string, loc *time.Location) (time.Time, bool)
	// skip - имена, к которым шаблон не применяется.
	skip    *regexp.Regexp
}

// Порядковые номера снимков камер (DSC_010203, P1010203) похожи на YYMMDD.
var cameraCounterName = regexp.MustCompile(`(?i)^(?:DSC[FN]?|IMG|MVI|GOPR|GH|GX|DJI|PIC|SAM|P)[_-]?\d{6,}(?:\D|$)`)

// Форматы начала строки переписки, которые понимает разделитель архива.
// Отправитель не требуется: блок начинается с любой строки с меткой времени.
var blockPatterns = []stampPattern{
	{
		name:    "bracketed",
		re:      regexp.MustCompile(`^\[(\d{1,2})[/.](\d{1,2})[/.](\d{2,4}),?\s+(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s*([AaPp])\.?\s*[Mm]\.?)?\]`),
		extract: dmy(chrono.TranscriptYearPivot),
	},
	{
		name:    "dashed",
		re:      regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4}),?\s+(\d{1,2}):(\d{2})(?::(\d{2}))?\s+[-–]\s`),
		extract: dmy(chrono.TranscriptYearPivot),
	},
	{
		name:    "dashed-meridiem",
		re:      regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4}),?\s+(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp])\.?\s*[Mm]\.?\s+[-–]\s`),
		extract: dmy(chrono.TranscriptYearPivot),
	},
	{
		name:    "dotted",
		re:      regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2,4}),?\s+(\d{1,2}):(\d{2})(?::(\d{2}))?\b`),
		extract: dmy(chrono.TranscriptYearPivot),
	},
	{
		name:    "iso",
		re:      regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})[,T ]+(\d{1,2}):(\d{2})(?::(\d{2}))?\b`),
		extract: ymd(0),
	},
}

// Метки времени в именах файлов: сначала имена устройств, затем общая дата, затем только дата.
var filenamePatterns = []stampPattern{
	{
		name:    "whatsapp-device",
		re:      regexp.MustCompile(`(?i)^(?:IMG|VID|AUD|PTT|STK|DOC)-(\d{4})(\d{2})(\d{2})-WA\d+`),
		extract: ymd(0),
	},
	{
		name:    "camera",
		re:      regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})[_-](\d{2})(\d{2})(\d{2})(?:\D|$)`),
		extract: ymd(0),
	},
	{
		name:    "embedded",
		re:      regexp.MustCompile(`(?:^|\D)(\d{4})[-_.](\d{2})[-_.](\d{2})(?:(?:[ _T-]|\s+at\s+)(\d{2})[.:\-](\d{2})[.:\-](\d{2}))?`),
		extract: ymd(0),
	},
	{
		name:    "telegram",
		re:      regexp.MustCompile(`@(\d{2})-(\d{2})-(\d{4})_(\d{2})-(\d{2})-(\d{2})`),
		extract: dmy(chrono.FilenameYearPivot),
	},
	{
		name:    "date-only",
		re:      regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})(?:\D|$)`),
		extract: ymd(0),
	},
	{
		name:    "date-only-short",
		re:      regexp.MustCompile(`(?:^|\D)(\d{2})(\d{2})(\d{2})(?:\D|$)`),
		extract: ymd(chrono.FilenameYearPivot),
		skip:    cameraCounterName,
	},
}

func group(m []string, i int) string {
	if i < len(m) {
		return m[i]
	}
	return ""
}

// dmy собирает время из групп: день, месяц, год, час, минуты, секунды, AM/PM.
func dmy(pivot int) func(m []string, loc *time.Location) (time.Time, bool) {
	return func(m []string, loc *time.Location) (time.Time, bool) {
		hour, ok := chrono.To24Hour(chrono.Atoi(group(m, 4)), group(m, 7))
		if !ok {
			return time.Time{}, false
		}
		year := chrono.ExpandYear(chrono.Atoi(group(m, 3)), pivot)
		return chrono.Date(year, chrono.Atoi(group(m, 2)), chrono.Atoi(group(m, 1)), hour, chrono.Atoi(group(m, 5)), chrono.Atoi(group(m, 6)), loc)
	}
}

// ymd собирает время из групп: год, месяц, день, час, минуты, секунды.
// pivot используется только для двузначного года.
func ymd(pivot int) func(m []string, loc *time.Location) (time.Time, bool) {
	return func(m []string, loc *time.Location) (time.Time, bool) {
		year := chrono.Atoi(group(m, 1))
		if pivot > 0 {
			year = chrono.ExpandYear(year, pivot)
		}
		return chrono.Date(year, chrono.Atoi(group(m, 2)), chrono.Atoi(group(m, 3)),
			chrono.Atoi(group(m, 4)), chrono.Atoi(group(m, 5)), chrono.Atoi(group(m, 6)), loc)
	}
}

func matchStamp(patterns []stampPattern, s string, loc *time.Location) (time.Time, bool) {
	for _, p := range patterns {
		if p.skip != nil && p.skip.MatchString(s) {
			continue
		}
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if t, ok := p.extract(m, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// SplitOption — функциональная опция для настройки SplitService.
type SplitOption func(*SplitService)

// WithSplitLocation задает часовой пояс для меток без зоны.
func WithSplitLocation(loc *time.Location) SplitOption {
	return func(s *SplitService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSplitLogger устанавливает логгер для сервиса.
func WithSplitLogger(l *slog.Logger) SplitOption {
	return func(s *SplitService) {
		if l != nil {
			s.log = l
		}
	}
}

// SplitService выгружает из архива часть переписки и вложений за интервал времени.
// Сервис не хранит состояние и безопасен для одновременного использования.
type SplitService struct {
	loc *time.Location
	log *slog.Logger
}

// NewSplitService создает новый SplitService.
func NewSplitService(opts ...SplitOption) *SplitService {
	s := &SplitService{
		loc: time.UTC,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split строит новый архив из data по опциям. Ошибкой считаются только нечитаемый
// исходный архив, неверный интервал и сбой записи результата.
func (s *SplitService) Split(ctx context.Context, data []byte, opts domain.SplitOptions) ([]byte, domain.SplitReport, error) {
	var report domain.SplitReport

	if opts.Start.After(opts.End) {
		return nil, report, fmt.Errorf("%w: start %s is after end %s", domain.ErrInvalidRange, opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339))
	}

	arc, err := archive.Open(data, s.loc)
	if err != nil {
		return nil, report, fmt.Errorf("failed to open source archive: %w", err)
	}

	var buf bytes.Buffer
	w := archive.NewWriter(&buf)

	transcript, found := arc.FindTranscript(opts.ChatFilenameCandidates)
	switch {
	case !found:
		s.log.InfoContext(ctx, "Transcript not found, splitting media only")
	case opts.IncludeChat:
		raw, err := archive.ReadEntry(transcript)
		if err != nil {
			return nil, report, fmt.Errorf("%w: %w", domain.ErrMalformedArchive, err)
		}
		filtered, kept, dropped := s.FilterTranscript(string(raw), opts.Start, opts.End)
		if err := w.WriteEntry(transcript.Name, transcript.Modified, strings.NewReader(filtered)); err != nil {
			return nil, report, err
		}
		report.TranscriptName = transcript.Name
		report.KeptBlocks, report.DroppedBlocks = kept, dropped
	}

	if opts.IncludeMedia {
		exts := opts.MediaExtensions
		if len(exts) == 0 {
			exts = domain.DefaultMediaExtensions()
		}
		active := domain.ExtensionSet(exts)

		for _, e := range arc.Entries() {
			if err := ctx.Err(); err != nil {
				return nil, report, fmt.Errorf("split canceled: %w", err)
			}
			if e.IsDir || (found && e.Name == transcript.Name) {
				continue
			}
			if _, ok := active[domain.Extension(e.Name)]; !ok {
				continue
			}

			ts, ok := s.MediaTimestamp(e)
			if !ok || !chrono.InRange(ts, opts.Start, opts.End) {
				report.DroppedMedia++
				continue
			}
			if err := s.copyEntry(w, e); err != nil {
				return nil, report, err
			}
			report.KeptMedia++
		}
	}

	if err := w.Close(); err != nil {
		return nil, report, fmt.Errorf("failed to finalize archive: %w", err)
	}

	s.log.InfoContext(ctx, "Archive split finished",
		"transcript", report.TranscriptName,
		"kept_blocks", report.KeptBlocks,
		"dropped_blocks", report.DroppedBlocks,
		"kept_media", report.KeptMedia,
		"dropped_media", report.DroppedMedia,
		"size", buf.Len(),
	)
	return buf.Bytes(), report, nil
}

func (s *SplitService) copyEntry(w *archive.Writer, e domain.EntryHandle) error {
	rc, err := e.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", domain.ErrMalformedArchive, e.Name, err)
	}
	defer rc.Close()
	return w.WriteEntry(e.Name, e.Modified, rc)
}

// FilterTranscript оставляет только блоки, метка которых попадает в [start, end].
// Блок - строка с меткой времени и все следующие строки без метки.
// Строки до первой метки отбрасываются. Содержимое оставленных строк не меняется.
func (s *SplitService) FilterTranscript(text string, start, end time.Time) (string, int, int) {
	var out []string
	keep := false
	kept, dropped := 0, 0

	for _, line := range strings.Split(text, "\n") {
		if ts, ok := matchStamp(blockPatterns, parser.CleanLine(line), s.loc); ok {
			keep = chrono.InRange(ts, start, end)
			if keep {
				kept++
			} else {
				dropped++
			}
		}
		if keep {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), kept, dropped
}

// MediaTimestamp выводит время вложения из имени файла, а если не удалось -
// берет время изменения записи. Второй результат false, если времени нет вовсе.
func (s *SplitService) MediaTimestamp(e domain.EntryHandle) (time.Time, bool) {
	if ts, ok := matchStamp(filenamePatterns, e.Base(), s.loc); ok {
		return ts, true
	}
	if e.Modified.IsZero() {
		return time.Time{}, false
	}
	return e.Modified, true
}
