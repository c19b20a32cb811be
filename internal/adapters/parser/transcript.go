package parser

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/pkg/chrono"
	"chat-archive-parser/internal/ports"
)

// lineMatch - результат разбора строки с меткой времени.
type lineMatch struct {
	at     time.Time
	sender string
	text   string
}

// lineDialect описывает один формат экспорта: шаблон строки и функцию извлечения полей.
// Новые диалекты добавляются в таблицу dialects без изменения логики разбора.
type lineDialect struct {
	name    string
	pattern *regexp.Regexp
	extract func(m []string, loc *time.Location) (lineMatch, bool)
}

// Группы обоих шаблонов: день, месяц, год, час, минуты, секунды, AM/PM, отправитель, текст.
var dialects = []lineDialect{
	{
		name:    "bracketed",
		pattern: regexp.MustCompile(`^\[(\d{1,2})[/.](\d{1,2})[/.](\d{2,4}),?\s+(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s*([AaPp])\.?\s*[Mm]\.?)?\]\s*([^:]+?):\s?(.*)$`),
		extract: extractDMY,
	},
	{
		name:    "dashed",
		pattern: regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4}),?\s+(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s*([AaPp])\.?\s*[Mm]\.?)?\s+[-–]\s+([^:]+?):\s?(.*)$`),
		extract: extractDMY,
	},
}

func extractDMY(m []string, loc *time.Location) (lineMatch, bool) {
	year := chrono.ExpandYear(chrono.Atoi(m[3]), chrono.TranscriptYearPivot)
	hour, ok := chrono.To24Hour(chrono.Atoi(m[4]), m[7])
	if !ok {
		return lineMatch{}, false
	}
	at, ok := chrono.Date(year, chrono.Atoi(m[2]), chrono.Atoi(m[1]), hour, chrono.Atoi(m[5]), chrono.Atoi(m[6]), loc)
	if !ok {
		return lineMatch{}, false
	}
	return lineMatch{
		at:     at,
		sender: strings.TrimSpace(m[8]),
		text:   m[9],
	}, true
}

// Option - функциональная опция для настройки TranscriptParser.
type Option func(*TranscriptParser)

// WithLocation задает часовой пояс, в котором трактуются метки времени переписки.
func WithLocation(loc *time.Location) Option {
	return func(p *TranscriptParser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithLogger устанавливает логгер для парсера.
func WithLogger(l *slog.Logger) Option {
	return func(p *TranscriptParser) {
		if l != nil {
			p.log = l
		}
	}
}

// TranscriptParser разбирает построчный текст переписки.
type TranscriptParser struct {
	loc *time.Location
	log *slog.Logger
}

// NewTranscriptParser создает новый экземпляр TranscriptParser.
func NewTranscriptParser(opts ...Option) ports.TranscriptParser {
	p := &TranscriptParser{
		loc: time.UTC,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse разбивает текст на сообщения. Строка с меткой времени открывает новое сообщение,
// остальные строки дописываются к открытому. Строки до первого сообщения отбрасываются.
func (p *TranscriptParser) Parse(text, entryName string) []domain.MessageRecord {
	var records []domain.MessageRecord
	open := false
	dropped := 0

	for _, raw := range strings.Split(text, "\n") {
		line := CleanLine(raw)

		if match, ok := p.matchLine(line); ok {
			records = append(records, domain.MessageRecord{
				Datetime:        match.at,
				Sender:          match.sender,
				Text:            match.text,
				SourceEntryName: entryName,
			})
			open = true
			continue
		}

		if !open {
			if line != "" {
				dropped++
			}
			continue
		}

		last := &records[len(records)-1]
		if line == "" {
			last.Text += "\n"
		} else {
			last.Text += "\n" + line
		}
	}

	p.log.Debug("Transcript parsed", "entry", entryName, "messages", len(records), "preamble_lines_dropped", dropped)
	return records
}

func (p *TranscriptParser) matchLine(line string) (lineMatch, bool) {
	if line == "" {
		return lineMatch{}, false
	}
	for _, d := range dialects {
		m := d.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if match, ok := d.extract(m, p.loc); ok {
			return match, true
		}
	}
	return lineMatch{}, false
}

// CleanLine убирает перевод каретки и ведущие невидимые символы направления текста,
// а узкий и неразрывный пробелы заменяет обычным.
func CleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	line = strings.TrimLeftFunc(line, isFormatMark)
	return strings.Map(func(r rune) rune {
		if r == '\u202f' || r == '\u00a0' {
			return ' '
		}
		return r
	}, line)
}

func isFormatMark(r rune) bool {
	switch {
	case r >= '\u200b' && r <= '\u200f':
		return true
	case r >= '\u202a' && r <= '\u202e':
		return true
	case r >= '\u2066' && r <= '\u2069':
		return true
	case r == '\ufeff':
		return true
	}
	return false
}
