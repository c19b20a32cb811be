// Package chrono содержит общую арифметику дат для разбора меток времени экспорта.
package chrono

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TranscriptYearPivot - граница двузначного года для строк переписки.
	TranscriptYearPivot = 50
	// FilenameYearPivot - граница двузначного года для дат в именах файлов.
	FilenameYearPivot = 70
)

// ExpandYear превращает двузначный год в четырехзначный: меньше pivot - 2000-е, иначе 1900-е.
func ExpandYear(year, pivot int) int {
	if year >= 100 {
		return year
	}
	if year < pivot {
		return 2000 + year
	}
	return 1900 + year
}

// To24Hour переводит 12-часовое время в 24-часовое. Пустой meridiem означает, что час уже 24-часовой.
func To24Hour(hour int, meridiem string) (int, bool) {
	m := strings.ToLower(strings.TrimSpace(meridiem))
	if m == "" {
		return hour, hour >= 0 && hour < 24
	}
	if hour < 1 || hour > 12 {
		return 0, false
	}
	h := hour % 12
	if strings.HasPrefix(m, "p") {
		h += 12
	}
	return h, true
}

// Date собирает время и отвергает несуществующие даты (31 апреля, 25 часов).
func Date(year, month, day, hour, minute, second int, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Atoi разбирает необязательную числовую группу регулярного выражения; пустая строка - ноль.
func Atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// InRange проверяет попадание в закрытый интервал [start, end].
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// DateLayout - формат границы интервала без времени.
const DateLayout = "2006-01-02"

// ParseBound разбирает границу интервала: RFC 3339, "2006-01-02 15:04:05" или дату.
// Для даты без времени endOfDay выбирает последний момент дня, иначе полночь.
func ParseBound(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q: want RFC3339 or %s", s, DateLayout)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
