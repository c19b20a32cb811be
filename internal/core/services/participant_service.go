package services

import (
	"regexp"
	"strings"

	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/ports"
)

// Упоминание начинается с @ в начале текста или после пробела,
// чтобы не цеплять имена файлов вида photo@12-01-2024.
var mentionPattern = regexp.MustCompile(`(?:^|\s)@([\p{L}\p{N}_][\p{L}\p{N}_.]*[\p{L}\p{N}_]|[\p{L}\p{N}_])`)

// ParticipantService реализует интерфейс ParticipantExtractor.
type ParticipantService struct{}

// NewParticipantService создает новый экземпляр ParticipantService.
func NewParticipantService() ports.ParticipantExtractor {
	return &ParticipantService{}
}

// ExtractParticipants собирает авторов и упоминания из списка сообщений.
// Сообщения без автора (системные) не создают участника, но их упоминания учитываются.
func (s *ParticipantService) ExtractParticipants(records []domain.MessageRecord) domain.ParticipantSummary {
	summary := domain.ParticipantSummary{
		Participants: []domain.Participant{},
		Mentions:     []string{},
	}
	byName := make(map[string]int)
	seenMentions := make(map[string]bool)

	for _, rec := range records {
		sender := strings.TrimSpace(rec.Sender)
		if sender != "" {
			idx, ok := byName[sender]
			if !ok {
				idx = len(summary.Participants)
				byName[sender] = idx
				summary.Participants = append(summary.Participants, domain.Participant{
					Name:      sender,
					FirstSeen: rec.Datetime,
					LastSeen:  rec.Datetime,
				})
			}
			p := &summary.Participants[idx]
			p.Messages++
			p.Attachments += len(rec.MediaRefs)
			if rec.Datetime.Before(p.FirstSeen) {
				p.FirstSeen = rec.Datetime
			}
			if rec.Datetime.After(p.LastSeen) {
				p.LastSeen = rec.Datetime
			}
		}

		for _, m := range mentionPattern.FindAllStringSubmatch(rec.Text, -1) {
			username := m[1]
			if !seenMentions[username] {
				seenMentions[username] = true
				summary.Mentions = append(summary.Mentions, username)
			}
		}
	}

	return summary
}
