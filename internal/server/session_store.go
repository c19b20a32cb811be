package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-archive-parser/internal/server/usecase"
)

// ErrSessionNotFound - сессии нет или ее срок истек.
var ErrSessionNotFound = errors.New("session not found")

// Session - загруженный архив, доступный клиенту по идентификатору.
type Session struct {
	ID        string
	Archive   *usecase.LoadedArchive
	CreatedAt time.Time
	ExpiresAt time.Time // Для автоматической очистки
}

// SessionStore управляет хранением сессий и освобождает их ресурсы при удалении.
type SessionStore struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	log      *slog.Logger
}

// NewSessionStore создает новый экземпляр SessionStore
func NewSessionStore(logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		log:      logger,
	}
}

// Create регистрирует архив под новым идентификатором.
func (ss *SessionStore) Create(archive *usecase.LoadedArchive, ttl time.Duration) *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		Archive:   archive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	ss.mutex.Lock()
	ss.sessions[session.ID] = session
	ss.mutex.Unlock()

	return session
}

// Get извлекает сессию по ее ID. Просроченная сессия считается отсутствующей.
func (ss *SessionStore) Get(id string) (*Session, error) {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	session, exists := ss.sessions[id]
	if !exists || time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete удаляет сессию и освобождает ее вложения.
func (ss *SessionStore) Delete(id string) error {
	ss.mutex.Lock()
	session, exists := ss.sessions[id]
	delete(ss.sessions, id)
	ss.mutex.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	session.Archive.Close()
	ss.log.Info("Session deleted", "session_id", id)
	return nil
}

// Len возвращает количество сессий, включая еще не удаленные просроченные.
func (ss *SessionStore) Len() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.sessions)
}

// CleanupExpired удаляет просроченные сессии из хранилища
func (ss *SessionStore) CleanupExpired() int {
	now := time.Now()

	ss.mutex.Lock()
	var expired []*Session
	for id, session := range ss.sessions {
		if now.After(session.ExpiresAt) {
			expired = append(expired, session)
			delete(ss.sessions, id)
		}
	}
	ss.mutex.Unlock()

	// Close ждет воркеров загрузчика, поэтому вне блокировки.
	for _, session := range expired {
		session.Archive.Close()
	}
	if len(expired) > 0 {
		ss.log.Info("Expired sessions removed", "count", len(expired))
	}
	return len(expired)
}

// CloseAll закрывает все сессии. Вызывается при остановке сервера.
func (ss *SessionStore) CloseAll() {
	ss.mutex.Lock()
	all := ss.sessions
	ss.sessions = make(map[string]*Session)
	ss.mutex.Unlock()

	for _, session := range all {
		session.Archive.Close()
	}
}

// StartCleanupTicker запускает тикер для периодической очистки просроченных сессий
func (ss *SessionStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ss.CleanupExpired()
			}
		}
	}()
}
