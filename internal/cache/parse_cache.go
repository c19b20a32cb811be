package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"chat-archive-parser/internal/domain"
)

// ParseResult - разобранная и связанная с вложениями переписка одного архива.
type ParseResult struct {
	Records        []domain.MessageRecord
	TranscriptName string
	ExpiresAt      time.Time
}

// ParseCache хранит результаты разбора по хешу содержимого архива,
// чтобы повторная загрузка тех же байтов не разбиралась заново.
type ParseCache struct {
	items map[string]*ParseResult
	mutex sync.RWMutex
}

// NewParseCache создает новый экземпляр ParseCache
func NewParseCache() *ParseCache {
	return &ParseCache{
		items: make(map[string]*ParseResult),
	}
}

// Get возвращает копию результата, если он есть и не просрочен.
func (c *ParseCache) Get(key string) (ParseResult, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.items[key]
	if !exists || time.Now().After(item.ExpiresAt) {
		return ParseResult{}, false
	}

	res := *item
	res.Records = slices.Clone(item.Records)
	return res, true
}

// Put сохраняет результат с указанным сроком действия.
func (c *ParseCache) Put(key string, records []domain.MessageRecord, transcriptName string, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &ParseResult{
		Records:        slices.Clone(records),
		TranscriptName: transcriptName,
		ExpiresAt:      time.Now().Add(ttl),
	}
}

// Len возвращает число элементов, включая еще не удаленные просроченные.
func (c *ParseCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// CleanupExpired удаляет просроченные элементы из кэша
func (c *ParseCache) CleanupExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (c *ParseCache) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanupExpired()
			}
		}
	}()
}

// HashBytes вычисляет SHA-256 содержимого архива в hex.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
