package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-archive-parser/internal/domain"
)

func records(texts ...string) []domain.MessageRecord {
	out := make([]domain.MessageRecord, 0, len(texts))
	for _, text := range texts {
		out = append(out, domain.MessageRecord{Sender: "Alice", Text: text})
	}
	return out
}

func TestParseCache(t *testing.T) {
	t.Run("Запись и чтение из кэша", func(t *testing.T) {
		c := NewParseCache()
		ttl := 1 * time.Minute

		c.Put("key", records("one", "two"), "_chat.txt", ttl)

		res, found := c.Get("key")
		require.True(t, found)
		assert.Equal(t, records("one", "two"), res.Records)
		assert.Equal(t, "_chat.txt", res.TranscriptName)
		assert.WithinDuration(t, time.Now().Add(ttl), res.ExpiresAt, 1*time.Second)
	})

	t.Run("Возвращается копия списка", func(t *testing.T) {
		c := NewParseCache()
		c.Put("key", records("one"), "", time.Minute)

		res, _ := c.Get("key")
		res.Records[0].Text = "changed"

		again, _ := c.Get("key")
		assert.Equal(t, "one", again.Records[0].Text)
	})

	t.Run("Чтение несуществующего ключа", func(t *testing.T) {
		c := NewParseCache()
		_, found := c.Get("missing")
		assert.False(t, found)
	})

	t.Run("Чтение просроченного ключа", func(t *testing.T) {
		c := NewParseCache()
		c.Put("expired", records("x"), "", -1*time.Second)

		_, found := c.Get("expired")
		assert.False(t, found)
	})

	t.Run("Очистка просроченных ключей", func(t *testing.T) {
		c := NewParseCache()
		c.Put("expired", records("x"), "", -1*time.Minute)
		c.Put("valid", records("y"), "", 1*time.Minute)

		c.CleanupExpired()

		assert.Equal(t, 1, c.Len())
		_, found := c.Get("valid")
		assert.True(t, found, "Действительный элемент не должен быть удален")
	})
}

func TestStartCleanupTicker(t *testing.T) {
	c := NewParseCache()
	c.Put("expired", records("x"), "", 50*time.Millisecond)
	c.Put("valid", records("y"), "", 1*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.StartCleanupTicker(ctx, 100*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 1 }, 2*time.Second, 20*time.Millisecond,
		"Просроченный элемент должен быть удален таймером")

	_, found := c.Get("valid")
	assert.True(t, found, "Действительный элемент должен остаться")
}

func TestHashBytes(t *testing.T) {
	// SHA256 для "hello world"
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", HashBytes([]byte("hello world")))
	assert.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
}
