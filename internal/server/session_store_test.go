package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-archive-parser/internal/core/services"
	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/server/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLoadedArchive собирает архив в памяти с одним вложением photo.png.
func newLoadedArchive() *usecase.LoadedArchive {
	idx := services.NewMediaIndex(discardLogger())
	idx.Build([]domain.EntryHandle{
		domain.NewEntryHandle("photo.png", time.Time{}, false, 8, func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("\x89PNG\r\n\x1a\n"))), nil
		}),
	})
	return &usecase.LoadedArchive{
		Index:  idx,
		Loader: services.NewLoaderService(idx, services.WithPoolSize(1), services.WithLoaderLogger(discardLogger())),
	}
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Создание и чтение сессии", func(t *testing.T) {
		ss := NewSessionStore(discardLogger())
		archive := newLoadedArchive()
		defer archive.Close()

		session := ss.Create(archive, time.Minute)
		assert.NotEmpty(t, session.ID)
		assert.WithinDuration(t, time.Now().Add(time.Minute), session.ExpiresAt, time.Second)

		got, err := ss.Get(session.ID)
		require.NoError(t, err)
		assert.Same(t, session, got)
	})

	t.Run("Идентификаторы уникальны", func(t *testing.T) {
		ss := NewSessionStore(discardLogger())
		a, b := newLoadedArchive(), newLoadedArchive()
		defer a.Close()
		defer b.Close()

		assert.NotEqual(t, ss.Create(a, time.Minute).ID, ss.Create(b, time.Minute).ID)
		assert.Equal(t, 2, ss.Len())
	})

	t.Run("Несуществующая сессия", func(t *testing.T) {
		ss := NewSessionStore(discardLogger())
		_, err := ss.Get("missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, ss.Delete("missing"), ErrSessionNotFound)
	})

	t.Run("Удаление освобождает вложения и останавливает загрузчик", func(t *testing.T) {
		ss := NewSessionStore(discardLogger())
		archive := newLoadedArchive()
		session := ss.Create(archive, time.Minute)

		res, ok := archive.Loader.Resolve(ctx, "photo.png")
		require.True(t, ok)

		require.NoError(t, ss.Delete(session.ID))
		assert.True(t, res.Blob.Released())

		_, ok = archive.Loader.Resolve(ctx, "photo.png")
		assert.False(t, ok, "Закрытый загрузчик не должен принимать задачи")

		_, err := ss.Get(session.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("Просроченная сессия невидима и удаляется очисткой", func(t *testing.T) {
		ss := NewSessionStore(discardLogger())
		expired := newLoadedArchive()
		valid := newLoadedArchive()
		defer valid.Close()

		old := ss.Create(expired, -time.Second)
		fresh := ss.Create(valid, time.Minute)

		res, ok := expired.Loader.Resolve(ctx, "photo.png")
		require.True(t, ok)

		_, err := ss.Get(old.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		assert.Equal(t, 1, ss.CleanupExpired())
		assert.Equal(t, 1, ss.Len())
		assert.True(t, res.Blob.Released())

		_, err = ss.Get(fresh.ID)
		assert.NoError(t, err)
	})

	t.Run("Очистка по таймеру", func(t *testing.T) {
		ss := NewSessionStore(discardLogger())
		ss.Create(newLoadedArchive(), 20*time.Millisecond)

		tickCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		ss.StartCleanupTicker(tickCtx, 10*time.Millisecond)

		assert.Eventually(t, func() bool { return ss.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("CloseAll", func(t *testing.T) {
		ss := NewSessionStore(discardLogger())
		archive := newLoadedArchive()
		ss.Create(archive, time.Minute)

		ss.CloseAll()
		assert.Equal(t, 0, ss.Len())
		_, ok := archive.Loader.Resolve(ctx, "photo.png")
		assert.False(t, ok)
	})
}
