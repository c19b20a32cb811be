package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chat-archive-parser/internal/adapters/exporter"
	"chat-archive-parser/internal/adapters/source"
	"chat-archive-parser/internal/cache"
	"chat-archive-parser/internal/core/services"
	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/pkg/chrono"
	"chat-archive-parser/internal/pkg/config"
	"chat-archive-parser/internal/ports"
	"chat-archive-parser/internal/server/usecase"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ArchiveLoader определяет интерфейс для варианта использования, который открывает архивы.
type ArchiveLoader interface {
	LoadArchive(ctx context.Context, data []byte) (*usecase.LoadedArchive, error)
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	loc        *time.Location
	sessions   *SessionStore
	cacheStore *cache.ParseCache
	loader     ArchiveLoader
	splitter   ports.Splitter
	people     ports.ParticipantExtractor
	log        *slog.Logger
	stop       context.CancelFunc
}

// archiveSummary - ответ с описанием загруженного архива.
type archiveSummary struct {
	ID             string             `json:"id"`
	Hash           string             `json:"hash"`
	TranscriptName string             `json:"transcript_name"`
	Messages       int                `json:"messages"`
	MediaEntries   int                `json:"media_entries"`
	Cached         bool               `json:"cached"`
	CreatedAt      time.Time          `json:"created_at"`
	ExpiresAt      time.Time          `json:"expires_at"`
	Loader         domain.LoaderStats `json:"loader"`
}

type pagination struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

type messagesPage struct {
	Pagination pagination             `json:"pagination"`
	Data       []domain.MessageRecord `json:"data"`
}

// splitRequest - тело запроса на выгрузку части архива. Границы в RFC 3339 или YYYY-MM-DD.
type splitRequest struct {
	Start                string   `json:"start"`
	End                  string   `json:"end"`
	IncludeChat          *bool    `json:"include_chat"`
	IncludeMedia         *bool    `json:"include_media"`
	MediaExtensions      []string `json:"media_extensions"`
	ChatFilenamePatterns []string `json:"chat_filename_patterns"`
}

// New создает новый экземпляр Server
func New(
	cfg *config.Config,
	loader ArchiveLoader,
	splitter ports.Splitter,
	sessions *SessionStore,
	cacheStore *cache.ParseCache,
	logger *slog.Logger,
) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		loc:        loc,
		sessions:   sessions,
		cacheStore: cacheStore,
		loader:     loader,
		splitter:   splitter,
		people:     services.NewParticipantService(),
		log:        logger,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.RealIP)
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", s.handleHealth)

	// Маршруты API
	chiRouter.Route("/api/v1/archives", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleSummary)
			r.Delete("/", s.handleDelete)
			r.Get("/messages", s.handleMessages)
			r.Get("/participants", s.handleParticipants)
			r.Get("/media/{name}", s.handleMedia)
			r.Delete("/media/{name}", s.handleReleaseMedia)
			r.Post("/split", s.handleSplit)
			r.Get("/export.xlsx", s.handleExport)
		})
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	// Тикеры очистки останавливаются в Shutdown
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	interval := cfg.CleanupInterval()
	if interval <= 0 {
		interval = config.DefaultCleanupInterval
	}
	s.sessions.StartCleanupTicker(ctx, interval)
	s.cacheStore.StartCleanupTicker(ctx, interval)

	return s, nil
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера и освобождает все сессии
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	err := s.HTTPServer.Shutdown(ctx)
	s.stop()
	s.sessions.CloseAll()
	return err
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	session, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Архив не найден", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func summarize(session *Session) archiveSummary {
	a := session.Archive
	return archiveSummary{
		ID:             session.ID,
		Hash:           a.Hash,
		TranscriptName: a.TranscriptName,
		Messages:       len(a.Records),
		MediaEntries:   a.Index.EntryCount(),
		Cached:         a.Cached,
		CreatedAt:      session.CreatedAt,
		ExpiresAt:      session.ExpiresAt,
		Loader:         a.Loader.Stats(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"cached":   s.cacheStore.Len(),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))

	// Разбор мультипарт-формы
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Архив слишком большой", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Не удалось разобрать форму", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Не удалось получить файл из формы", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := source.NewReaderSource(file, limit).Fetch()
	if errors.Is(err, source.ErrTooLarge) {
		http.Error(w, "Архив слишком большой", http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, "Не удалось прочитать загруженный файл", http.StatusBadRequest)
		return
	}

	loaded, err := s.loader.LoadArchive(r.Context(), data)
	if errors.Is(err, domain.ErrMalformedArchive) {
		s.log.WarnContext(r.Context(), "Rejected malformed archive", "filename", header.Filename, "error", err)
		http.Error(w, "Файл не является zip-архивом", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to load archive", "filename", header.Filename, "error", err)
		http.Error(w, "Не удалось обработать архив", http.StatusInternalServerError)
		return
	}

	session := s.sessions.Create(loaded, s.cfg.SessionTTL())
	s.log.InfoContext(r.Context(), "Session created", "session_id", session.ID, "filename", header.Filename, "size", len(data))
	s.writeJSON(w, http.StatusCreated, summarize(session))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, summarize(session))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		http.Error(w, "Архив не найден", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parsePositive читает необязательный положительный параметр запроса.
func parsePositive(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	page, err := parsePositive(r, "page", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pageSize, err := parsePositive(r, "page_size", defaultPageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pageSize = min(pageSize, maxPageSize)

	records := session.Archive.Records
	total := len(records)
	start, end := total, total
	// Сравнение до умножения: огромный page не должен переполнить смещение.
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
		end = min(start+pageSize, total)
	}

	s.writeJSON(w, http.StatusOK, messagesPage{
		Pagination: pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  (total + pageSize - 1) / pageSize, // Округление вверх
		},
		Data: append([]domain.MessageRecord{}, records[start:end]...),
	})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.people.ExtractParticipants(session.Archive.Records))
}

func mediaName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	name := mediaName(r)
	res, found := session.Archive.Loader.Resolve(r.Context(), name)
	if !found {
		http.Error(w, "Вложение не найдено", http.StatusNotFound)
		return
	}
	data, live := res.Blob.Bytes()
	if !live {
		// Освобождено между Resolve и чтением
		http.Error(w, "Вложение освобождено", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", res.Filename))
	w.Header().Set("X-Media-Kind", string(res.Kind))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.WarnContext(r.Context(), "Failed to write media", "name", name, "error", err)
	}
}

func (s *Server) handleReleaseMedia(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	session.Archive.Loader.Release(mediaName(r))
	w.WriteHeader(http.StatusNoContent)
}

// splitOptions переводит запрос в опции выгрузки, подставляя значения по умолчанию.
func (s *Server) splitOptions(req splitRequest) (domain.SplitOptions, error) {
	start, err := chrono.ParseBound(req.Start, s.loc, false)
	if err != nil {
		return domain.SplitOptions{}, fmt.Errorf("start: %w", err)
	}
	end, err := chrono.ParseBound(req.End, s.loc, true)
	if err != nil {
		return domain.SplitOptions{}, fmt.Errorf("end: %w", err)
	}

	opts := domain.NewSplitOptions(start, end)
	if req.IncludeChat != nil {
		opts.IncludeChat = *req.IncludeChat
	}
	if req.IncludeMedia != nil {
		opts.IncludeMedia = *req.IncludeMedia
	}
	if len(req.MediaExtensions) > 0 {
		opts.MediaExtensions = req.MediaExtensions
	}
	if len(req.ChatFilenamePatterns) > 0 {
		opts.ChatFilenameCandidates = make([]*regexp.Regexp, 0, len(req.ChatFilenamePatterns))
		for _, p := range req.ChatFilenamePatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return domain.SplitOptions{}, fmt.Errorf("chat_filename_patterns: %w", err)
			}
			opts.ChatFilenameCandidates = append(opts.ChatFilenameCandidates, re)
		}
	}
	return opts, nil
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
		return
	}
	opts, err := s.splitOptions(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, report, err := s.splitter.Split(r.Context(), session.Archive.Data, opts)
	if errors.Is(err, domain.ErrInvalidRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "Split failed", "session_id", session.ID, "error", err)
		http.Error(w, "Не удалось выгрузить архив", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "chat_"+opts.Start.Format("20060102")+"_"+opts.End.Format("20060102")+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Header().Set("X-Kept-Blocks", strconv.Itoa(report.KeptBlocks))
	w.Header().Set("X-Dropped-Blocks", strconv.Itoa(report.DroppedBlocks))
	w.Header().Set("X-Kept-Media", strconv.Itoa(report.KeptMedia))
	w.Header().Set("X-Dropped-Media", strconv.Itoa(report.DroppedMedia))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		s.log.WarnContext(r.Context(), "Failed to write split archive", "session_id", session.ID, "error", err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "chat_"+session.ID+".xlsx"))
	if err := exporter.NewExcelExporter(w, s.log).Export(session.Archive.Records); err != nil {
		s.log.ErrorContext(r.Context(), "Excel export failed", "session_id", session.ID, "error", err)
	}
}
