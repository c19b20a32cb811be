package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"chat-archive-parser/internal/adapters/parser"
	"chat-archive-parser/internal/cache"
	"chat-archive-parser/internal/core/services"
	applog "chat-archive-parser/internal/log"
	"chat-archive-parser/internal/pkg/config"
	"chat-archive-parser/internal/server"
	"chat-archive-parser/internal/server/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	configPath := flag.String("config", config.DefaultPath, "path to config.yml")
	flag.Parse()

	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера
	logger := applog.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// 4. Инициализация зависимостей
	sessions := server.NewSessionStore(logger)
	parseCache := cache.NewParseCache()
	parserSvc := parser.NewTranscriptParser(parser.WithLocation(loc), parser.WithLogger(logger))
	resolverSvc := services.NewReferenceService(logger)
	splitterSvc := services.NewSplitService(services.WithSplitLocation(loc), services.WithSplitLogger(logger))
	loader := usecase.NewLoadArchiveUseCase(cfg, loc, parserSvc, resolverSvc, parseCache, logger)

	// 5. Создание HTTP-сервера
	srv, err := server.New(cfg, loader, splitterSvc, sessions, parseCache, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 6. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		logger.Info("Starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("Signal received, shutting down...")
	case <-serverDone:
		return errors.New("server stopped unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	logger.Info("Application exited gracefully")
	return nil
}
