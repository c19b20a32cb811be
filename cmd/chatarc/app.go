package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"chat-archive-parser/internal/adapters/parser"
	"chat-archive-parser/internal/adapters/source"
	"chat-archive-parser/internal/cache"
	"chat-archive-parser/internal/core/services"
	applog "chat-archive-parser/internal/log"
	"chat-archive-parser/internal/pkg/config"
	"chat-archive-parser/internal/server/usecase"
)

// globalOptions - флаги, общие для всех команд.
type globalOptions struct {
	configPath string
	timezone   string
	logLevel   string
}

// app - зависимости одной команды.
type app struct {
	cfg    *config.Config
	loc    *time.Location
	log    *slog.Logger
	loader *usecase.LoadArchiveUseCase
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.timezone != "" {
		cfg.Processing.Timezone = opts.timezone
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	// Логи в stderr, чтобы не мешать выводу команды.
	logger := applog.NewLogger(os.Stderr, cfg.Logging.Level, "text")

	loader := usecase.NewLoadArchiveUseCase(cfg, loc,
		parser.NewTranscriptParser(parser.WithLocation(loc), parser.WithLogger(logger)),
		services.NewReferenceService(logger),
		cache.NewParseCache(),
		logger,
	)
	return &app{cfg: cfg, loc: loc, log: logger, loader: loader}, nil
}

func (a *app) readArchive(path string) ([]byte, error) {
	return source.NewFileSource(path, a.cfg.MaxUploadBytes()).Fetch()
}

// createOutput открывает файл для записи; "-" означает stdout.
func createOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

var errBinaryToTerminal = errors.New("refusing to write binary output to a terminal, pass -o <file>")

// stdoutIsTerminal подменяется в тестах.
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// createBinaryOutput работает как createOutput, но не пишет архивы и книги Excel в терминал.
func createBinaryOutput(path string) (*os.File, func() error, error) {
	if (path == "" || path == "-") && stdoutIsTerminal() {
		return nil, nil, errBinaryToTerminal
	}
	return createOutput(path)
}
