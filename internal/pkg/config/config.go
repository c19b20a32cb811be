// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath - файл конфигурации, который ищется в рабочем каталоге.
const DefaultPath = "config.yml"

// Server содержит конфигурацию сервера
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Loader содержит конфигурацию пула загрузки вложений
type Loader struct {
	PoolSize  int `json:"pool_size" yaml:"pool_size"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

// Session содержит конфигурацию хранилища сессий
type Session struct {
	TTLMinutes             int `json:"ttl_minutes" yaml:"ttl_minutes"`
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
}

// Processing содержит конфигурацию обработки
type Processing struct {
	MaxUploadMB     int    `json:"max_upload_mb" yaml:"max_upload_mb"`
	Timezone        string `json:"timezone" yaml:"timezone"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Config содержит конфигурацию приложения
type Config struct {
	Server     Server     `json:"server" yaml:"server"`
	Loader     Loader     `json:"loader" yaml:"loader"`
	Session    Session    `json:"session" yaml:"session"`
	Processing Processing `json:"processing" yaml:"processing"`
	Logging    Logging    `json:"logging" yaml:"logging"`
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем YAML-файл (если есть),
// затем переменные окружения, в том числе из .env.
func LoadConfig(path string) (*Config, error) {
	// Отсутствие .env не ошибка
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path == "" {
		path = DefaultPath
	}
	if err := loadFromYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:                   DefaultServerHost,
			Port:                   DefaultServerPort,
			ShutdownTimeoutSeconds: int(DefaultShutdownTimeout / time.Second),
		},
		Loader: Loader{
			PoolSize:  DefaultLoaderPoolSize,
			QueueSize: DefaultLoaderQueueSize,
		},
		Session: Session{
			TTLMinutes:             int(DefaultSessionTTL / time.Minute),
			CleanupIntervalMinutes: int(DefaultCleanupInterval / time.Minute),
		},
		Processing: Processing{
			MaxUploadMB:     DefaultMaxUploadSizeMB,
			Timezone:        DefaultTimezone,
			CacheTTLMinutes: int(DefaultCacheTTL / time.Minute),
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// loadFromYAML накладывает значения из YAML-файла поверх cfg. Отсутствие файла не ошибка.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}
	return nil
}

// loadFromEnv накладывает заданные переменные окружения поверх cfg.
func loadFromEnv(cfg *Config) error {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Processing.Timezone = getEnv("TIMEZONE", cfg.Processing.Timezone)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	ints := []struct {
		key string
		dst *int
	}{
		{"SERVER_PORT", &cfg.Server.Port},
		{"SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeoutSeconds},
		{"LOADER_POOL_SIZE", &cfg.Loader.PoolSize},
		{"LOADER_QUEUE_SIZE", &cfg.Loader.QueueSize},
		{"SESSION_TTL_MINUTES", &cfg.Session.TTLMinutes},
		{"SESSION_CLEANUP_INTERVAL_MINUTES", &cfg.Session.CleanupIntervalMinutes},
		{"MAX_UPLOAD_MB", &cfg.Processing.MaxUploadMB},
		{"CACHE_TTL_MINUTES", &cfg.Processing.CacheTTLMinutes},
	}
	for _, v := range ints {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("недопустимый %s: %w", v.key, err)
		}
		*v.dst = n
	}
	return nil
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ShutdownTimeout возвращает время на корректное завершение сервера.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// SessionTTL возвращает время жизни сессии.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// CleanupInterval возвращает период очистки просроченных сессий и кэша.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Session.CleanupIntervalMinutes) * time.Minute
}

// CacheTTL возвращает время жизни результата разбора в кэше.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Processing.CacheTTLMinutes) * time.Minute
}

// MaxUploadBytes возвращает предельный размер загружаемого архива.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Processing.MaxUploadMB) << 20
}

// Location возвращает часовой пояс для меток времени без зоны.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Processing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс %q: %w", c.Processing.Timezone, err)
	}
	return loc, nil
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}

	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds должно быть положительным")
	}

	if c.Loader.PoolSize <= 0 {
		return fmt.Errorf("loader.pool_size должно быть положительным")
	}

	if c.Loader.QueueSize < 0 {
		return fmt.Errorf("loader.queue_size должно быть неотрицательным")
	}

	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("session.ttl_minutes должно быть положительным целым числом")
	}

	if c.Session.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("session.cleanup_interval_minutes должно быть положительным целым числом")
	}

	if c.Processing.MaxUploadMB <= 0 {
		return fmt.Errorf("processing.max_upload_mb должно быть положительным целым числом")
	}

	if c.Processing.CacheTTLMinutes <= 0 {
		return fmt.Errorf("processing.cache_ttl_minutes должно быть положительным целым числом")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("processing.timezone: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format должен быть одним из: text, json")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
