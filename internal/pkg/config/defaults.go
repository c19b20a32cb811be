package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Loader defaults
	DefaultLoaderPoolSize  = 5
	DefaultLoaderQueueSize = 256

	// Session defaults
	DefaultSessionTTL      = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute

	// Processing defaults
	DefaultMaxUploadSizeMB = 100
	DefaultTimezone        = "UTC"
	DefaultCacheTTL        = 60 * time.Minute

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
