// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables (falling back to an optional
// YAML secrets file) with sensible defaults and validates all settings on startup
// to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Backend  BackendConfig
	Analyze  AnalyzeConfig
	Upload   UploadConfig
	Server   ServerConfig
	Rate     RateLimitConfig
	CORS     CORSConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// BackendConfig holds settings for the remote analysis backend.
type BackendConfig struct {
	// BaseURL is the backend root; trailing slashes are stripped by the client.
	// COLAB_API_BASE is accepted for compatibility with older deployments.
	BaseURL string `env:"BACKEND_BASE_URL" envAlt:"COLAB_API_BASE" default:"http://localhost:5002"`

	// HealthTimeout bounds GET /health (default: 30s)
	HealthTimeout time.Duration `env:"BACKEND_HEALTH_TIMEOUT" default:"30s"`

	// AnalyzeTimeout bounds POST /analyze (default: 120s)
	AnalyzeTimeout time.Duration `env:"BACKEND_ANALYZE_TIMEOUT" default:"120s"`
}

// AnalyzeConfig holds defaults and limits for analyze requests.
type AnalyzeConfig struct {
	// DefaultRows is the row limit offered to the operator (default: 200)
	DefaultRows int `env:"ANALYZE_DEFAULT_ROWS" default:"200"`

	// MinRows and MaxRows bound the row limit (default: 10-2000)
	MinRows int `env:"ANALYZE_MIN_ROWS" default:"10"`
	MaxRows int `env:"ANALYZE_MAX_ROWS" default:"2000"`

	// DefaultPrompt prefills the message field.
	DefaultPrompt string `env:"ANALYZE_DEFAULT_PROMPT" default:"Summarize the provided data and highlight key risks."`

	// MaxConcurrent is the number of analyze calls allowed in flight (default: 1)
	MaxConcurrent int `env:"ANALYZE_MAX_CONCURRENT" default:"1"`

	// MaxWait is how long a request waits for a free analyze slot (default: 5s)
	MaxWait time.Duration `env:"ANALYZE_MAX_WAIT" default:"5s"`
}

// UploadConfig holds workbook upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// PreviewRows is the number of rows shown in the preview (default: 25)
	PreviewRows int `env:"UPLOAD_PREVIEW_ROWS" default:"25"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout must outlast BACKEND_ANALYZE_TIMEOUT (default: 150s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"150s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 140s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"140s"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For
	// headers are honored. Empty means client headers are ignored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// AnalyzeLimit is requests per minute for analyze endpoints (default: 10)
	AnalyzeLimit int `env:"RATE_LIMIT_ANALYZE" default:"10"`
}

// CORSConfig holds cross-origin settings for the JSON API.
type CORSConfig struct {
	// AllowedOrigins is a comma-separated list; empty disables CORS headers.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// DatabaseConfig holds the optional run-history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables run history.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// Enabled reports whether run history should be stored.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
