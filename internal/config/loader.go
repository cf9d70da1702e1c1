package config

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// lookupFunc returns the raw value for a setting, or "" when unset.
type lookupFunc func(name string) string

// Load reads configuration from environment variables, then the secrets file.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	path, explicit := secretsPath()
	secrets, err := LoadSecrets(path, explicit)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return LoadWith(secrets)
}

// LoadWith reads configuration from the environment, falling back to secrets.
func LoadWith(secrets Secrets) (*Config, error) {
	cfg := &Config{}

	// The environment wins over the secrets file for every name, aliases included.
	sources := []lookupFunc{os.Getenv, func(name string) string { return secrets[name] }}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), sources); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from sources, in order.
func loadStruct(v reflect.Value, sources []lookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, sources); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		value := lookupField(sources, envName, envAlt)

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookupField tries the primary name then the alternate in each source
// before moving on to the next source.
func lookupField(sources []lookupFunc, name, alt string) string {
	for _, lookup := range sources {
		if v := lookup(name); v != "" {
			return v
		}
		if alt == "" {
			continue
		}
		if v := lookup(alt); v != "" {
			return v
		}
	}
	return ""
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Backend validation
	base := strings.TrimSpace(c.Backend.BaseURL)
	if base == "" {
		errs = append(errs, "BACKEND_BASE_URL is required")
	} else if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		errs = append(errs, fmt.Sprintf("BACKEND_BASE_URL (%q) must start with http:// or https://", base))
	}
	if c.Backend.HealthTimeout <= 0 {
		errs = append(errs, "BACKEND_HEALTH_TIMEOUT must be positive")
	}
	if c.Backend.AnalyzeTimeout <= 0 {
		errs = append(errs, "BACKEND_ANALYZE_TIMEOUT must be positive")
	}

	// Analyze validation
	if c.Analyze.MinRows <= 0 {
		errs = append(errs, "ANALYZE_MIN_ROWS must be positive")
	}
	if c.Analyze.MaxRows < c.Analyze.MinRows {
		errs = append(errs, fmt.Sprintf("ANALYZE_MAX_ROWS (%d) must be >= ANALYZE_MIN_ROWS (%d)",
			c.Analyze.MaxRows, c.Analyze.MinRows))
	}
	if c.Analyze.DefaultRows < c.Analyze.MinRows || c.Analyze.DefaultRows > c.Analyze.MaxRows {
		errs = append(errs, fmt.Sprintf("ANALYZE_DEFAULT_ROWS (%d) must be between ANALYZE_MIN_ROWS and ANALYZE_MAX_ROWS",
			c.Analyze.DefaultRows))
	}
	if c.Analyze.MaxConcurrent <= 0 {
		errs = append(errs, "ANALYZE_MAX_CONCURRENT must be positive")
	}
	if c.Analyze.MaxWait <= 0 {
		errs = append(errs, "ANALYZE_MAX_WAIT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.PreviewRows <= 0 {
		errs = append(errs, "UPLOAD_PREVIEW_ROWS must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout > 0 && c.Server.RequestTimeout < c.Backend.AnalyzeTimeout {
		errs = append(errs, fmt.Sprintf("SERVER_REQUEST_TIMEOUT (%s) must be >= BACKEND_ANALYZE_TIMEOUT (%s)",
			c.Server.RequestTimeout, c.Backend.AnalyzeTimeout))
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < c.Backend.AnalyzeTimeout {
		errs = append(errs, fmt.Sprintf("SERVER_WRITE_TIMEOUT (%s) must be >= BACKEND_ANALYZE_TIMEOUT (%s)",
			c.Server.WriteTimeout, c.Backend.AnalyzeTimeout))
	}

	for _, proxy := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy))
		}
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.AnalyzeLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_ANALYZE must be positive when rate limiting is enabled")
	}

	// Database validation (only when run history is enabled)
	if c.Database.Enabled() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	db := "disabled"
	if c.Database.Enabled() {
		db = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Backend: {BaseURL: %q, HealthTimeout: %s, AnalyzeTimeout: %s}, ",
		c.Backend.BaseURL, c.Backend.HealthTimeout, c.Backend.AnalyzeTimeout))
	b.WriteString(fmt.Sprintf("Analyze: {DefaultRows: %d, MinRows: %d, MaxRows: %d, MaxConcurrent: %d}, ",
		c.Analyze.DefaultRows, c.Analyze.MinRows, c.Analyze.MaxRows, c.Analyze.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d}, ", db, c.Database.MaxConns))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
