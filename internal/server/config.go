// config.go - Environment configuration, read once at startup.
//
// All configuration is resolved into an AppConfig before the server is
// constructed and validated fail-fast, so handlers never read env vars
// at call time and tests can inject fixed values.
package server

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// baseAllowedOrigins are the origins the lecsy web app is served from.
// Extra origins (preview deploys, staging) come from LECSY_EXTRA_ORIGINS.
var baseAllowedOrigins = []string{
	"https://lecsy.app",
	"https://www.lecsy.app",
}

// AppConfig holds every runtime setting the server needs.
type AppConfig struct {
	Addr    string
	Env     string // "development" or "production"
	BaseURL string

	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string

	DatabaseURL string

	AllowedOrigins []string
	ExtraOrigins   []string

	// Object storage for lecture audio.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Completion provider for summaries and exam generation.
	CompletionBaseURL string
	CompletionAPIKey  string
	CompletionModel   string

	// Free-tier monthly AI summary allowance.
	FreeSummariesPerMonth int
}

// DevMode reports whether the process is running in development mode.
func (c AppConfig) DevMode() bool {
	return c.Env != "production"
}

// LoadConfig reads configuration from the environment.
func LoadConfig() AppConfig {
	cfg := AppConfig{
		Addr:    getenvDefault("LECSY_ADDR", ":8080"),
		Env:     getenvDefault("LECSY_ENV", "development"),
		BaseURL: getenvDefault("LECSY_BASE_URL", "http://localhost:8080"),

		SessionSecret: os.Getenv("LECSY_SESSION_SECRET"),
		SessionTTL:    12 * time.Hour,
		CookieName:    getenvDefault("LECSY_COOKIE_NAME", "lecsy_session"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		MinioEndpoint:  getenvDefault("LECSY_MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: os.Getenv("LECSY_MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("LECSY_MINIO_SECRET_KEY"),
		MinioBucket:    getenvDefault("LECSY_MINIO_BUCKET", "lecsy-audio"),
		MinioUseSSL:    os.Getenv("LECSY_MINIO_USE_SSL") == "true",

		CompletionBaseURL: getenvDefault("LECSY_COMPLETION_BASE_URL", "https://api.openai.com/v1"),
		CompletionAPIKey:  os.Getenv("LECSY_COMPLETION_API_KEY"),
		CompletionModel:   getenvDefault("LECSY_COMPLETION_MODEL", "gpt-4o-mini"),

		FreeSummariesPerMonth: getenvInt("LECSY_FREE_SUMMARIES_PER_MONTH", 5),
	}

	cfg.AllowedOrigins = baseAllowedOrigins
	if extra := os.Getenv("LECSY_EXTRA_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.ExtraOrigins = append(cfg.ExtraOrigins, o)
			}
		}
	}

	if ttl := os.Getenv("LECSY_SESSION_TTL_HOURS"); ttl != "" {
		if h, err := strconv.Atoi(ttl); err == nil && h > 0 {
			cfg.SessionTTL = time.Duration(h) * time.Hour
		}
	}

	return cfg
}

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate checks the configuration and returns every problem found, so
// an operator sees all misconfigurations at once instead of one per restart.
func (c AppConfig) Validate() []ConfigValidationError {
	var errs []ConfigValidationError

	add := func(field, msg string) {
		errs = append(errs, ConfigValidationError{Field: field, Message: msg})
	}

	if c.Env != "development" && c.Env != "production" {
		add("LECSY_ENV", "must be development or production")
	}
	if c.SessionSecret == "" {
		add("LECSY_SESSION_SECRET", "must be set")
	} else if len(c.SessionSecret) < 32 {
		add("LECSY_SESSION_SECRET", "must be at least 32 characters")
	}
	if c.DatabaseURL == "" {
		add("DATABASE_URL", "must be set")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		add("LECSY_BASE_URL", "must be a valid URL")
	}
	for _, o := range c.ExtraOrigins {
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add("LECSY_EXTRA_ORIGINS", "entry is not a valid origin: "+o)
		}
	}
	if !c.DevMode() {
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			add("LECSY_MINIO_ACCESS_KEY", "object storage credentials required in production")
		}
		if c.CompletionAPIKey == "" {
			add("LECSY_COMPLETION_API_KEY", "must be set in production")
		}
	}
	if c.FreeSummariesPerMonth < 0 {
		add("LECSY_FREE_SUMMARIES_PER_MONTH", "must not be negative")
	}

	return errs
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
