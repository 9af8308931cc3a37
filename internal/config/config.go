// Package config loads all runtime configuration from environment variables.
// A .env file in the working directory, when present, is loaded first; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for marknote.
type Config struct {
	HTTP   HTTPConfig
	DB     DBConfig
	Log    LogConfig
	JWT    JWTConfig
	OAuth  OAuthConfig
	App    AppConfig
	Trash  TrashConfig
	Worker WorkerConfig
	OTel   OTelConfig
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int
}

// DBConfig holds database connection configuration.
type DBConfig struct {
	Driver   string // "sqlite" (default) or "postgres"
	DSN      string // required when Driver == "postgres"
	File     string // SQLite database file path (default: "marknote.db")
	MaxConns int    // Postgres only
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string
	Format string
}

// JWTConfig holds JSON Web Token signing and expiry settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // intentional: holds JWT signing secret loaded from env
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// OAuthProvider holds the client registration for one identity provider.
// A provider with an empty ClientID is disabled.
type OAuthProvider struct {
	ClientID     string
	ClientSecret string //nolint:gosec // intentional: OAuth client secret loaded from env
	RedirectURI  string
}

// Enabled reports whether the provider has been configured.
func (p OAuthProvider) Enabled() bool { return p.ClientID != "" }

// OAuthConfig holds the Google and GitHub client registrations.
type OAuthConfig struct {
	Google OAuthProvider
	GitHub OAuthProvider
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env              string // "development" or "production"
	ClientURL        string // browser app origin; CORS and OAuth redirects
	SeedDemoEmail    string
	SeedDemoPassword string
}

// Production reports whether the app runs in production mode.
func (a AppConfig) Production() bool { return a.Env == "production" }

// TrashConfig controls automatic purging of trashed files.
type TrashConfig struct {
	Retention time.Duration // 0 disables the periodic purge
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	Concurrency int
}

// OTelConfig holds OpenTelemetry exporter settings.
type OTelConfig struct {
	OTLPEndpoint string
}

// Load reads configuration from environment variables, applies defaults,
// and returns an error if any required field is absent.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{}

	// HTTP
	cfg.HTTP.Port = envInt("HTTP_PORT", 8080)

	// DB
	cfg.DB.Driver = envStr("DB_DRIVER", "sqlite")
	cfg.DB.File = envStr("DB_FILE", "marknote.db")
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.Driver == "postgres" && cfg.DB.DSN == "" {
		return nil, errors.New("DB_DSN is required when DB_DRIVER=postgres")
	}
	cfg.DB.MaxConns = envInt("DB_MAX_CONNS", 25)

	// Log
	cfg.Log.Level = envStr("LOG_LEVEL", "info")
	cfg.Log.Format = envStr("LOG_FORMAT", "json")

	// JWT (required)
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	var err error
	cfg.JWT.AccessTTL, err = envDuration("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("JWT_ACCESS_TTL: %w", err)
	}
	cfg.JWT.RefreshTTL, err = envDuration("JWT_REFRESH_TTL", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("JWT_REFRESH_TTL: %w", err)
	}

	// OAuth
	cfg.OAuth.Google = OAuthProvider{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
	}
	cfg.OAuth.GitHub = OAuthProvider{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("GITHUB_REDIRECT_URI"),
	}

	// App
	cfg.App.Env = envStr("APP_ENV", "development")
	cfg.App.ClientURL = envStr("CLIENT_URL", "http://localhost:5173")
	cfg.App.SeedDemoEmail = os.Getenv("SEED_DEMO_EMAIL")
	cfg.App.SeedDemoPassword = os.Getenv("SEED_DEMO_PASSWORD")

	// Trash
	cfg.Trash.Retention, err = envDuration("TRASH_RETENTION", 0)
	if err != nil {
		return nil, fmt.Errorf("TRASH_RETENTION: %w", err)
	}
	if cfg.Trash.Retention < 0 {
		return nil, errors.New("TRASH_RETENTION must not be negative")
	}

	// Worker
	cfg.Worker.Concurrency = envInt("WORKER_CONCURRENCY", 10)

	// OTel
	cfg.OTel.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
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

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	return d, nil
}
