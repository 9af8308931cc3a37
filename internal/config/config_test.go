package config_test

import (
	"testing"
	"time"

	"github.com/d9705996/marknote/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every optional variable so defaults apply. t.Setenv
// restores the previous values when the test ends.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT", "WORKER_CONCURRENCY", "DB_DRIVER",
		"DB_FILE", "DB_DSN", "JWT_ACCESS_TTL", "JWT_REFRESH_TTL", "CLIENT_URL", "APP_ENV",
		"TRASH_RETENTION", "GOOGLE_CLIENT_ID", "GITHUB_CLIENT_ID", "SEED_DEMO_EMAIL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingDBDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "test-secret")
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoad_SQLiteNoDBDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "test-secret")
	_, err := config.Load()
	require.NoError(t, err)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Worker.Concurrency)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "marknote.db", cfg.DB.File)
	assert.Equal(t, "http://localhost:5173", cfg.App.ClientURL)
	assert.False(t, cfg.App.Production())
	assert.Zero(t, cfg.Trash.Retention)
	assert.False(t, cfg.OAuth.Google.Enabled())
	assert.False(t, cfg.OAuth.GitHub.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("WORKER_CONCURRENCY", "20")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("DB_FILE", "test.db")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TRASH_RETENTION", "720h")
	t.Setenv("GITHUB_CLIENT_ID", "gh-client")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Worker.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "test.db", cfg.DB.File)
	assert.True(t, cfg.App.Production())
	assert.Equal(t, 720*time.Hour, cfg.Trash.Retention)
	assert.True(t, cfg.OAuth.GitHub.Enabled())
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_ACCESS_TTL", "not-a-duration")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_TTL")
}

func TestLoad_NegativeRetention(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("TRASH_RETENTION", "-1h")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRASH_RETENTION")
}
