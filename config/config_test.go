package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.HTTP.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage.Type)
	assert.Equal(t, "app_session", cfg.Session.Cookie)
	assert.Equal(t, 30*time.Second, cfg.Availability.CacheTTL)
	assert.Equal(t, 5, cfg.Engine.RetryAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.RetryBaseDelay)
	assert.Zero(t, cfg.Engine.CheckoutGrace)
	assert.Zero(t, cfg.Engine.OverdueSweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Engine.TxTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("ENGINE_CHECKOUT_GRACE", "15m")
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("ADMIN_EMAILS", "Root@Example.com, ops@example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, 15*time.Minute, cfg.Engine.CheckoutGrace)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.IsAdminEmail("root@example.com"))
	assert.True(t, cfg.IsAdminEmail("ops@example.com"))
	assert.False(t, cfg.IsAdminEmail("student@example.com"))
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  retry_attempts: 2\nlog_level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Engine.RetryAttempts)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "sqlite")
	_, err := Load("")
	assert.ErrorContains(t, err, "storage.type")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "app", Password: "p ss'", Name: "loans", SSLMode: "disable"}
	assert.Equal(t, `host=db port=5433 user=app dbname=loans sslmode=disable password='p ss\''`, d.DSN())
}
