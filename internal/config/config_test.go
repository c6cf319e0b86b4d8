package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RESERPIX/authstore/internal/models"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.Fsync)
	assert.False(t, cfg.Storage.SecondaryIndex)
	assert.Equal(t, 12, cfg.Security.BCryptCost)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	settings := cfg.DefaultSettings()
	assert.Equal(t, models.DefaultSettings(), settings)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AUTHSTORE_STORAGE_DATA_DIR", "/var/lib/authstore")
	t.Setenv("AUTHSTORE_AUTH_SESSION_TTL_HOURS", "6")
	t.Setenv("AUTHSTORE_LOGGING_LEVEL", "debug")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/authstore", cfg.Storage.DataDir)
	assert.Equal(t, 6, cfg.Auth.SessionTTLHours)
	assert.Equal(t, 6, cfg.DefaultSettings().Session.SessionTTLHours)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("AUTHSTORE_STORAGE_DATA_DIR", "/from/env")
	t.Setenv("AUTHSTORE_LOGGING_FORMAT", "text")

	flags := parseFlags(t, "--data-dir", "/from/flag", "--bcrypt-cost", "5", "--fsync=false")

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.Storage.DataDir)
	assert.Equal(t, 5, cfg.Security.BCryptCost)
	assert.False(t, cfg.Storage.Fsync)
	// Флаг не задан, остается значение окружения
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authstore.yaml")
	content := `
storage:
  data_dir: /srv/auth
  secondary_index: true
security:
  bcrypt_cost: 10
auth:
  password_min_length: 12
  require_special: true
  max_login_attempts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(parseFlags(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "/srv/auth", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.SecondaryIndex)
	assert.Equal(t, 10, cfg.Security.BCryptCost)

	settings := cfg.DefaultSettings()
	assert.Equal(t, 12, settings.Password.MinLength)
	assert.True(t, settings.Password.RequireSpecial)
	assert.Equal(t, 3, settings.RateLimit.MaxLoginAttempts)
	// Не указанные в файле ключи берутся из значений по умолчанию
	assert.Equal(t, 15, settings.RateLimit.LockoutMinutes)
}

func TestLoadErrors(t *testing.T) {
	t.Run("bcrypt cost out of range", func(t *testing.T) {
		t.Setenv("AUTHSTORE_SECURITY_BCRYPT_COST", "3")
		_, err := Load(nil)
		assert.ErrorContains(t, err, "bcrypt_cost")
	})

	t.Run("empty data dir", func(t *testing.T) {
		_, err := Load(parseFlags(t, "--data-dir", ""))
		assert.ErrorContains(t, err, "data_dir")
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.yaml")
		_, err := Load(parseFlags(t, "--config", missing))
		assert.Error(t, err)
	})
}
