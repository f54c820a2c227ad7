package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: 9090
  public_url: https://bots.example.com
storage:
  driver: sqlite
  sqlite_path: /tmp/botforge-test.db
redis:
  enabled: true
  addr: localhost:6379
logger:
  level: debug
  format: text
analytics:
  mode: queue
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ReadsFileAndDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("CONFIG_FILE", writeConfig(t, testYAML))

	cfg, v, err := Load()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":9090", cfg.Server.Addr())
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, AnalyticsModeQueue, cfg.Analytics.Mode)
	assert.Equal(t, "/bot/", cfg.MiniApp.PathSegment)
	assert.Equal(t, 10*time.Second, cfg.Telegram.Timeout)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("CONFIG_FILE", writeConfig(t, testYAML))
	t.Setenv("LOGGER_LEVEL", "warn")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestValidate_PostgresRequiresDatabase(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080},
		Storage:  StorageConfig{Driver: DriverPostgres},
		Telegram: TelegramConfig{APIURL: "https://api.telegram.org"},
		MiniApp:  MiniAppConfig{PathSegment: "/bot/"},
	}

	assert.Error(t, Validate(cfg))

	cfg.Database = DatabaseConfig{Host: "localhost", Port: 5432, User: "bot", Name: "botforge"}
	assert.NoError(t, Validate(cfg))
	assert.Contains(t, cfg.Database.DSN(), "sslmode=disable")
}
