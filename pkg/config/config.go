package config

import (
	"fmt"
	"time"

	"github.com/botforge/botforge/pkg/redis"
)

// Config holds runtime configuration for the botforge services.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"-"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	AI          AIConfig          `mapstructure:"ai"`
	MiniApp     MiniAppConfig     `mapstructure:"miniapp"`
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Economy     EconomyConfig     `mapstructure:"economy"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

// ServerConfig configures the public HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	PublicURL       string        `mapstructure:"public_url" validate:"omitempty,url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
}

// DatabaseConfig holds PostgreSQL connection settings. It is validated only
// when the postgres driver is selected.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"required"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}

// RedisConfig enables Redis-backed locks, caches, idempotency and queues.
type RedisConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	redis.Config `mapstructure:",squash"`
}

// LoggerConfig configures the root slog logger.
type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables rotated file output.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// TelegramConfig configures outbound Bot API calls.
type TelegramConfig struct {
	APIURL  string        `mapstructure:"api_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AIConfig configures the Gemini fallback.
type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MiniAppConfig configures the mini-app surface.
type MiniAppConfig struct {
	PathSegment      string        `mapstructure:"path_segment" validate:"required"`
	ValidateInitData bool          `mapstructure:"validate_init_data"`
	InitDataTTL      time.Duration `mapstructure:"init_data_ttl"`
}

const (
	AnalyticsModeSync  = "sync"
	AnalyticsModeQueue = "queue"
)

// AnalyticsConfig selects how analytics events are persisted.
type AnalyticsConfig struct {
	Mode             string `mapstructure:"mode" validate:"omitempty,oneof=sync queue"`
	QueueConcurrency int    `mapstructure:"queue_concurrency"`
}

// IdempotencyConfig configures webhook update deduplication.
type IdempotencyConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// CacheConfig configures read caches.
type CacheConfig struct {
	BotTTL time.Duration `mapstructure:"bot_ttl"`
}

// EconomyConfig holds the mining settings a bot gets when it has none saved.
type EconomyConfig struct {
	CoinName           string `mapstructure:"coin_name" validate:"required"`
	CoinSymbol         string `mapstructure:"coin_symbol" validate:"required"`
	InitialBalance     int64  `mapstructure:"initial_balance" validate:"min=0"`
	TapReward          int64  `mapstructure:"tap_reward" validate:"min=1"`
	MaxEnergy          int64  `mapstructure:"max_energy" validate:"min=100"`
	EnergyRechargeRate int64  `mapstructure:"energy_recharge_rate" validate:"min=0"`
}

// RateLimitConfig throttles mini-app taps per bot and end-user.
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Taps          int           `mapstructure:"taps" validate:"min=0"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}
