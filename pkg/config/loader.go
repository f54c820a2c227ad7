// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// missing env files are fine
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = fmt.Sprintf("./configs/%s.yaml", env)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// WatchConfig re-decodes the config file on change and passes the result to onChange.
// Invalid edits are reported through onError and otherwise ignored.
func WatchConfig(v *viper.Viper, onChange func(*Config), onError func(error)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}

		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct constraints and the postgres section when it is in use.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if cfg.Storage.Driver == DriverPostgres {
		if err := validate.Struct(cfg.Database); err != nil {
			return fmt.Errorf("validate database config: %w", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "botforge.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", 10*time.Second)
	v.SetDefault("ai.model", "gemini-pro")
	v.SetDefault("ai.timeout", 20*time.Second)
	v.SetDefault("miniapp.path_segment", "/bot/")
	v.SetDefault("miniapp.init_data_ttl", 24*time.Hour)
	v.SetDefault("analytics.mode", AnalyticsModeSync)
	v.SetDefault("analytics.queue_concurrency", 5)
	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("idempotency.cleanup_interval", time.Hour)
	v.SetDefault("cache.bot_ttl", 5*time.Minute)
	v.SetDefault("economy.coin_name", "Coin")
	v.SetDefault("economy.coin_symbol", "💎")
	v.SetDefault("economy.initial_balance", 0)
	v.SetDefault("economy.tap_reward", 1)
	v.SetDefault("economy.max_energy", 1000)
	v.SetDefault("economy.energy_recharge_rate", 1)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.taps", 20)
	v.SetDefault("rate_limit.window", time.Second)
	v.SetDefault("rate_limit.sweep_interval", time.Minute)
}
