// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it,
// and returns the resulting Config alongside the viper instance used for watching.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// missing env files are fine; real deployments rely on the environment
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// Watch re-reads the config file on change and invokes onReload with the fresh
// Config. Reloads that fail to parse or validate are logged and discarded; the
// previously loaded configuration stays in effect.
func Watch(v *viper.Viper, log *slog.Logger, onReload func(*Config)) {
	if v == nil || onReload == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))

		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			log.Error("config reload failed to unmarshal", slog.Any("error", err))
			return
		}

		validate := validator.New(validator.WithRequiredStructEnabled())
		if err := validate.Struct(cfg); err != nil {
			log.Error("config reload failed validation", slog.Any("error", err))
			return
		}

		onReload(&cfg)
	})
	v.WatchConfig()
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("bot.mode", "webhook")
	v.SetDefault("bot.listen_addr", ":8443")
	v.SetDefault("bot.timeout", "10s")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("network.call_timeout", "30s")
	v.SetDefault("login.max_attempts", 5)
	v.SetDefault("login.attempt_ttl", "10m")
	v.SetDefault("login.sweep_interval", "5m")
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("jobs.concurrency", 4)
	v.SetDefault("jobs.sweep_cron", "*/5 * * * *")
	v.SetDefault("jobs.audit_cron", "*/30 * * * *")
	v.SetDefault("i18n.dir", "locales")
	v.SetDefault("i18n.default_lang", "en")
}
