// Package config loads the bot configuration from config.json with
// environment variable overrides. Environment variables always win so
// deployments can tweak a shared config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"forex-trading-bot/internal/api"
	"forex-trading-bot/internal/cache"
	"forex-trading-bot/internal/database"
	"forex-trading-bot/internal/entry"
	"forex-trading-bot/internal/logging"
	"forex-trading-bot/internal/schedule"
	"forex-trading-bot/internal/strategy"
)

// Config is the root configuration.
type Config struct {
	Account  string           `json:"account"`
	Symbols  []string         `json:"symbols"`
	LoopMS   int              `json:"loop_interval_ms"`
	DryRun   bool             `json:"dry_run"`
	Strategy strategy.Config  `json:"strategy"`
	Entry    entry.Config     `json:"entry"`
	Schedule schedule.Config  `json:"schedule"`
	Logging  logging.Config   `json:"logging"`
	Redis    cache.Config     `json:"redis"`
	Database database.Config  `json:"database"`
	Server   api.ServerConfig `json:"server"`
}

// LoopInterval returns the loop period, defaulting to five seconds.
func (c *Config) LoopInterval() time.Duration {
	if c.LoopMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.LoopMS) * time.Millisecond
}

// Load reads config.json (if present), applies .env and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg, err := loadFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Account = getEnvOrDefault("BOT_ACCOUNT", cfg.Account)
	if symbols := os.Getenv("BOT_SYMBOLS"); symbols != "" {
		cfg.Symbols = splitAndTrim(symbols)
	}
	if kind := os.Getenv("BOT_STRATEGY"); kind != "" {
		cfg.Strategy.Kind = strategy.Kind(kind)
	}
	if interval := os.Getenv("BOT_LOOP_INTERVAL_MS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil {
			cfg.LoopMS = parsed
		}
	}
	cfg.DryRun = getEnvOrDefault("BOT_DRY_RUN", boolString(cfg.DryRun)) == "true"

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.Logging.JSONFormat)) == "true"

	cfg.Redis.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.Redis.Enabled)) == "true"
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Database.Enabled = getEnvOrDefault("DB_ENABLED", boolString(cfg.Database.Enabled)) == "true"
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)
	if port := os.Getenv("DB_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = parsed
		}
	}

	cfg.Server.Enabled = getEnvOrDefault("SERVER_ENABLED", boolString(cfg.Server.Enabled)) == "true"
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}

	cfg.Schedule.Timezone = getEnvOrDefault("BOT_TIMEZONE", cfg.Schedule.Timezone)
}

func applyDefaults(cfg *Config) {
	if cfg.Account == "" {
		cfg.Account = "default"
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"EURUSD"}
	}
	if cfg.Strategy.Kind == "" {
		cfg.Strategy.Kind = strategy.KindProgressiveLockIn
	}
	if cfg.Strategy.LegVolume == 0 {
		cfg.Strategy.LegVolume = 0.01
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
}

// Validate rejects configurations the engine cannot run. Strategy
// parameter conflicts surface here, before anything touches a broker.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	for _, symbol := range c.Symbols {
		if strings.TrimSpace(symbol) == "" {
			return fmt.Errorf("empty symbol in configuration")
		}
	}

	// Building the strategy exercises all parameter checks.
	if _, err := strategy.New(c.Strategy); err != nil {
		return err
	}

	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
