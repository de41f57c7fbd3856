package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Log       LogConfig       `toml:"log"`
	Resources ResourcesConfig `toml:"resources"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string        `toml:"port"`
	Env            string        `toml:"env"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	AllowedOrigins []string      `toml:"allowed_origins"`
	IdempotencyTTL time.Duration `toml:"idempotency_ttl"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `toml:"host"`
	Port      string `toml:"port"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Migrate   bool   `toml:"migrate"`
}

// RedisConfig holds the optional Redis connection. An empty Addr keeps the
// rate limiter and idempotency store in process memory.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// ResourcesConfig holds the per-resource list policies.
//
// The task and user collections historically disagree on how a missing or
// malformed limit is treated, so both knobs are exposed instead of unified.
type ResourcesConfig struct {
	TaskDefaultLimit      int  `toml:"task_default_limit"`
	TaskResetInvalidLimit bool `toml:"task_reset_invalid_limit"`
	UserDefaultLimit      int  `toml:"user_default_limit"`
	UserResetInvalidLimit bool `toml:"user_reset_invalid_limit"`
}

// ReconcileConfig controls the periodic reverse-index repair job
type ReconcileConfig struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"interval"`
}

// RateLimitConfig holds request rate limiting settings
type RateLimitConfig struct {
	Rate   int           `toml:"rate"`
	Window time.Duration `toml:"window"`
	Burst  int           `toml:"burst"`
}

// Load builds the configuration from defaults, an optional TOML file named by
// CONFIG_FILE, a .env file in the working directory, and finally the process
// environment. Later sources win.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Env:            "development",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000"},
			IdempotencyTTL: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      "8000",
			Namespace: "taskboard",
			Database:  "main",
			User:      "root",
			Password:  "root",
			Migrate:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Resources: ResourcesConfig{
			TaskDefaultLimit:      100,
			TaskResetInvalidLimit: true,
			UserDefaultLimit:      0,
			UserResetInvalidLimit: false,
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Interval: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Rate:   100,
			Window: time.Minute,
			Burst:  20,
		},
	}
}

// LoadFile decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Env = getEnv("SERVER_ENV", cfg.Server.Env)
	cfg.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.AllowedOrigins = getSliceEnv("CORS_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Server.IdempotencyTTL = getDurationEnv("IDEMPOTENCY_TTL", cfg.Server.IdempotencyTTL)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.Namespace = getEnv("DB_NAMESPACE", cfg.Database.Namespace)
	cfg.Database.Database = getEnv("DB_DATABASE", cfg.Database.Database)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Migrate = getBoolEnv("DB_MIGRATE", cfg.Database.Migrate)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntEnv("REDIS_DB", cfg.Redis.DB)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Resources.TaskDefaultLimit = getIntEnv("TASK_DEFAULT_LIMIT", cfg.Resources.TaskDefaultLimit)
	cfg.Resources.TaskResetInvalidLimit = getBoolEnv("TASK_RESET_INVALID_LIMIT", cfg.Resources.TaskResetInvalidLimit)
	cfg.Resources.UserDefaultLimit = getIntEnv("USER_DEFAULT_LIMIT", cfg.Resources.UserDefaultLimit)
	cfg.Resources.UserResetInvalidLimit = getBoolEnv("USER_RESET_INVALID_LIMIT", cfg.Resources.UserResetInvalidLimit)

	cfg.Reconcile.Enabled = getBoolEnv("RECONCILE_ENABLED", cfg.Reconcile.Enabled)
	cfg.Reconcile.Interval = getDurationEnv("RECONCILE_INTERVAL", cfg.Reconcile.Interval)

	cfg.RateLimit.Rate = getIntEnv("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Window = getDurationEnv("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.Burst = getIntEnv("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got '%s'", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got '%s'", c.Log.Format))
	}

	if c.Resources.TaskDefaultLimit < 0 {
		errs = append(errs, errors.New("TASK_DEFAULT_LIMIT must not be negative"))
	}
	if c.Resources.UserDefaultLimit < 0 {
		errs = append(errs, errors.New("USER_DEFAULT_LIMIT must not be negative"))
	}

	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive when RECONCILE_ENABLED is true"))
	}

	if c.RateLimit.Rate <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RATE must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
