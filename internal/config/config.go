package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

const defaultOrigins = "http://localhost:80,http://localhost:5173"

// Config holds the configuration for the dashboard service.
// Environment variables are parsed with the NEURODASH_ prefix,
// e.g. NEURODASH_PORT, NEURODASH_JWT_SECRET.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	Port        int         `envconfig:"PORT" default:"3000"`

	// Database
	DBDriver        string `envconfig:"DB_DRIVER" default:"sqlite3"`
	DBPath          string `envconfig:"DB_PATH" default:"./data/neurodash.db"`
	DBEncryptionKey string `envconfig:"DB_ENCRYPTION_KEY"`
	RunMigrations   bool   `envconfig:"RUN_MIGRATIONS" default:"false"`

	// Tokens
	JWTSecret           string `envconfig:"JWT_SECRET"`
	JWTRefreshSecret    string `envconfig:"JWT_REFRESH_SECRET"`
	AccessTokenMinutes  int    `envconfig:"ACCESS_TOKEN_MINUTES" default:"15"`
	RefreshTokenDays    int    `envconfig:"REFRESH_TOKEN_DAYS" default:"7"`
	RememberRefreshDays int    `envconfig:"REMEMBER_REFRESH_DAYS" default:"30"`
	CookieSecure        bool   `envconfig:"COOKIE_SECURE" default:"true"`

	// HTTP surface
	AllowedOrigins      string `envconfig:"ALLOWED_ORIGINS" default:""`
	DisableRegistration bool   `envconfig:"DISABLE_REGISTRATION" default:"false"`

	// Background workers
	EnableWorkers  bool          `envconfig:"ENABLE_WORKERS" default:"true"`
	WorkerInterval time.Duration `envconfig:"WORKER_INTERVAL" default:"1m"`

	// Pomodoro and home stream timers
	PomodoroWork    time.Duration `envconfig:"POMODORO_WORK" default:"25m"`
	PomodoroBreak   time.Duration `envconfig:"POMODORO_BREAK" default:"5m"`
	MessageRotation time.Duration `envconfig:"MESSAGE_ROTATION" default:"10s"`
	StreamHeartbeat time.Duration `envconfig:"STREAM_HEARTBEAT" default:"15s"`

	// Web push
	VapidSubject    string `envconfig:"VAPID_SUBJECT"`
	VapidPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VapidPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile   string `envconfig:"LOG_FILE"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// ResolveDefaults validates the loaded values and fills derived fields.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required and must not be empty")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	// Refresh tokens use a separate secret, derived from the main one if not provided.
	if c.JWTRefreshSecret == "" {
		c.JWTRefreshSecret = c.JWTSecret + "-refresh"
	}

	if c.AccessTokenMinutes <= 0 {
		c.AccessTokenMinutes = 15
	}
	if c.RefreshTokenDays <= 0 {
		c.RefreshTokenDays = 7
	}
	if c.RememberRefreshDays <= 0 {
		c.RememberRefreshDays = 30
	}
	if c.PomodoroWork <= 0 || c.PomodoroBreak <= 0 {
		return fmt.Errorf("pomodoro durations must be positive")
	}

	origins := strings.TrimSpace(c.AllowedOrigins)
	if origins == "" {
		origins = defaultOrigins
	} else if origins != "*" {
		parts := strings.Split(origins, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		origins = strings.Join(parts, ",")
	}
	c.AllowedOrigins = origins
	return nil
}

// New creates a Config by parsing NEURODASH_ environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("NEURODASH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.Port).
		Str("db_driver", cfg.DBDriver).
		Str("db_path", cfg.DBPath).
		Bool("db_encrypted", cfg.DBEncryptionKey != "").
		Bool("workers", cfg.EnableWorkers).
		Bool("webpush", cfg.WebPushConfigured()).
		Str("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment:         EnvTesting,
		Port:                3000,
		DBDriver:            "sqlite3",
		DBPath:              ":memory:",
		JWTSecret:           "test-secret-that-is-at-least-32-characters",
		AccessTokenMinutes:  15,
		RefreshTokenDays:    7,
		RememberRefreshDays: 30,
		CookieSecure:        false,
		WorkerInterval:      time.Minute,
		PomodoroWork:        25 * time.Minute,
		PomodoroBreak:       5 * time.Minute,
		MessageRotation:     10 * time.Second,
		StreamHeartbeat:     15 * time.Second,
		LogLevel:            "disabled",
	}
	_ = cfg.ResolveDefaults()
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// WebPushConfigured reports whether all VAPID settings are present.
func (c *Config) WebPushConfigured() bool {
	return c.VapidPublicKey != "" && c.VapidPrivateKey != "" && c.VapidSubject != ""
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
