// Package config loads application configuration from an optional YAML file
// and STATUSGARDEN_-prefixed environment variables. Environment values win.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STATUSGARDEN_"

// Config is the full application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	StatusLog     StatusLogConfig     `koanf:"status_log"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type JWTConfig struct {
	SecretKey     string        `koanf:"secret_key"`
	TokenDuration time.Duration `koanf:"token_duration"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// StatusLogConfig tunes the status history background jobs.
type StatusLogConfig struct {
	ReconcileInterval        time.Duration `koanf:"reconcile_interval"`
	MaintenanceSweepInterval time.Duration `koanf:"maintenance_sweep_interval"`
	UptimeCacheTTL           time.Duration `koanf:"uptime_cache_ttl"`
}

type NotificationsConfig struct {
	Enabled bool         `koanf:"enabled"`
	Email   EmailConfig  `koanf:"email"`
	Worker  WorkerConfig `koanf:"worker"`
	Retry   RetryConfig  `koanf:"retry"`
}

type EmailConfig struct {
	SMTPHost      string  `koanf:"smtp_host"`
	SMTPPort      int     `koanf:"smtp_port"`
	SMTPUser      string  `koanf:"smtp_user"`
	SMTPPassword  string  `koanf:"smtp_password"`
	FromAddress   string  `koanf:"from_address"`
	RatePerSecond float64 `koanf:"rate_per_second"`
}

type WorkerConfig struct {
	BatchSize     int           `koanf:"batch_size"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	NumWorkers    int           `koanf:"num_workers"`
	StatsInterval time.Duration `koanf:"stats_interval"`
}

type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			TokenDuration: time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		StatusLog: StatusLogConfig{
			ReconcileInterval:        5 * time.Minute,
			MaintenanceSweepInterval: 30 * time.Second,
			UptimeCacheTTL:           5 * time.Minute,
		},
		Notifications: NotificationsConfig{
			Enabled: false,
			Email: EmailConfig{
				SMTPPort:      587,
				RatePerSecond: 10,
			},
			Worker: WorkerConfig{
				BatchSize:     100,
				PollInterval:  5 * time.Second,
				NumWorkers:    5,
				StatsInterval: 15 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				InitialBackoff:    time.Second,
				MaxBackoff:        5 * time.Minute,
				BackoffMultiplier: 2.0,
			},
		},
	}
}

// Load reads configuration from path (if non-empty and the file exists) and
// the environment, merged over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// STATUSGARDEN_SERVER__PORT=8080 maps to server.port. Double underscore
	// separates nesting levels so key names may contain single underscores.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secret_key is required")
	}
	if c.Notifications.Enabled && c.Notifications.Email.SMTPHost == "" {
		return fmt.Errorf("notifications.email.smtp_host is required when notifications are enabled")
	}
	return nil
}
