// Package config loads runtime settings from .env, an optional YAML file
// and the process environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

// AppConfig holds server settings
type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// IsProduction reports whether internal error details must be hidden
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	TLS             bool          `mapstructure:"tls"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// AdminRoles are granted the workflow override capability
	AdminRoles []string `mapstructure:"admin_roles"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// OutboxConfig holds stage event delivery settings
type OutboxConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	Retention       time.Duration `mapstructure:"retention"`
}

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"app.env":                 "APP_ENV",
	"app.port":                "PORT",
	"db.host":                 "DB_HOST",
	"db.port":                 "DB_PORT",
	"db.user":                 "DB_USER",
	"db.password":             "DB_PASSWORD",
	"db.name":                 "DB_NAME",
	"db.tls":                  "DB_TLS",
	"auth.jwt_secret":         "JWT_SECRET",
	"auth.token_ttl":          "JWT_TTL",
	"auth.admin_roles":        "ADMIN_ROLES",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"log.output":              "LOG_OUTPUT",
	"log.file_path":           "LOG_FILE",
	"outbox.poll_interval":    "OUTBOX_POLL_INTERVAL",
	"outbox.cleanup_schedule": "OUTBOX_CLEANUP_SCHEDULE",
	"outbox.retention":        "OUTBOX_RETENTION",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3001")

	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.user", "root")
	v.SetDefault("db.name", "solar_crm")
	v.SetDefault("db.max_open_conns", 100)
	v.SetDefault("db.max_idle_conns", 100)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db.conn_max_idle_time", 3*time.Minute)

	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_roles", []string{"Admin"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("outbox.poll_interval", 500*time.Millisecond)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.cleanup_schedule", "0 3 * * *")
	v.SetDefault("outbox.retention", 7*24*time.Hour)
}

// Load reads configuration. A .env file in the working directory is loaded
// into the environment first; configFile may be empty.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.App.IsProduction() {
			return fmt.Errorf("config validation failed: JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = "default-secret-change-in-production"
	}
	if c.Database.Name == "" {
		return fmt.Errorf("config validation failed: database name is required")
	}
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("config validation failed: outbox poll interval must be positive")
	}
	return nil
}
