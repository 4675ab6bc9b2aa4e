// Package config provides application configuration management using Viper.
// It supports loading from environment variables, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	OpenAI   OpenAIConfig
	Sheet    SheetConfig
	Session  SessionConfig
	Database DatabaseConfig
	Log      LogConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// OpenAIConfig holds settings for the chat completion API.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// SheetConfig holds settings for the spreadsheet lead log endpoint.
type SheetConfig struct {
	URL           string
	Timeout       time.Duration
	VerifyOnStart bool
}

// SessionConfig bounds the in-memory conversation store.
type SessionConfig struct {
	// MaxSessions caps the number of live sessions (0 = unbounded).
	MaxSessions int
	// IdleTTL removes sessions idle for longer than this (0 = never).
	IdleTTL time.Duration
	// SweepInterval is how often idle sessions are collected.
	SweepInterval time.Duration
}

// DatabaseConfig holds the optional PostgreSQL lead mirror settings.
// The mirror is disabled when URL is empty.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

// Enabled reports whether a database URL was configured.
func (d *DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// CORSConfig holds cross-origin settings for the webhook endpoint.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables and config files.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/quotebot")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := bindEnv(v); err != nil {
		return nil, err
	}
	setDefaults(v)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := fromViper(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindEnv maps the deployment's historical variable names onto config keys.
// Keys not listed here resolve through AutomaticEnv (server.env -> SERVER_ENV).
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":           {"PORT", "SERVER_PORT"},
		"server.env":            {"APP_ENV", "SERVER_ENV"},
		"sheet.url":             {"GOOGLE_SHEET_URL", "SHEET_URL"},
		"openai.api_key":        {"OPENAI_API_KEY"},
		"database.url":          {"DATABASE_URL"},
		"cors.allowed_origins":  {"CORS_ALLOWED_ORIGINS"},
		"sheet.verify_on_start": {"SHEET_VERIFY_ON_START"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.env", "development")

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.timeout", "60s")

	// Lead sheet defaults
	v.SetDefault("sheet.timeout", "15s")
	v.SetDefault("sheet.verify_on_start", false)

	// Session store defaults
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.idle_ttl", "2h")
	v.SetDefault("session.sweep_interval", "5m")

	v.SetDefault("database.max_connections", 5)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("cors.allowed_origins", "*")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			Environment: v.GetString("server.env"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("openai.api_key"),
			Model:   v.GetString("openai.model"),
			BaseURL: v.GetString("openai.base_url"),
			Timeout: v.GetDuration("openai.timeout"),
		},
		Sheet: SheetConfig{
			URL:           v.GetString("sheet.url"),
			Timeout:       v.GetDuration("sheet.timeout"),
			VerifyOnStart: v.GetBool("sheet.verify_on_start"),
		},
		Session: SessionConfig{
			MaxSessions:   v.GetInt("session.max_sessions"),
			IdleTTL:       v.GetDuration("session.idle_ttl"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("database.url"),
			MaxConnections: v.GetInt("database.max_connections"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
	}
}

// Validate checks that configuration values are usable.
// Missing credentials are not errors: the affected intents degrade to their
// apology replies and the lead log reports each failed delivery.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT out of range: %d", c.Server.Port))
	}
	if c.Session.MaxSessions < 0 {
		problems = append(problems, "SESSION_MAX_SESSIONS must not be negative")
	}
	if c.Session.IdleTTL < 0 {
		problems = append(problems, "SESSION_IDLE_TTL must not be negative")
	}
	if c.Session.IdleTTL > 0 && c.Session.SweepInterval <= 0 {
		problems = append(problems, "SESSION_SWEEP_INTERVAL must be positive when SESSION_IDLE_TTL is set")
	}
	if c.OpenAI.Model == "" {
		problems = append(problems, "OPENAI_MODEL must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}

	return nil
}

// MissingCredentials lists unset credentials the operator should know about.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Sheet.URL == "" {
		missing = append(missing, "GOOGLE_SHEET_URL")
	}
	return missing
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
