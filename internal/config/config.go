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
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Backend      BackendConfig
	AnswerEngine AnswerEngineConfig
	Transport    TransportConfig
	Webhook      WebhookConfig
	Bot          BotConfig
	Log          LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings for conversation state.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BackendConfig holds settings for the booking backend API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AnswerEngineConfig holds settings for the LLM question-answering client.
type AnswerEngineConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// TransportConfig holds settings for the WhatsApp bridge.
type TransportConfig struct {
	BaseURL    string
	Token      string
	RetryDelay time.Duration
}

// WebhookConfig holds settings for inbound webhook authentication.
type WebhookConfig struct {
	Token string
}

// BotConfig holds conversation behavior settings.
type BotConfig struct {
	// Cooldown is the minimum gap between processed messages per user.
	Cooldown time.Duration
	// DedupCacheSize bounds the recently-seen message id set.
	DedupCacheSize int
	// YearsAhead bounds how far in the future a travel date may fall.
	YearsAhead int
	// RetentionDays is how long inactive conversations are kept.
	RetentionDays int

	SupportPhone       string
	SupportEmail       string
	ExecutivePhone     string
	DefaultCountryCode string
	CurrencySymbol     string

	// CatalogPath points at a JSON package catalog. Empty uses the
	// built-in packages.
	CatalogPath string
}

// RetentionWindow returns the retention period as a duration.
func (b *BotConfig) RetentionWindow() time.Duration {
	return time.Duration(b.RetentionDays) * 24 * time.Hour
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and config files.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	// Set config file options
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tripflow")

	// Enable environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults(v)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			Environment: v.GetString("server.env"),
		},
		Database: DatabaseConfig{
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Backend: BackendConfig{
			BaseURL: v.GetString("backend.base_url"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		AnswerEngine: AnswerEngineConfig{
			APIKey:  v.GetString("answer_engine.api_key"),
			Model:   v.GetString("answer_engine.model"),
			BaseURL: v.GetString("answer_engine.base_url"),
			Timeout: v.GetDuration("answer_engine.timeout"),
		},
		Transport: TransportConfig{
			BaseURL:    v.GetString("transport.base_url"),
			Token:      v.GetString("transport.token"),
			RetryDelay: v.GetDuration("transport.retry_delay"),
		},
		Webhook: WebhookConfig{
			Token: v.GetString("webhook.token"),
		},
		Bot: BotConfig{
			Cooldown:           v.GetDuration("bot.cooldown"),
			DedupCacheSize:     v.GetInt("bot.dedup_cache_size"),
			YearsAhead:         v.GetInt("bot.years_ahead"),
			RetentionDays:      v.GetInt("bot.retention_days"),
			SupportPhone:       v.GetString("bot.support_phone"),
			SupportEmail:       v.GetString("bot.support_email"),
			ExecutivePhone:     v.GetString("bot.executive_phone"),
			DefaultCountryCode: v.GetString("bot.default_country_code"),
			CurrencySymbol:     v.GetString("bot.currency_symbol"),
			CatalogPath:        v.GetString("bot.catalog_path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tripflow")
	v.SetDefault("database.name", "tripflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)
	v.SetDefault("database.connection_max_lifetime", "5m")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "15s")

	// Answer engine defaults
	v.SetDefault("answer_engine.model", "openai/gpt-4o-mini")
	v.SetDefault("answer_engine.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("answer_engine.timeout", "20s")

	// Transport defaults
	v.SetDefault("transport.base_url", "http://localhost:3000")
	v.SetDefault("transport.retry_delay", "500ms")

	// Bot defaults
	v.SetDefault("bot.cooldown", "1s")
	v.SetDefault("bot.dedup_cache_size", 1000)
	v.SetDefault("bot.years_ahead", 5)
	v.SetDefault("bot.retention_days", 60)
	v.SetDefault("bot.support_phone", "+91-9886174621")
	v.SetDefault("bot.support_email", "support@unravelexperience.com")
	v.SetDefault("bot.executive_phone", "7770974354")
	v.SetDefault("bot.default_country_code", "91")
	v.SetDefault("bot.currency_symbol", "₹")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration values are present.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.Password == "" {
		missing = append(missing, "DATABASE_PASSWORD")
	}
	if c.Transport.BaseURL == "" {
		missing = append(missing, "TRANSPORT_BASE_URL")
	}
	if c.Webhook.Token == "" {
		missing = append(missing, "WEBHOOK_TOKEN")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Bot.Cooldown < 0 {
		return fmt.Errorf("bot.cooldown must not be negative")
	}
	if c.Bot.DedupCacheSize <= 0 {
		return fmt.Errorf("bot.dedup_cache_size must be positive")
	}
	if c.Bot.YearsAhead <= 0 {
		return fmt.Errorf("bot.years_ahead must be positive")
	}
	if c.Bot.RetentionDays <= 0 {
		return fmt.Errorf("bot.retention_days must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
