package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the ISMS API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	CORSAllowOrigins     string
	AuditRetentionDays   int
	ReviewReminderWindow time.Duration
	SessionTTL           time.Duration
	TaskQueueGroup       string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ISMS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "ISMS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("audit.retention_days", 365)
	v.SetDefault("review.reminder_window", "24h")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("tasks.queue_group", "isms-tasks")

	windowString := v.GetString("review.reminder_window")
	if windowString == "" {
		windowString = "24h"
	}

	window, err := time.ParseDuration(windowString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid review reminder window: %w", err)
	}

	sessionTTLString := v.GetString("session.ttl")
	if sessionTTLString == "" {
		sessionTTLString = "12h"
	}

	sessionTTL, err := time.ParseDuration(sessionTTLString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid session ttl: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		CORSAllowOrigins:     v.GetString("cors.allow_origins"),
		AuditRetentionDays:   v.GetInt("audit.retention_days"),
		ReviewReminderWindow: window,
		SessionTTL:           sessionTTL,
		TaskQueueGroup:       v.GetString("tasks.queue_group"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	// NIS2 requires at least twelve months of audit history.
	if cfg.AuditRetentionDays < 365 {
		cfg.AuditRetentionDays = 365
	}

	return cfg, nil
}
