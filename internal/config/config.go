package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the service settings, read from the environment (optionally seeded
// from .env.dev).
type Config struct {
	AppEnv   string `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	AppPort  string `mapstructure:"APP_PORT" validate:"required,numeric"`
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`

	DBUser     string `mapstructure:"DB_USER" validate:"required"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBHost     string `mapstructure:"DB_HOST" validate:"required"`
	DBPort     string `mapstructure:"DB_PORT" validate:"required,numeric"`
	DBName     string `mapstructure:"DB_NAME" validate:"required"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE" validate:"required,oneof=disable allow prefer require verify-ca verify-full"`

	NatsURL      string `mapstructure:"NATS_URL" validate:"omitempty,url"`
	OtelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	S3Endpoint         string `mapstructure:"S3_ENDPOINT" validate:"omitempty,url"`
	S3BucketName       string `mapstructure:"S3_BUCKET_NAME"`
	S3UsePathStyle     bool   `mapstructure:"S3_USE_PATH_STYLE"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`

	RateLimitMax        int           `mapstructure:"RATE_LIMIT_MAX" validate:"gte=1"`
	RateLimitExpiration time.Duration `mapstructure:"RATE_LIMIT_EXPIRATION" validate:"gt=0"`

	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	keys = []string{
		"APP_ENV", "APP_PORT", "LOG_LEVEL",
		"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DB_SSLMODE",
		"NATS_URL", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"S3_ENDPOINT", "S3_BUCKET_NAME", "S3_USE_PATH_STYLE",
		"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"RATE_LIMIT_MAX", "RATE_LIMIT_EXPIRATION",
		"COOKIE_SECURE",
	}
)

func Load() (*Config, error) {
	if err := godotenv.Load(".env.dev"); err != nil {
		slog.Debug("No .env.dev file found, reading from environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "3333")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_EXPIRATION", "60s")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &c, nil
}

func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

func (c *Config) S3Enabled() bool {
	return c.S3BucketName != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
