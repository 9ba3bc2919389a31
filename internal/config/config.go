// Package config loads and validates registry config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const defaultAccessCodeTTL = 5 * time.Minute

// Config holds registry configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production"). Selects log format and
	// guards DevAccessCodes.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// AccessCodeTTL is how long a dev access code stays retrievable (e.g. "5m").
	AccessCodeTTL string `mapstructure:"ACCESS_CODE_TTL"`
	// DevAccessCodes when true logs issued access codes in clear and keeps them in the dev store.
	// Must not be true when Env is production.
	DevAccessCodes bool `mapstructure:"DEV_ACCESS_CODES"`

	// SMSLocalAPIKey enables SMS delivery of access codes when set.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`

	// OTelEndpoint is the OTLP gRPC collector; empty keeps telemetry in process.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure disables TLS for https endpoints.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelServiceName is the service.name resource attribute.
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	// When set, registry events are published to EventsTopic.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsTopic is the Kafka topic for registry events.
	EventsTopic string `mapstructure:"REGISTRY_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group for the worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// ImportDelimiter separates fields of an import line.
	ImportDelimiter string `mapstructure:"IMPORT_DELIMITER"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing file

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ACCESS_CODE_TTL", defaultAccessCodeTTL.String())
	v.SetDefault("DEV_ACCESS_CODES", false)
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "identity-registry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("REGISTRY_EVENTS_TOPIC", "identity-registry-events")
	v.SetDefault("KAFKA_GROUP_ID", "identity-registry-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("IMPORT_DELIMITER", ";")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.DevAccessCodes && cfg.Env == EnvProduction {
		return nil, errors.New("config: DEV_ACCESS_CODES must not be true when APP_ENV=production")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL %q is not a valid level", cfg.LogLevel)
	}
	if d, err := time.ParseDuration(cfg.AccessCodeTTL); err != nil || d <= 0 {
		return nil, fmt.Errorf("config: ACCESS_CODE_TTL %q must be a positive duration", cfg.AccessCodeTTL)
	}
	if cfg.ImportDelimiter == "" {
		return nil, errors.New("config: IMPORT_DELIMITER must be set")
	}

	return &cfg, nil
}

// IsDevelopment reports whether the registry runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.Env == EnvDevelopment
}

// Level returns the parsed log level. Returns info if unset or invalid.
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return l
}

// AccessCodeTTLDuration parses AccessCodeTTL. Returns 5m if unset or invalid.
func (c *Config) AccessCodeTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.AccessCodeTTL)
	if err != nil || d <= 0 {
		return defaultAccessCodeTTL
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// An empty list means event publishing is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
