package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvRedisPassword = "SENTINEL_REDIS_PASSWORD"
	EnvPostgresDSN   = "SENTINEL_POSTGRES_DSN"
	EnvNATSURL       = "SENTINEL_NATS_URL"
	EnvWebhookSecret = "SENTINEL_WEBHOOK_SECRET"
)

// Config is the root configuration.
type Config struct {
	Sentinel SentinelConfig `yaml:"sentinel"`
}

// SentinelConfig is the project configuration.
type SentinelConfig struct {
	Input     InputConfig     `yaml:"input"`
	Store     StoreConfig     `yaml:"store"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	Rules     RulesConfig     `yaml:"rules"`
	Notify    NotifyConfig    `yaml:"notify"`
	Decisions DecisionsConfig `yaml:"decisions"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InputConfig controls the input reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls a Redis connection.
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	Key           string        `yaml:"key"`
	DeadLetterKey string        `yaml:"dead_letter_key"`
	BlockTimeout  time.Duration `yaml:"block_timeout"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Mode     string           `yaml:"mode"` // memory|redis|postgres
	Redis    RedisStoreConfig `yaml:"redis"`
	Postgres PostgresConfig   `yaml:"postgres"`
}

// RedisStoreConfig configures the Redis incident store.
type RedisStoreConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresConfig configures the PostgreSQL store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// CatalogConfig controls threat-intel and playbook loading.
type CatalogConfig struct {
	Path            string        `yaml:"path"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ScorerConfig controls event scoring heuristics.
type ScorerConfig struct {
	KnownRegions []string `yaml:"known_regions"`
	Timezone     string   `yaml:"timezone"`
}

// RulesConfig controls Sigma tagging.
type RulesConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	MinLevel string `yaml:"min_level"` // informational|low|medium|high|critical
}

// NotifyConfig selects the notification channel.
type NotifyConfig struct {
	Mode string           `yaml:"mode"` // none|nats|http
	NATS NATSConfig       `yaml:"nats"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Subject       string        `yaml:"subject"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL          string            `yaml:"url"`
	Timeout      time.Duration     `yaml:"timeout"`
	Headers      map[string]string `yaml:"headers"`
	Secret       string            `yaml:"secret"`
	MaxRetries   int               `yaml:"max_retries"`
	RetryBackoff time.Duration     `yaml:"retry_backoff"`
}

// DecisionsConfig controls the decision audit log.
type DecisionsConfig struct {
	File FileOutputConfig `yaml:"file"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path     string `yaml:"path"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// ServiceConfig controls the service layer.
type ServiceConfig struct {
	EventCacheSize int    `yaml:"event_cache_size"`
	Actor          string `yaml:"actor"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
	Format  string `yaml:"format"` // console|json
}

// LoadConfig reads and parses a YAML config file, then applies environment
// overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	ApplyEnv(&cfg)
	return &cfg, nil
}

// ApplyEnv loads .env when present and overrides secrets from the
// environment.
func ApplyEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Sentinel.Input.Redis.Password = v
		cfg.Sentinel.Store.Redis.Password = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Sentinel.Store.Postgres.DSN = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.Sentinel.Notify.NATS.URL = v
	}
	if v := os.Getenv(EnvWebhookSecret); v != "" {
		cfg.Sentinel.Notify.HTTP.Secret = v
	}
}

// Location resolves the scorer time zone. Empty means local time.
func (s ScorerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scorer timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}
