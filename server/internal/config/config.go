package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/riskwatch/riskwatch/server/internal/risk"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort      = 50051
	DefaultHTTPPort      = 8080
	DefaultStatsInterval = 5 * time.Second
	DefaultPushTimeout   = 5 * time.Second
	DefaultKafkaRetries  = 3
	DefaultKafkaBackoff  = 100 * time.Millisecond
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port agents submit readings to (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port of the REST API, metrics and WebSocket (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Auth      AuthConfig      `yaml:"auth"`
	Risk      RiskConfig      `yaml:"risk"`
	Storage   StorageConfig   `yaml:"storage"`
	Equipment EquipmentConfig `yaml:"equipment"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return "x-api-key"
}

// RiskConfig tunes scoring.
type RiskConfig struct {
	Weights WeightsConfig `yaml:"weights"`
}

// WeightsConfig are the score coefficients. They are used as given and are
// not rescaled when they do not sum to 1.
type WeightsConfig struct {
	Temperature float64 `yaml:"temperature"`
	Vibration   float64 `yaml:"vibration"`
	Load        float64 `yaml:"load"`
}

// Weights converts the configured coefficients to exact decimals.
func (w WeightsConfig) Weights() risk.Weights {
	return risk.Weights{
		Temperature: decimal.NewFromFloat(w.Temperature),
		Vibration:   decimal.NewFromFloat(w.Vibration),
		Load:        decimal.NewFromFloat(w.Load),
	}
}

// Sum returns the total of the three weights.
func (w WeightsConfig) Sum() decimal.Decimal {
	ws := w.Weights()
	return ws.Temperature.Add(ws.Vibration).Add(ws.Load)
}

// StorageConfig selects the alert history backend.
type StorageConfig struct {
	// Backend is memory (default) or sqlite.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// EquipmentConfig locates the equipment catalog.
type EquipmentConfig struct {
	// Catalog is the YAML file listing equipment. Empty means no catalog:
	// every reading is attributed to "Unknown".
	Catalog string `yaml:"catalog"`

	// Watch reloads the catalog when the file changes.
	Watch bool `yaml:"watch"`
}

// NotifyConfig configures real-time notification sinks.
type NotifyConfig struct {
	// StatsInterval is how often dashboard stats are pushed to WebSocket clients.
	StatsInterval time.Duration `yaml:"stats_interval"`

	// PushTimeout bounds a single alert push across all sinks.
	PushTimeout time.Duration `yaml:"push_timeout"`

	Kafka    KafkaConfig     `yaml:"kafka"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// KafkaConfig configures the optional Kafka sink.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	TopicPrefix  string        `yaml:"topic_prefix"`
	Compression  string        `yaml:"compression"`
	RequiredAcks int           `yaml:"required_acks"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			LogLevel: "info",
			Risk: RiskConfig{
				Weights: WeightsConfig{Temperature: 0.40, Vibration: 0.35, Load: 0.25},
			},
			Storage: StorageConfig{Backend: "memory"},
			Notify: NotifyConfig{
				StatsInterval: DefaultStatsInterval,
				PushTimeout:   DefaultPushTimeout,
				Kafka: KafkaConfig{
					TopicPrefix:  "riskwatch.",
					Compression:  "none",
					RequiredAcks: 1,
					MaxRetries:   DefaultKafkaRetries,
					RetryBackoff: DefaultKafkaBackoff,
					WriteTimeout: 10 * time.Second,
				},
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ (both %d)", s.GRPCPort)
	}
	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}

	w := s.Risk.Weights
	if w.Temperature < 0 || w.Vibration < 0 || w.Load < 0 {
		return fmt.Errorf("server.risk.weights must not be negative")
	}

	switch s.Storage.Backend {
	case "memory":
	case "sqlite":
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want memory|sqlite", s.Storage.Backend)
	}

	if s.Equipment.Watch && s.Equipment.Catalog == "" {
		return fmt.Errorf("server.equipment.watch requires server.equipment.catalog")
	}

	n := s.Notify
	if n.StatsInterval <= 0 {
		return fmt.Errorf("server.notify.stats_interval must be positive")
	}
	if n.PushTimeout <= 0 {
		return fmt.Errorf("server.notify.push_timeout must be positive")
	}
	if n.Kafka.Enabled {
		if len(n.Kafka.Brokers) == 0 {
			return fmt.Errorf("server.notify.kafka.brokers is required when kafka is enabled")
		}
		switch n.Kafka.Compression {
		case "", "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return fmt.Errorf("server.notify.kafka.compression %q unknown: want none|gzip|snappy|lz4|zstd", n.Kafka.Compression)
		}
		if n.Kafka.MaxRetries < 0 {
			return fmt.Errorf("server.notify.kafka.max_retries must not be negative")
		}
	}
	for i, wh := range n.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.notify.webhooks[%d].type %q unknown: want slack|teams|http", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("server.notify.webhooks[%d].url_env is required", i)
		}
	}
	return nil
}

// ParseLogLevel maps a config level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q unknown: want debug|info|warn|error", s)
}
