package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Server section absent; only the agent side is configured.
	p := writeConfig(t, `agent:
  server_endpoint: "localhost:50051"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", s.GRPCPort, DefaultGRPCPort)
	}
	if s.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", s.HTTPPort, DefaultHTTPPort)
	}
	if s.Storage.Backend != "memory" {
		t.Errorf("storage.backend: got %q, want memory", s.Storage.Backend)
	}
	if s.Notify.StatsInterval != DefaultStatsInterval {
		t.Errorf("stats_interval: got %v, want %v", s.Notify.StatsInterval, DefaultStatsInterval)
	}
	if s.Notify.Kafka.Enabled {
		t.Error("kafka should be disabled by default")
	}
	if s.Notify.Kafka.RequiredAcks != 1 {
		t.Errorf("kafka.required_acks: got %d, want 1", s.Notify.Kafka.RequiredAcks)
	}

	w := s.Risk.Weights.Weights()
	for name, pair := range map[string][2]decimal.Decimal{
		"temperature": {w.Temperature, decimal.RequireFromString("0.4")},
		"vibration":   {w.Vibration, decimal.RequireFromString("0.35")},
		"load":        {w.Load, decimal.RequireFromString("0.25")},
	} {
		if !pair[0].Equal(pair[1]) {
			t.Errorf("weight %s: got %s, want %s", name, pair[0], pair[1])
		}
	}
	if !s.Risk.Weights.Sum().Equal(decimal.NewFromInt(1)) {
		t.Errorf("default weights sum: got %s, want 1", s.Risk.Weights.Sum())
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  log_level: debug
  auth:
    mode: apikey
    key_env: MY_KEY
    header: X-Plant-Key
  risk:
    weights:
      temperature: 0.5
      vibration: 0.3
      load: 0.2
  storage:
    backend: sqlite
    path: /var/lib/riskwatch/alerts.db
  equipment:
    catalog: equipment.yaml
    watch: true
  notify:
    stats_interval: 2s
    push_timeout: 3s
    kafka:
      enabled: true
      brokers: ["kafka-1:9092", "kafka-2:9092"]
      topic_prefix: plant.
      compression: snappy
      required_acks: -1
    webhooks:
      - type: slack
        url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != 9090 || s.HTTPPort != 9091 {
		t.Errorf("ports: got %d/%d, want 9090/9091", s.GRPCPort, s.HTTPPort)
	}
	if s.Auth.Mode != "apikey" || s.Auth.EffectiveHeader() != "x-plant-key" {
		t.Errorf("auth: got %q/%q", s.Auth.Mode, s.Auth.EffectiveHeader())
	}
	if got := s.Risk.Weights.Weights().Temperature; !got.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("temperature weight: got %s, want 0.5", got)
	}
	if s.Storage.Backend != "sqlite" || s.Storage.Path == "" {
		t.Errorf("storage: got %+v", s.Storage)
	}
	if !s.Equipment.Watch || s.Equipment.Catalog != "equipment.yaml" {
		t.Errorf("equipment: got %+v", s.Equipment)
	}
	if s.Notify.StatsInterval != 2*time.Second || s.Notify.PushTimeout != 3*time.Second {
		t.Errorf("notify intervals: got %v/%v", s.Notify.StatsInterval, s.Notify.PushTimeout)
	}
	k := s.Notify.Kafka
	if !k.Enabled || len(k.Brokers) != 2 || k.TopicPrefix != "plant." || k.Compression != "snappy" || k.RequiredAcks != -1 {
		t.Errorf("kafka: got %+v", k)
	}
	// Unset fields keep their defaults.
	if k.MaxRetries != DefaultKafkaRetries {
		t.Errorf("kafka.max_retries: got %d, want %d", k.MaxRetries, DefaultKafkaRetries)
	}
	if len(s.Notify.Webhooks) != 1 || s.Notify.Webhooks[0].Type != "slack" {
		t.Errorf("webhooks: got %+v", s.Notify.Webhooks)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: MY_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Server.Auth.EffectiveHeader(); got != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", got)
	}
}

func TestLoad_EnvResolution(t *testing.T) {
	t.Setenv("RISKWATCH_TEST_KEY", "secret-123")
	t.Setenv("RISKWATCH_TEST_HOOK", "https://hooks.example.com/x")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: RISKWATCH_TEST_KEY
  notify:
    webhooks:
      - type: http
        url_env: RISKWATCH_TEST_HOOK
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Server.Auth.Key(); got != "secret-123" {
		t.Errorf("Key(): got %q, want secret-123", got)
	}
	if got := cfg.Server.Notify.Webhooks[0].URL(); got != "https://hooks.example.com/x" {
		t.Errorf("URL(): got %q", got)
	}
	if (AuthConfig{}).Key() != "" || (WebhookConfig{}).URL() != "" {
		t.Error("empty env names should resolve to empty strings")
	}
}

func TestLoad_CustomWeightsNotRescaled(t *testing.T) {
	p := writeConfig(t, `server:
  risk:
    weights:
      temperature: 1
      vibration: 1
      load: 1
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Server.Risk.Weights.Sum(); !got.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Sum: got %s, want 3", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth\n", "auth.mode"},
		{"port out of range", "server:\n  grpc_port: 70000\n", "grpc_port"},
		{"same ports", "server:\n  grpc_port: 8080\n  http_port: 8080\n", "must differ"},
		{"bad log level", "server:\n  log_level: loud\n", "log_level"},
		{"negative weight", "server:\n  risk:\n    weights:\n      load: -0.1\n", "negative"},
		{"unknown backend", "server:\n  storage:\n    backend: postgres\n", "storage.backend"},
		{"sqlite without path", "server:\n  storage:\n    backend: sqlite\n", "storage.path"},
		{"watch without catalog", "server:\n  equipment:\n    watch: true\n", "equipment.watch"},
		{"zero stats interval", "server:\n  notify:\n    stats_interval: 0s\n", "stats_interval"},
		{"kafka without brokers", "server:\n  notify:\n    kafka:\n      enabled: true\n", "brokers"},
		{"kafka bad compression", "server:\n  notify:\n    kafka:\n      enabled: true\n      brokers: [k:9092]\n      compression: brotli\n", "compression"},
		{"unknown webhook type", "server:\n  notify:\n    webhooks:\n      - type: pager\n        url_env: X\n", "webhooks[0].type"},
		{"webhook without env", "server:\n  notify:\n    webhooks:\n      - type: slack\n", "url_env"},
		{"malformed yaml", "server: [", "parse yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q): got %v, %v; want %v", in, got, err, want)
		}
	}
}
