package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	FileEnv,
	"SERVICE_NAME", "SERVICE_PRINCIPAL", "HTTP_ADDR", "GRPC_PORT",
	"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ",
	"STT_INTERIM_RESULTS", "STT_AUDIO_ENCODING", "STT_MOCK_INTERVAL",
	"CAPTION_STABILITY_INTERVAL", "CAPTION_ANNOTATION_WORKERS", "CAPTION_MIN_TOKENS",
	"SESSION_MAX_AUDIO_BYTES", "SESSION_MAX_DURATION", "SESSION_MAX_DELTAS",
	"HISTORY_BACKEND", "HISTORY_PATH", "HISTORY_KEY",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_LIVE", "KAFKA_TOPIC_COMMITTED", "KAFKA_PRINCIPAL",
	"PICKUP_CATALOG_PATH", "LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
}

// clearEnv blanks every key Load reads; envOrDefault treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func mustLoad(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := mustLoad(t)

	// Service defaults
	if cfg.Service.Principal != "svc-live-caption" {
		t.Errorf("expected default principal 'svc-live-caption', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Service.HTTPAddr != ":8080" {
		t.Errorf("expected default HTTP addr ':8080', got %s", cfg.Service.HTTPAddr)
	}

	// STT defaults
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Errorf("expected default interim results true")
	}

	// Caption defaults
	if cfg.Caption.StabilityInterval != 2500*time.Millisecond {
		t.Errorf("expected default stability interval 2.5s, got %v", cfg.Caption.StabilityInterval)
	}
	if cfg.Caption.AnnotationWorkers != 4 {
		t.Errorf("expected 4 annotation workers, got %d", cfg.Caption.AnnotationWorkers)
	}
	if cfg.Caption.MinTokens != 2 {
		t.Errorf("expected min tokens 2, got %d", cfg.Caption.MinTokens)
	}

	// Session limits defaults
	if cfg.SessionLimits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes 5MB, got %d", cfg.SessionLimits.MaxAudioBytes)
	}
	if cfg.SessionLimits.MaxDuration != 5*time.Minute {
		t.Errorf("expected default max duration 5m, got %v", cfg.SessionLimits.MaxDuration)
	}
	if cfg.SessionLimits.MaxDeltas != 500 {
		t.Errorf("expected default max deltas 500, got %d", cfg.SessionLimits.MaxDeltas)
	}

	// History defaults
	if cfg.History.Backend != "file" || cfg.History.Key != "CaptionHistory" {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Errorf("expected Kafka disabled by default")
	}
	if cfg.Kafka.Principal != cfg.Service.Principal {
		t.Errorf("expected Kafka principal to default to service principal, got %s", cfg.Kafka.Principal)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsAddr != ":9090" {
		t.Errorf("expected default metrics addr ':9090', got %s", cfg.Observability.MetricsAddr)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("STT_LANGUAGE_CODE", "es-ES")
	t.Setenv("STT_SAMPLE_RATE_HZ", "16000")
	t.Setenv("STT_INTERIM_RESULTS", "false")
	t.Setenv("CAPTION_STABILITY_INTERVAL", "1500ms")
	t.Setenv("CAPTION_ANNOTATION_WORKERS", "8")
	t.Setenv("SESSION_MAX_AUDIO_BYTES", "10485760")
	t.Setenv("SESSION_MAX_DURATION", "10m")
	t.Setenv("SESSION_MAX_DELTAS", "1000")
	t.Setenv("HISTORY_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_PRINCIPAL", "publisher")

	cfg := mustLoad(t)

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.STT.Provider != "google" || cfg.STT.LanguageCode != "es-ES" {
		t.Errorf("unexpected STT config: %+v", cfg.STT)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults {
		t.Errorf("expected interim results false")
	}
	if cfg.Caption.StabilityInterval != 1500*time.Millisecond {
		t.Errorf("expected stability interval 1.5s, got %v", cfg.Caption.StabilityInterval)
	}
	if cfg.Caption.AnnotationWorkers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Caption.AnnotationWorkers)
	}
	if cfg.SessionLimits.MaxAudioBytes != 10485760 {
		t.Errorf("expected max audio bytes 10485760, got %d", cfg.SessionLimits.MaxAudioBytes)
	}
	if cfg.SessionLimits.MaxDuration != 10*time.Minute {
		t.Errorf("expected max duration 10m, got %v", cfg.SessionLimits.MaxDuration)
	}
	if cfg.SessionLimits.MaxDeltas != 1000 {
		t.Errorf("expected max deltas 1000, got %d", cfg.SessionLimits.MaxDeltas)
	}
	if cfg.History.Backend != "redis" || cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 3 {
		t.Errorf("unexpected storage config: %+v %+v", cfg.History, cfg.Redis)
	}
	if !cfg.Kafka.Enabled {
		t.Errorf("expected Kafka enabled")
	}
	if strings.Join(cfg.Kafka.Brokers, ",") != "k1:9092,k2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Principal != "publisher" {
		t.Errorf("expected Kafka principal 'publisher', got %s", cfg.Kafka.Principal)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("STT_INTERIM_RESULTS", "invalid")
	t.Setenv("CAPTION_STABILITY_INTERVAL", "soon")
	t.Setenv("SESSION_MAX_AUDIO_BYTES", "invalid")
	t.Setenv("SESSION_MAX_DURATION", "invalid")
	t.Setenv("SESSION_MAX_DELTAS", "invalid")

	cfg := mustLoad(t)

	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Errorf("expected default interim results on invalid input")
	}
	if cfg.Caption.StabilityInterval != 2500*time.Millisecond {
		t.Errorf("expected default stability interval on invalid input, got %v", cfg.Caption.StabilityInterval)
	}
	if cfg.SessionLimits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes on invalid input, got %d", cfg.SessionLimits.MaxAudioBytes)
	}
	if cfg.SessionLimits.MaxDuration != 5*time.Minute {
		t.Errorf("expected default max duration on invalid input, got %v", cfg.SessionLimits.MaxDuration)
	}
	if cfg.SessionLimits.MaxDeltas != 500 {
		t.Errorf("expected default max deltas on invalid input, got %d", cfg.SessionLimits.MaxDeltas)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"unknown provider", "STT_PROVIDER", "whisper", "STT.Provider"},
		{"unknown backend", "HISTORY_BACKEND", "postgres", "History.Backend"},
		{"zero workers", "CAPTION_ANNOTATION_WORKERS", "0", "Caption.AnnotationWorkers"},
		{"bad log level", "LOG_LEVEL", "verbose", "Observability.LogLevel"},
		{"non-numeric port", "GRPC_PORT", "grpc", "Service.GRPCPort"},
		{"negative interval", "CAPTION_STABILITY_INTERVAL", "-1s", "Caption.StabilityInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected validation error for %s=%s", tt.key, tt.val)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "caption.yaml")
	doc := `
service:
  httpAddr: ":8181"
caption:
  stabilityInterval: 3s
history:
  backend: sqlite
  path: /var/lib/caption/history.db
kafka:
  topicLive: custom.live
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(FileEnv, path)
	t.Setenv("HTTP_ADDR", ":8282")

	cfg := mustLoad(t)

	if cfg.Service.HTTPAddr != ":8282" {
		t.Errorf("expected env to override file, got %s", cfg.Service.HTTPAddr)
	}
	if cfg.Caption.StabilityInterval != 3*time.Second {
		t.Errorf("expected stability interval from file, got %v", cfg.Caption.StabilityInterval)
	}
	if cfg.History.Backend != "sqlite" || cfg.History.Path != "/var/lib/caption/history.db" {
		t.Errorf("unexpected history config: %+v", cfg.History)
	}
	if cfg.Kafka.TopicLive != "custom.live" {
		t.Errorf("expected topic from file, got %s", cfg.Kafka.TopicLive)
	}
	if cfg.Kafka.TopicCommitted != "caption.history.v1" {
		t.Errorf("expected untouched default, got %s", cfg.Kafka.TopicCommitted)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected untouched default port, got %s", cfg.Service.GRPCPort)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.envValue)

			got := envOrDefaultBool("TEST_BOOL_VAR", tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	def := []string{"a"}
	tests := []struct {
		env  string
		want string
	}{
		{"", "a"},
		{"x,y", "x,y"},
		{" x , ,y ", "x,y"},
		{",,", "a"},
	}
	for _, tt := range tests {
		t.Setenv("TEST_LIST_VAR", tt.env)
		got := strings.Join(envOrDefaultList("TEST_LIST_VAR", def), ",")
		if got != tt.want {
			t.Errorf("envOrDefaultList(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}
