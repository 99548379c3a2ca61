// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnv names the variable pointing at an optional YAML config file.
const FileEnv = "CAPTION_CONFIG_FILE"

type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	STT           STTConfig           `yaml:"stt"`
	Caption       CaptionConfig       `yaml:"caption"`
	SessionLimits SessionLimitsConfig `yaml:"sessionLimits"`
	History       HistoryConfig       `yaml:"history"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Pickup        PickupConfig        `yaml:"pickup"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Principal string `yaml:"principal" validate:"required"`
	HTTPAddr  string `yaml:"httpAddr" validate:"required"`
	GRPCPort  string `yaml:"grpcPort" validate:"required,numeric"`
}

type STTConfig struct {
	Provider       string `yaml:"provider" validate:"oneof=mock google"`
	LanguageCode   string `yaml:"languageCode" validate:"required"`
	SampleRateHz   int32  `yaml:"sampleRateHz" validate:"gt=0"`
	InterimResults bool   `yaml:"interimResults"`
	AudioEncoding  string `yaml:"audioEncoding" validate:"required"`
	// MockInterval drives the mock provider on a timer; zero means audio-driven.
	MockInterval time.Duration `yaml:"mockInterval" validate:"gte=0"`
}

// CaptionConfig tunes the caption lifecycle.
type CaptionConfig struct {
	StabilityInterval time.Duration `yaml:"stabilityInterval" validate:"gt=0"`
	AnnotationWorkers int           `yaml:"annotationWorkers" validate:"gte=1"`
	MinTokens         int           `yaml:"minTokens" validate:"gte=1"`
}

// SessionLimitsConfig holds per-session limits for the transcription source.
type SessionLimitsConfig struct {
	MaxAudioBytes int64         `yaml:"maxAudioBytes" validate:"gt=0"`
	MaxDuration   time.Duration `yaml:"maxDuration" validate:"gt=0"`
	MaxDeltas     int           `yaml:"maxDeltas" validate:"gt=0"`
}

type HistoryConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file sqlite redis memory"`
	Path    string `yaml:"path" validate:"required_if=Backend file,required_if=Backend sqlite"`
	Key     string `yaml:"key" validate:"required"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers" validate:"required_if=Enabled true"`
	TopicLive      string   `yaml:"topicLive" validate:"required"`
	TopicCommitted string   `yaml:"topicCommitted" validate:"required"`
	Principal      string   `yaml:"principal"`
}

type PickupConfig struct {
	CatalogPath string `yaml:"catalogPath"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"logLevel" validate:"oneof=trace debug info warn error"`
	LogFormat   string `yaml:"logFormat" validate:"oneof=json console"`
	MetricsAddr string `yaml:"metricsAddr" validate:"required"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "live-caption-service",
			Principal: "svc-live-caption",
			HTTPAddr:  ":8080",
			GRPCPort:  "50051",
		},
		STT: STTConfig{
			Provider:       "mock",
			LanguageCode:   "en-US",
			SampleRateHz:   8000,
			InterimResults: true,
			AudioEncoding:  "LINEAR16",
		},
		Caption: CaptionConfig{
			StabilityInterval: 2500 * time.Millisecond,
			AnnotationWorkers: 4,
			MinTokens:         2,
		},
		SessionLimits: SessionLimitsConfig{
			MaxAudioBytes: 5 * 1024 * 1024,
			MaxDuration:   5 * time.Minute,
			MaxDeltas:     500,
		},
		History: HistoryConfig{
			Backend: "file",
			Path:    "data",
			Key:     "CaptionHistory",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			TopicLive:      "caption.live.v1",
			TopicCommitted: "caption.history.v1",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: ":9090",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CAPTION_CONFIG_FILE, then environment variables. A .env file in the
// working directory is read first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Service.Name = envOrDefault("SERVICE_NAME", c.Service.Name)
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.HTTPAddr = envOrDefault("HTTP_ADDR", c.Service.HTTPAddr)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)

	c.STT.Provider = envOrDefault("STT_PROVIDER", c.STT.Provider)
	c.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", c.STT.LanguageCode)
	c.STT.SampleRateHz = int32(envOrDefaultInt("STT_SAMPLE_RATE_HZ", int(c.STT.SampleRateHz)))
	c.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", c.STT.InterimResults)
	c.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", c.STT.AudioEncoding)
	c.STT.MockInterval = envOrDefaultDuration("STT_MOCK_INTERVAL", c.STT.MockInterval)

	c.Caption.StabilityInterval = envOrDefaultDuration("CAPTION_STABILITY_INTERVAL", c.Caption.StabilityInterval)
	c.Caption.AnnotationWorkers = envOrDefaultInt("CAPTION_ANNOTATION_WORKERS", c.Caption.AnnotationWorkers)
	c.Caption.MinTokens = envOrDefaultInt("CAPTION_MIN_TOKENS", c.Caption.MinTokens)

	c.SessionLimits.MaxAudioBytes = envOrDefaultInt64("SESSION_MAX_AUDIO_BYTES", c.SessionLimits.MaxAudioBytes)
	c.SessionLimits.MaxDuration = envOrDefaultDuration("SESSION_MAX_DURATION", c.SessionLimits.MaxDuration)
	c.SessionLimits.MaxDeltas = envOrDefaultInt("SESSION_MAX_DELTAS", c.SessionLimits.MaxDeltas)

	c.History.Backend = envOrDefault("HISTORY_BACKEND", c.History.Backend)
	c.History.Path = envOrDefault("HISTORY_PATH", c.History.Path)
	c.History.Key = envOrDefault("HISTORY_KEY", c.History.Key)

	c.Redis.Addr = envOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOrDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envOrDefaultInt("REDIS_DB", c.Redis.DB)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.TopicLive = envOrDefault("KAFKA_TOPIC_LIVE", c.Kafka.TopicLive)
	c.Kafka.TopicCommitted = envOrDefault("KAFKA_TOPIC_COMMITTED", c.Kafka.TopicCommitted)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Pickup.CatalogPath = envOrDefault("PICKUP_CATALOG_PATH", c.Pickup.CatalogPath)

	c.Observability.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", c.Observability.LogLevel))
	c.Observability.LogFormat = strings.ToLower(envOrDefault("LOG_FORMAT", c.Observability.LogFormat))
	c.Observability.MetricsAddr = envOrDefault("METRICS_ADDR", c.Observability.MetricsAddr)
}

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
