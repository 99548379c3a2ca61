// Package events publishes caption activity to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-caption-service/internal/observability/metrics"
)

// Publisher publishes caption events to separate Kafka topics: one for live
// caption updates and one for captions committed to history.
type Publisher struct {
	writerLive      *kafka.Writer
	writerCommitted *kafka.Writer
	principal       string
	topicLive       string
	topicCommitted  string
	enabled         bool
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicLive      string
	TopicCommitted string
	Principal      string
	Enabled        bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithLogger overrides the publisher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a Kafka event publisher. A nil or disabled config, or one
// without brokers, produces a log-only publisher.
func New(cfg *Config, opts ...Option) *Publisher {
	p := &Publisher{
		metrics: metrics.DefaultMetrics,
		logger:  log.Logger.With().Str("component", "events").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if cfg == nil {
		p.logger.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return p
	}

	p.principal = cfg.Principal
	p.topicLive = cfg.TopicLive
	p.topicCommitted = cfg.TopicCommitted

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		p.logger.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerLive = newWriter(cfg.Brokers, cfg.TopicLive, transport)
	p.writerCommitted = newWriter(cfg.Brokers, cfg.TopicCommitted, transport)
	p.enabled = true

	p.logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicLive", cfg.TopicLive).
		Str("topicCommitted", cfg.TopicCommitted).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishLive publishes a live caption event to the live topic.
func (p *Publisher) PublishLive(ctx context.Context, key, eventType string, event any) error {
	return p.publish(ctx, p.writerLive, p.topicLive, eventType, key, event)
}

// PublishCommitted publishes a committed caption event to the committed topic.
func (p *Publisher) PublishCommitted(ctx context.Context, key, eventType string, event any) error {
	return p.publish(ctx, p.writerCommitted, p.topicCommitted, eventType, key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	p.logger.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("eventType", eventType).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerLive != nil {
		if e := p.writerLive.Close(); e != nil {
			p.logger.Error().Err(e).Msg("Error closing live writer")
			err = e
		}
	}
	if p.writerCommitted != nil {
		if e := p.writerCommitted.Close(); e != nil {
			p.logger.Error().Err(e).Msg("Error closing committed writer")
			err = e
		}
	}
	return err
}
