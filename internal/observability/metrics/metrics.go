// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_caption"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Utterance metrics
	UtterancesStarted prometheus.Counter
	UtterancesStopped *prometheus.CounterVec
	UtterancesActive  prometheus.Gauge
	UtteranceDuration prometheus.Histogram

	// Delta metrics
	DeltasApplied prometheus.Counter
	DeltasIgnored *prometheus.CounterVec

	// Annotation metrics
	Annotations       *prometheus.CounterVec
	AnnotationsStale  prometheus.Counter
	AnnotationLatency prometheus.Histogram

	// History metrics
	Commits           *prometheus.CounterVec
	HistorySize       prometheus.Gauge
	PersistenceErrors *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
	EventsDropped       prometheus.Counter

	// STT metrics
	STTErrors *prometheus.CounterVec

	// Backpressure metrics
	SessionLimitExceeded *prometheus.CounterVec

	// gRPC metrics
	GRPCCalls        *prometheus.CounterVec
	GRPCCallDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance registered with the default registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates and registers all Prometheus metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UtterancesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_started_total",
			Help:      "Total number of utterances started",
		}),
		UtterancesStopped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_stopped_total",
			Help:      "Total number of utterances stopped",
		}, []string{"reason"}),
		UtterancesActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "utterances_active",
			Help:      "Whether an utterance is currently being recorded",
		}),
		UtteranceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_duration_seconds",
			Help:      "Duration of recorded utterances in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		DeltasApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deltas_applied_total",
			Help:      "Total number of transcription deltas that replaced the caption text",
		}),
		DeltasIgnored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deltas_ignored_total",
			Help:      "Total number of transcription deltas ignored",
		}, []string{"reason"}),

		Annotations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_total",
			Help:      "Total number of annotations applied to captions",
		}, []string{"trigger", "source"}),
		AnnotationsStale: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_stale_total",
			Help:      "Total number of annotation results discarded as stale",
		}),
		AnnotationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "annotation_latency_seconds",
			Help:      "Time spent computing an annotation",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_commits_total",
			Help:      "Total number of history commit attempts by result",
		}, []string{"result"}),
		HistorySize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Number of entries in caption history",
		}),
		PersistenceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_persistence_errors_total",
			Help:      "Total number of history load/save failures",
		}, []string{"op"}),

		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of caption events dropped because the outbox was full",
		}),

		STTErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),

		SessionLimitExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_limit_exceeded_total",
			Help:      "Total number of times session limits were exceeded",
		}, []string{"limit_type"}),

		GRPCCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls handled",
		}, []string{"method", "code"}),
		GRPCCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_call_duration_seconds",
			Help:      "Duration of gRPC calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// RecordUtteranceStart records a new utterance starting.
func (m *Metrics) RecordUtteranceStart() {
	m.UtterancesStarted.Inc()
	m.UtterancesActive.Set(1)
}

// RecordUtteranceStop records an utterance ending.
func (m *Metrics) RecordUtteranceStop(reason string, durationSeconds float64) {
	m.UtterancesActive.Set(0)
	m.UtterancesStopped.WithLabelValues(reason).Inc()
	m.UtteranceDuration.Observe(durationSeconds)
}

// RecordDeltaApplied records a delta that changed the caption.
func (m *Metrics) RecordDeltaApplied() {
	m.DeltasApplied.Inc()
}

// RecordDeltaIgnored records a delta that was dropped.
func (m *Metrics) RecordDeltaIgnored(reason string) {
	m.DeltasIgnored.WithLabelValues(reason).Inc()
}

// RecordAnnotation records an annotation applied to a caption.
func (m *Metrics) RecordAnnotation(trigger, source string, latencySeconds float64) {
	m.Annotations.WithLabelValues(trigger, source).Inc()
	m.AnnotationLatency.Observe(latencySeconds)
}

// RecordStaleAnnotation records an annotation result that arrived too late.
func (m *Metrics) RecordStaleAnnotation() {
	m.AnnotationsStale.Inc()
}

// RecordCommit records a history commit attempt.
func (m *Metrics) RecordCommit(result string, historySize int) {
	m.Commits.WithLabelValues(result).Inc()
	m.HistorySize.Set(float64(historySize))
}

// SetHistorySize updates the history gauge after non-commit mutations.
func (m *Metrics) SetHistorySize(n int) {
	m.HistorySize.Set(float64(n))
}

// RecordPersistenceError records a failed history load or save.
func (m *Metrics) RecordPersistenceError(op string) {
	m.PersistenceErrors.WithLabelValues(op).Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordEventDropped records an event that could not be queued for publishing.
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Inc()
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordLimitExceeded records when a session limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.SessionLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordGRPCCall records a completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string, durationSeconds float64) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
	m.GRPCCallDuration.WithLabelValues(method).Observe(durationSeconds)
}
