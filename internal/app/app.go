package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"live-caption-service/internal/config"
	"live-caption-service/internal/events"
	"live-caption-service/internal/observability/logging"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/schema"
	"live-caption-service/internal/service/annotate"
	"live-caption-service/internal/service/history"
	"live-caption-service/internal/service/lifecycle"
	"live-caption-service/internal/service/pickup"
	"live-caption-service/internal/service/session"
	"live-caption-service/internal/service/stability"
	"live-caption-service/internal/service/stt"
	"live-caption-service/internal/service/stt/google"
	"live-caption-service/internal/service/stt/mock"
	"live-caption-service/internal/storage"
)

// ErrNotStarted is reported by Ready before Start has been called.
var ErrNotStarted = errors.New("application not started")

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Store      storage.Store
	History    *history.Store
	Annotator  *annotate.Annotator
	Pickup     *pickup.Catalog
	Session    *session.Handler
	Publisher  *events.Publisher
	Outbox     *events.Outbox
	Controller *lifecycle.Controller
	Validator  *schema.Validator

	started atomic.Bool
}

// Option adjusts how New builds the component graph.
type Option func(*options)

type options struct {
	factory  stt.Factory
	provider string
}

// WithSTTFactory replaces the configured transcription provider.
func WithSTTFactory(provider string, f stt.Factory) Option {
	return func(o *options) {
		o.provider = provider
		o.factory = f
	}
}

// New constructs the application and its component graph from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	a := &Application{Cfg: cfg}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetrics(a.Registry)
	a.Validator = schema.NewWithMinTokens(cfg.Caption.MinTokens)

	store, err := storage.Open(ctx, storage.Config{
		Backend:       cfg.History.Backend,
		Path:          cfg.History.Path,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("open history storage: %w", err)
	}
	a.Store = store
	a.History = history.New(ctx, store,
		history.WithKey(cfg.History.Key),
		history.WithValidator(a.Validator),
		history.WithMetrics(a.Metrics),
		history.WithLogger(logging.WithComponent("history")),
	)

	a.Annotator = annotate.NewDefault()
	a.Pickup = pickup.Load(cfg.Pickup.CatalogPath, pickup.WithLogger(logging.WithComponent("pickup")))

	if o.factory == nil {
		o.provider, o.factory = a.sttFactory()
	}
	a.Session = session.NewHandler(o.factory, o.provider,
		session.WithLimits(session.Limits{
			MaxAudioBytes: cfg.SessionLimits.MaxAudioBytes,
			MaxDuration:   cfg.SessionLimits.MaxDuration,
			MaxDeltas:     cfg.SessionLimits.MaxDeltas,
		}),
		session.WithMetrics(a.Metrics),
		session.WithLogger(logging.WithComponent("session")),
	)

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicLive:      cfg.Kafka.TopicLive,
		TopicCommitted: cfg.Kafka.TopicCommitted,
		Principal:      cfg.Kafka.Principal,
	}, events.WithMetrics(a.Metrics), events.WithLogger(logging.WithComponent("events")))
	a.Outbox = events.NewOutbox(a.Publisher, 0, a.Metrics, logging.WithComponent("outbox"))

	a.Controller = lifecycle.New(
		a.Session,
		stability.New(nil, cfg.Caption.StabilityInterval),
		a.Annotator,
		a.History,
		lifecycle.WithMetrics(a.Metrics),
		lifecycle.WithLogger(logging.WithComponent("lifecycle")),
		lifecycle.WithEvents(a.Outbox),
		lifecycle.WithPickup(a.Pickup),
		lifecycle.WithAnnotationWorkers(cfg.Caption.AnnotationWorkers),
	)

	appLogger.Info().
		Str("sttProvider", o.provider).
		Str("historyBackend", cfg.History.Backend).
		Int("historyEntries", a.History.Len()).
		Bool("kafka", a.Publisher.Enabled()).
		Msg("Live caption service application created")
	return a, nil
}

func (a *Application) sttFactory() (string, stt.Factory) {
	switch a.Cfg.STT.Provider {
	case "google":
		gcfg := google.DefaultConfig()
		gcfg.LanguageCode = a.Cfg.STT.LanguageCode
		gcfg.SampleRateHz = a.Cfg.STT.SampleRateHz
		gcfg.InterimResults = a.Cfg.STT.InterimResults
		gcfg.AudioEncoding = a.Cfg.STT.AudioEncoding
		return "google", google.NewFactory(gcfg)
	default:
		var opts []mock.Option
		if a.Cfg.STT.MockInterval > 0 {
			opts = append(opts, mock.WithInterval(a.Cfg.STT.MockInterval))
		}
		return "mock", mock.NewFactory(opts...)
	}
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
		Service:    a.Cfg.Service.Name,
	})
	a.Logger = logging.WithComponent("application")

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.started.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Live caption service starting")

	return nil
}

// Ready reports whether the service can take traffic.
func (a *Application) Ready() error {
	if !a.started.Load() {
		return ErrNotStarted
	}
	return nil
}

// Shutdown commits the live caption and stops accepting events. Queued
// events keep flushing until the outbox Run returns; call Close after that.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Live caption service shutting down")
	a.started.Store(false)

	if err := a.Controller.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Caption controller close failed")
	}
	if err := a.Session.Stop(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Transcription session close failed")
	}
	a.Outbox.Close()
}

// Close releases the event publisher and history storage.
func (a *Application) Close() error {
	return errors.Join(a.Publisher.Close(), a.Store.Close())
}
