package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-caption-service/internal/observability/logging"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/service/stt"
)

// ErrNoSession is returned when audio arrives while no session is open.
var ErrNoSession = errors.New("no active transcription session")

// Limits defines safety guardrails for a single session.
// These prevent unbounded resource usage and ensure backpressure.
type Limits struct {
	MaxAudioBytes int64         // Max audio accepted per session
	MaxDuration   time.Duration // Max session duration
	MaxDeltas     int           // Max hypotheses forwarded per session
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // 5MB (~5 minutes at 8kHz 16-bit mono)
		MaxDuration:   5 * time.Minute,
		MaxDeltas:     500,
	}
}

// Option configures a Handler.
type Option func(*Handler)

// WithLimits overrides the default session limits.
func WithLimits(l Limits) Option {
	return func(h *Handler) { h.limits = l }
}

// WithClock sets the clock used for the duration limit.
func WithClock(c clock.Clock) Option {
	return func(h *Handler) { h.clock = c }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger overrides the handler logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// Handler runs one provider session at a time on behalf of the caption
// controller. It forwards provider callbacks downstream, drops callbacks from
// superseded sessions and enforces Limits.
type Handler struct {
	factory  stt.Factory
	provider string
	limits   Limits
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu         sync.RWMutex
	seq        uint64
	adapter    stt.Adapter
	downstream stt.Callback
	lifecycle  *Lifecycle
	timer      *clock.Timer

	// Current session metrics (reset on Start)
	startTime  time.Time
	audioBytes int64
	deltaCount int
}

// NewHandler creates a handler that opens sessions through factory.
func NewHandler(factory stt.Factory, provider string, opts ...Option) *Handler {
	h := &Handler{
		factory:   factory,
		provider:  provider,
		limits:    DefaultLimits(),
		clock:     clock.New(),
		metrics:   metrics.DefaultMetrics,
		logger:    log.Logger.With().Str("component", "session").Logger(),
		lifecycle: NewLifecycle(0),
	}
	h.lifecycle.Close()
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start opens a new provider session delivering to cb. A session that is
// still open is closed first.
func (h *Handler) Start(ctx context.Context, cb stt.Callback) error {
	h.closeCurrent()

	adapter, err := h.factory(ctx)
	if err != nil {
		h.metrics.RecordSTTError(h.provider, "create")
		return fmt.Errorf("create %s adapter: %w", h.provider, err)
	}

	h.mu.Lock()
	h.seq++
	id := h.seq
	h.adapter = adapter
	h.downstream = cb
	h.lifecycle.Reset(id)
	h.startTime = h.clock.Now()
	h.audioBytes = 0
	h.deltaCount = 0
	if h.limits.MaxDuration > 0 {
		h.timer = h.clock.AfterFunc(h.limits.MaxDuration, func() {
			h.limitExceeded(id, "max_duration", stt.ErrSessionTimeout,
				fmt.Sprintf("max duration exceeded: %v", h.limits.MaxDuration))
		})
	}
	h.mu.Unlock()

	if err := adapter.Start(ctx, &sessionCallback{h: h, id: id}); err != nil {
		h.closeSession(id)
		h.metrics.RecordSTTError(h.provider, "start")
		return fmt.Errorf("start %s session: %w", h.provider, err)
	}

	sl := logging.WithSession(h.logger, id, h.provider)
	sl.Info().Msg("Transcription session started")
	return nil
}

// Stop closes the current session. No callbacks are forwarded afterwards.
func (h *Handler) Stop() error {
	return h.closeCurrent()
}

func (h *Handler) closeCurrent() error {
	h.mu.RLock()
	id := h.seq
	h.mu.RUnlock()
	return h.closeSession(id)
}

func (h *Handler) closeSession(id uint64) error {
	h.mu.Lock()
	if id != h.seq || h.adapter == nil {
		h.mu.Unlock()
		return nil
	}
	adapter := h.adapter
	h.adapter = nil
	h.downstream = nil
	h.lifecycle.Close()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	bytes, deltas := h.audioBytes, h.deltaCount
	duration := h.clock.Since(h.startTime)
	h.mu.Unlock()

	sl := logging.WithSession(h.logger, id, h.provider)
	sl.Info().
		Int64("audioBytes", bytes).
		Int("deltas", deltas).
		Dur("duration", duration.Round(time.Millisecond)).
		Msg("Transcription session closed")

	return adapter.Close()
}

// SendAudio forwards audio bytes to the current session.
// Returns an error if no session is open or a limit is exceeded (the session
// is dropped).
func (h *Handler) SendAudio(ctx context.Context, audio []byte) error {
	h.mu.Lock()
	if h.adapter == nil || h.lifecycle.State().IsTerminal() {
		h.mu.Unlock()
		return ErrNoSession
	}
	id := h.seq
	adapter := h.adapter
	h.audioBytes += int64(len(audio))
	currentBytes := h.audioBytes
	elapsed := h.clock.Since(h.startTime)
	h.mu.Unlock()

	h.metrics.RecordAudioReceived(len(audio))

	if h.limits.MaxAudioBytes > 0 && currentBytes > h.limits.MaxAudioBytes {
		reason := fmt.Sprintf("max audio bytes exceeded: %d > %d", currentBytes, h.limits.MaxAudioBytes)
		h.limitExceeded(id, "max_audio_bytes", stt.ErrSessionLimit, reason)
		return fmt.Errorf("%w: %s", stt.ErrSessionLimit, reason)
	}

	if h.limits.MaxDuration > 0 && elapsed > h.limits.MaxDuration {
		reason := fmt.Sprintf("max duration exceeded: %v > %v", elapsed, h.limits.MaxDuration)
		h.limitExceeded(id, "max_duration", stt.ErrSessionTimeout, reason)
		return fmt.Errorf("%w: %s", stt.ErrSessionTimeout, reason)
	}

	return adapter.SendAudio(ctx, audio)
}

// Active reports whether a session is open.
func (h *Handler) Active() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.adapter != nil && !h.lifecycle.State().IsTerminal()
}

// State returns the lifecycle state of the current session.
func (h *Handler) State() State {
	return h.lifecycle.State()
}

// Metrics holds current session usage.
type Metrics struct {
	AudioBytes int64
	DeltaCount int
	Duration   time.Duration
}

// SessionMetrics returns current session metrics for observability.
func (h *Handler) SessionMetrics() Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Metrics{
		AudioBytes: h.audioBytes,
		DeltaCount: h.deltaCount,
		Duration:   h.clock.Since(h.startTime),
	}
}

// limitExceeded drops session id and reports cause downstream.
func (h *Handler) limitExceeded(id uint64, limitType string, cause error, reason string) {
	h.mu.RLock()
	if id != h.seq || !h.lifecycle.Drop() {
		h.mu.RUnlock()
		return
	}
	cb := h.downstream
	h.mu.RUnlock()

	h.metrics.RecordLimitExceeded(limitType)
	sl := logging.WithSession(h.logger, id, h.provider)
	sl.Warn().Str("reason", reason).Msg("Session DROPPED")

	if cb != nil {
		cb.OnError(fmt.Errorf("%w: %s", cause, reason))
	}
}

func (h *Handler) onDelta(id uint64, text string) {
	h.mu.Lock()
	if id != h.seq || h.lifecycle.EmitDelta() != nil {
		h.mu.Unlock()
		return
	}
	h.deltaCount++
	count := h.deltaCount
	cb := h.downstream
	h.mu.Unlock()

	if h.limits.MaxDeltas > 0 && count > h.limits.MaxDeltas {
		reason := fmt.Sprintf("max deltas exceeded: %d > %d", count, h.limits.MaxDeltas)
		h.limitExceeded(id, "max_deltas", stt.ErrSessionLimit, reason)
		return
	}
	if cb != nil {
		cb.OnDelta(text)
	}
}

func (h *Handler) onEnd(id uint64, err error) {
	h.mu.RLock()
	if id != h.seq || !h.lifecycle.End() {
		h.mu.RUnlock()
		return
	}
	cb := h.downstream
	h.mu.RUnlock()

	if cb == nil {
		return
	}
	if err != nil {
		h.metrics.RecordSTTError(h.provider, "stream")
		sl := logging.WithSession(h.logger, id, h.provider)
		sl.Error().Err(err).Msg("Transcription session failed")
		cb.OnError(err)
		return
	}
	cb.OnSessionEnd()
}

// sessionCallback tags provider callbacks with the session they belong to.
type sessionCallback struct {
	h  *Handler
	id uint64
}

func (c *sessionCallback) OnDelta(text string) { c.h.onDelta(c.id, text) }
func (c *sessionCallback) OnSessionEnd()       { c.h.onEnd(c.id, nil) }
func (c *sessionCallback) OnError(err error)   { c.h.onEnd(c.id, err) }
