package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/logging"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/service/annotate"
	"live-caption-service/internal/service/stability"
	"live-caption-service/internal/service/stt"
	"live-caption-service/internal/textx"
)

// ErrControllerClosed is returned by operations issued after Close.
var ErrControllerClosed = errors.New("caption controller closed")

// StopReason says why an utterance ended.
type StopReason string

const (
	ReasonStop         StopReason = "stop"
	ReasonTimeout      StopReason = "timeout"
	ReasonSessionLimit StopReason = "session_limit"
	ReasonSourceEnded  StopReason = "source_ended"
	ReasonSourceError  StopReason = "source_error"
	ReasonClear        StopReason = "clear"
	ReasonRestart      StopReason = "restart"
	ReasonManualEdit   StopReason = "manual_edit"
	ReasonShutdown     StopReason = "shutdown"
)

// Annotation triggers, used as metric labels.
const (
	triggerStability = "stability"
	triggerStop      = "stop"
)

// Source is a transcription source bounded by Start and Stop.
type Source interface {
	Start(ctx context.Context, cb stt.Callback) error
	Stop() error
}

// Annotator picks emoji for settled text. It must be safe for concurrent use.
type Annotator interface {
	Annotate(text string) models.AnnotationResult
}

// History receives finished captions.
type History interface {
	Add(c models.Caption) (models.HistoryEntry, error)
}

// PickupProvider supplies pickup lines for a shake of the given strength.
type PickupProvider interface {
	GetPickupLine(strength float64) (string, bool)
}

// EventSink receives caption events. Calls must not block.
type EventSink interface {
	LiveUpdated(ev models.CaptionUpdated)
	Committed(ev models.CaptionCommitted)
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Caption    *models.Caption
	State      State
	Generation uint64
	Committed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithLogger overrides the controller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithEvents publishes caption events to sink.
func WithEvents(sink EventSink) Option {
	return func(ctl *Controller) { ctl.events = sink }
}

// WithPickup enables ShowPickupLine.
func WithPickup(p PickupProvider) Option {
	return func(ctl *Controller) { ctl.pickup = p }
}

// WithAnnotationWorkers bounds concurrent background annotations.
func WithAnnotationWorkers(n int) Option {
	return func(ctl *Controller) {
		if n > 0 {
			ctl.workers = n
		}
	}
}

// WithMailboxSize sets the controller queue capacity.
func WithMailboxSize(n int) Option {
	return func(ctl *Controller) {
		if n > 0 {
			ctl.mailboxSize = n
		}
	}
}

// Controller owns the current caption. All caption state is read and written
// only by the goroutine running Run; every other goroutine (source callbacks,
// stability timers, annotation workers, API callers) posts a message to the
// mailbox instead.
//
// The ctx passed to an operation bounds only the wait for the loop to accept
// it. An accepted operation always runs to completion and its result is
// returned, so a cancelled caller never sees an error for a stop that
// committed.
type Controller struct {
	source    Source
	detector  *stability.Detector
	annotator Annotator
	history   History
	pickup    PickupProvider
	events    EventSink

	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	workers     int
	mailboxSize int

	mailbox chan func()
	sem     chan struct{}
	quit    chan struct{}
	done    chan struct{}
	running atomic.Bool
	closing sync.Once

	// Owned by the loop goroutine.
	state      State
	caption    *models.Caption
	committed  bool
	gen        Generation
	captionGen uint64
	session    uint64
	startedAt  time.Time
	stopSource context.CancelFunc
}

// New creates a controller. Run must be started before issuing operations.
func New(source Source, detector *stability.Detector, annotator Annotator, history History, opts ...Option) *Controller {
	c := &Controller{
		source:      source,
		detector:    detector,
		annotator:   annotator,
		history:     history,
		clock:       clock.New(),
		metrics:     metrics.DefaultMetrics,
		logger:      log.Logger.With().Str("component", "lifecycle").Logger(),
		workers:     4,
		mailboxSize: 64,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mailbox = make(chan func(), c.mailboxSize)
	c.sem = make(chan struct{}, c.workers)
	return c
}

// Run processes the mailbox until ctx is cancelled or Close is called. On
// exit the current caption is committed.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("caption controller already running")
	}
	defer close(c.done)

	c.logger.Info().Msg("Caption controller started")
	for {
		select {
		case fn := <-c.mailbox:
			fn()
		case <-ctx.Done():
			c.shutdown()
			return nil
		case <-c.quit:
			c.shutdown()
			return nil
		}
	}
}

func (c *Controller) shutdown() {
	if c.state.IsRecording() {
		c.stop(ReasonShutdown)
	} else {
		c.commitCurrent(ReasonShutdown)
	}
	c.logger.Info().Msg("Caption controller stopped")
}

// Close stops the loop, committing the current caption first.
func (c *Controller) Close() error {
	c.closing.Do(func() { close(c.quit) })
	if c.running.Load() {
		<-c.done
	}
	return nil
}

// do runs fn on the loop and waits for it to finish. ctx only bounds the wait
// for a mailbox slot: once queued, fn runs to completion and do reports its
// outcome.
func (c *Controller) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	msg := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.mailbox <- msg:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrControllerClosed
	case <-c.done:
		return ErrControllerClosed
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrControllerClosed
		}
	}
}

// post queues fn without waiting. Messages posted after shutdown are dropped.
func (c *Controller) post(fn func()) {
	select {
	case c.mailbox <- fn:
	case <-c.quit:
	case <-c.done:
	}
}

// StartUtterance begins a new caption. An uncommitted previous caption is
// committed first.
func (c *Controller) StartUtterance(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	runErr := c.do(ctx, func() {
		err = c.start(ctx)
		snap = c.snapshot()
	})
	if runErr != nil {
		return Snapshot{}, runErr
	}
	return snap, err
}

// StopUtterance ends the current utterance and commits it. It reports whether
// a history entry was added.
func (c *Controller) StopUtterance(ctx context.Context, reason StopReason) (bool, error) {
	var committed bool
	err := c.do(ctx, func() {
		if c.state.IsRecording() {
			committed = c.stop(reason)
		} else {
			committed = c.commitCurrent(reason)
		}
	})
	return committed, err
}

// Clear commits the current caption and removes it from the screen.
func (c *Controller) Clear(ctx context.Context) (bool, error) {
	var committed bool
	err := c.do(ctx, func() {
		if c.state.IsRecording() {
			committed = c.stop(ReasonClear)
		} else {
			committed = c.commitCurrent(ReasonClear)
		}
		old := c.caption
		c.caption = nil
		c.committed = false
		c.captionGen = c.gen.Next()
		if old != nil {
			c.publishLive(models.EventCaptionUpdated, old.ID, "", false)
		}
	})
	return committed, err
}

// SetText replaces the caption with manually entered text. Manual text is
// never annotated. A running recording is ended without committing.
func (c *Controller) SetText(ctx context.Context, text string) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() {
		c.setManual(text)
		snap = c.snapshot()
	})
	return snap, err
}

// ShowPickupLine displays a pickup line as manual text. ok is false when the
// provider has nothing to offer.
func (c *Controller) ShowPickupLine(ctx context.Context, strength float64) (snap Snapshot, ok bool, err error) {
	if c.pickup == nil {
		return Snapshot{}, false, nil
	}
	line, ok := c.pickup.GetPickupLine(strength)
	if !ok {
		return Snapshot{}, false, nil
	}
	snap, err = c.SetText(ctx, line)
	return snap, err == nil, err
}

// Deliver injects a transcription delta into the current session as if the
// source had produced it.
func (c *Controller) Deliver(ctx context.Context, text string) error {
	return c.do(ctx, func() {
		c.handleDelta(c.session, text)
	})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() {
		snap = c.snapshot()
	})
	return snap, err
}

// --- loop-owned handlers ---

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{State: c.state, Generation: c.captionGen, Committed: c.committed}
	if c.caption != nil {
		cp := *c.caption
		s.Caption = &cp
	}
	return s
}

func (c *Controller) setState(to State) {
	next, err := transition(c.state, to)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Unexpected state change")
		next = to
	}
	c.state = next
}

func (c *Controller) start(ctx context.Context) error {
	if c.state.IsRecording() {
		c.stop(ReasonRestart)
	} else {
		c.detector.Cancel()
		c.commitCurrent(ReasonRestart)
	}

	now := c.clock.Now()
	c.caption = &models.Caption{
		ID:         uuid.NewString(),
		CreatedAt:  now.Truncate(time.Millisecond),
		FromSpeech: true,
	}
	c.committed = false
	c.captionGen = c.gen.Next()
	c.session++
	c.startedAt = now

	// The source session outlives the call that started it.
	srcCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logger := c.captionLogger()
	if err := c.source.Start(srcCtx, &sourceCallback{c: c, session: c.session}); err != nil {
		cancel()
		logger.Error().Err(err).Msg("Transcription source failed to start")
		c.session++
		c.setState(StateIdle)
		return err
	}

	c.stopSource = cancel
	c.setState(StateRecording)
	c.metrics.RecordUtteranceStart()
	c.publishLive(models.EventCaptionUpdated, c.caption.ID, "", false)
	logger.Info().Msg("Utterance started")
	return nil
}

// stop ends the recording and commits the caption.
func (c *Controller) stop(reason StopReason) bool {
	c.endRecording(reason)
	return c.commitCurrent(reason)
}

// endRecording closes the source and cancels the timer without committing.
func (c *Controller) endRecording(reason StopReason) {
	c.detector.Cancel()
	if !c.state.IsRecording() {
		return
	}
	c.session++
	if err := c.source.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("Transcription source stop failed")
	}
	if c.stopSource != nil {
		c.stopSource()
		c.stopSource = nil
	}
	c.metrics.RecordUtteranceStop(string(reason), c.clock.Since(c.startedAt).Seconds())
	logger := c.captionLogger()
	logger.Info().Str("reason", string(reason)).Msg("Utterance stopped")
	c.setState(StateIdle)
}

// commitCurrent finalizes and commits the caption once. Speech captions are
// annotated synchronously first if no annotation has landed yet.
func (c *Controller) commitCurrent(reason StopReason) bool {
	if c.caption == nil || c.committed || c.caption.IsEmpty() {
		return false
	}
	c.setState(StateCommitting)
	defer c.setState(StateIdle)

	if c.caption.FromSpeech && !c.caption.HasAnnotation {
		start := time.Now()
		res := c.annotator.Annotate(c.caption.Text)
		c.applyResult(res, triggerStop, time.Since(start))
	}

	c.committed = true
	entry, err := c.history.Add(*c.caption)
	logger := c.captionLogger()
	if err != nil {
		logger.Debug().Err(err).Str("reason", string(reason)).Msg("Caption not committed")
		return false
	}

	if c.events != nil {
		c.events.Committed(models.CaptionCommitted{
			EventType:     models.EventCaptionCommitted,
			CaptionID:     entry.ID,
			Timestamp:     c.clock.Now().UnixMilli(),
			CreatedAt:     entry.CreatedAt,
			Text:          entry.Text,
			HasAnnotation: entry.HasAnnotation,
			Reason:        string(reason),
		})
	}
	logger.Info().Str("reason", string(reason)).Msg("Caption committed to history")
	return true
}

func (c *Controller) setManual(text string) {
	if c.state.IsRecording() {
		c.endRecording(ReasonManualEdit)
	}
	if c.caption == nil || c.committed {
		c.caption = &models.Caption{
			ID:        uuid.NewString(),
			CreatedAt: c.clock.Now().Truncate(time.Millisecond),
		}
		c.committed = false
	}
	c.caption.Text = text
	c.caption.FromSpeech = false
	c.caption.HasAnnotation = false
	c.captionGen = c.gen.Next()
	c.setState(StateIdle)
	c.publishLive(models.EventCaptionUpdated, c.caption.ID, text, false)
}

func (c *Controller) handleDelta(session uint64, text string) {
	switch {
	case session != c.session:
		c.metrics.RecordDeltaIgnored("stale_session")
		return
	case !c.state.IsRecording() || c.caption == nil:
		c.metrics.RecordDeltaIgnored("not_recording")
		return
	}

	base := textx.BaseText(text)
	switch {
	case base == "":
		c.metrics.RecordDeltaIgnored("empty")
		return
	case base == textx.BaseText(c.caption.Text):
		c.metrics.RecordDeltaIgnored("unchanged")
		return
	}

	c.caption.Text = text
	c.caption.HasAnnotation = false
	c.captionGen = c.gen.Next()
	c.detector.Arm(c.clock.Now(), c.onStable)
	c.setState(StateStabilizing)
	c.metrics.RecordDeltaApplied()
	c.publishLive(models.EventCaptionUpdated, c.caption.ID, text, false)
}

// onStable runs on a timer goroutine.
func (c *Controller) onStable(tok stability.Token) {
	c.post(func() { c.handleStable(tok) })
}

func (c *Controller) handleStable(tok stability.Token) {
	if !c.detector.Accept(tok) {
		return
	}
	if !c.state.IsRecording() || c.caption == nil || c.caption.IsEmpty() ||
		c.caption.HasAnnotation || !c.caption.FromSpeech {
		return
	}

	gen, text := c.captionGen, c.caption.Text
	c.setState(StateAnnotating)
	logger := c.captionLogger()
	logger.Debug().Msg("Text stable, annotating")

	go func() {
		select {
		case c.sem <- struct{}{}:
		case <-c.quit:
			return
		}
		defer func() { <-c.sem }()

		start := time.Now()
		res := c.annotator.Annotate(text)
		latency := time.Since(start)
		c.post(func() { c.handleAnnotation(gen, res, latency) })
	}()
}

func (c *Controller) handleAnnotation(gen uint64, res models.AnnotationResult, latency time.Duration) {
	if c.caption == nil || gen != c.captionGen || c.caption.HasAnnotation || c.committed {
		c.metrics.RecordStaleAnnotation()
		c.logger.Debug().Uint64("generation", gen).Uint64("current", c.captionGen).Msg("Stale annotation discarded")
		return
	}
	c.applyResult(res, triggerStability, latency)
	if c.state == StateAnnotating {
		c.setState(StateRecording)
	}
}

func (c *Controller) applyResult(res models.AnnotationResult, trigger string, latency time.Duration) {
	if len(res.Emoji) == 0 {
		res = models.AnnotationResult{Emoji: []string{annotate.FallbackEmoji}, Source: models.AnnotationFallback}
	}
	c.caption.Text = annotate.Apply(c.caption.Text, res)
	c.caption.HasAnnotation = true
	c.metrics.RecordAnnotation(trigger, string(res.Source), latency.Seconds())
	c.publishLive(models.EventCaptionAnnotated, c.caption.ID, c.caption.Text, true)
	logger := c.captionLogger()
	logger.Debug().
		Str("trigger", trigger).
		Str("source", string(res.Source)).
		Str("emoji", res.String()).
		Msg("Caption annotated")
}

func (c *Controller) handleSourceEnd(session uint64, err error) {
	if session != c.session || !c.state.IsRecording() {
		return
	}
	reason := ReasonSourceEnded
	switch {
	case errors.Is(err, stt.ErrSessionTimeout):
		reason = ReasonTimeout
	case errors.Is(err, stt.ErrSessionLimit):
		reason = ReasonSessionLimit
	case err != nil:
		reason = ReasonSourceError
		logger := c.captionLogger()
		logger.Warn().Err(err).Msg("Transcription source failed, stopping")
	}
	c.stop(reason)
}

func (c *Controller) publishLive(eventType, captionID, text string, annotated bool) {
	if c.events == nil {
		return
	}
	c.events.LiveUpdated(models.CaptionUpdated{
		EventType:     eventType,
		CaptionID:     captionID,
		Generation:    c.captionGen,
		Timestamp:     c.clock.Now().UnixMilli(),
		Text:          text,
		HasAnnotation: annotated,
	})
}

func (c *Controller) captionLogger() zerolog.Logger {
	if c.caption == nil {
		return c.logger
	}
	return logging.WithCaption(c.logger, c.caption.ID, c.captionGen)
}

// sourceCallback tags source callbacks with the session they belong to so
// late callbacks from an earlier session are ignored.
type sourceCallback struct {
	c       *Controller
	session uint64
}

func (s *sourceCallback) OnDelta(text string) {
	s.c.post(func() { s.c.handleDelta(s.session, text) })
}

func (s *sourceCallback) OnSessionEnd() {
	s.c.post(func() { s.c.handleSourceEnd(s.session, nil) })
}

func (s *sourceCallback) OnError(err error) {
	s.c.post(func() { s.c.handleSourceEnd(s.session, err) })
}
