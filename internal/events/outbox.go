package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/metrics"
)

// Publishing is the subset of Publisher used by the Outbox.
type Publishing interface {
	PublishLive(ctx context.Context, key, eventType string, event any) error
	PublishCommitted(ctx context.Context, key, eventType string, event any) error
}

type envelope struct {
	committed bool
	key       string
	eventType string
	payload   any
}

// Outbox decouples event publishing from the caller with a bounded queue.
// Events are dropped when the queue is full.
type Outbox struct {
	pub     Publishing
	queue   chan envelope
	metrics *metrics.Metrics
	logger  zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewOutbox creates an outbox with the given queue capacity.
func NewOutbox(pub Publishing, capacity int, m *metrics.Metrics, logger zerolog.Logger) *Outbox {
	if capacity <= 0 {
		capacity = 256
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Outbox{
		pub:     pub,
		queue:   make(chan envelope, capacity),
		metrics: m,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// LiveUpdated queues a live caption event.
func (o *Outbox) LiveUpdated(ev models.CaptionUpdated) {
	o.enqueue(envelope{key: ev.CaptionID, eventType: ev.EventType, payload: ev})
}

// Committed queues a committed caption event.
func (o *Outbox) Committed(ev models.CaptionCommitted) {
	o.enqueue(envelope{committed: true, key: ev.CaptionID, eventType: ev.EventType, payload: ev})
}

func (o *Outbox) enqueue(e envelope) {
	select {
	case <-o.done:
		return
	default:
	}
	select {
	case o.queue <- e:
	default:
		o.metrics.RecordEventDropped()
		o.logger.Warn().Str("eventType", e.eventType).Str("key", e.key).Msg("Event outbox full, dropping event")
	}
}

// Run drains the queue until ctx is cancelled or Close is called. Remaining
// queued events are flushed before returning.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case e := <-o.queue:
			o.send(ctx, e)
		case <-ctx.Done():
			o.drain(context.Background())
			return nil
		case <-o.done:
			o.drain(ctx)
			return nil
		}
	}
}

func (o *Outbox) drain(ctx context.Context) {
	for {
		select {
		case e := <-o.queue:
			o.send(ctx, e)
		default:
			return
		}
	}
}

func (o *Outbox) send(ctx context.Context, e envelope) {
	var err error
	if e.committed {
		err = o.pub.PublishCommitted(ctx, e.key, e.eventType, e.payload)
	} else {
		err = o.pub.PublishLive(ctx, e.key, e.eventType, e.payload)
	}
	if err != nil {
		o.logger.Warn().Err(err).Str("eventType", e.eventType).Str("key", e.key).Msg("Failed to publish event")
	}
}

// Close stops accepting events and signals Run to flush and return.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() { close(o.done) })
}
