// Package mock provides a scripted STT adapter for running without cloud credentials.
// It simulates a recognizer revising its hypothesis for one utterance: every step
// delivers the full text so far, and the session ends after the last step.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"live-caption-service/internal/service/stt"
)

// Script is the sequence of progressively revised hypotheses for one utterance.
type Script []string

// DefaultScripts provides sample utterances for simulation.
var DefaultScripts = []Script{
	{"good", "good morning", "good morning everyone", "good morning everyone thanks for coming"},
	{"I", "I love", "I love this coffee", "I love this coffee shop"},
	{"the", "the weather", "the weather looks", "the weather looks terrible today"},
	{"let's", "let's meet", "let's meet at the", "let's meet at the station later"},
	{"can", "can you", "can you help me", "can you help me with my phone"},
}

// scriptCounter tracks which script to use next (cycles through defaults)
var (
	scriptCounter int
	counterMu     sync.Mutex
)

// Option configures the mock adapter.
type Option func(*Adapter)

// WithScript replays the given hypotheses instead of a default script.
func WithScript(s Script) Option {
	return func(a *Adapter) { a.script = s }
}

// WithInterval plays the script on its own, one step per interval, without
// waiting for audio. Zero keeps the adapter audio-driven.
func WithInterval(d time.Duration) Option {
	return func(a *Adapter) { a.interval = d }
}

// WithClock sets the clock used for auto-play.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// WithFailure reports err through OnError instead of ending the session
// normally once the script is exhausted.
func WithFailure(err error) Option {
	return func(a *Adapter) { a.failure = err }
}

// Adapter implements stt.Adapter with scripted responses.
// Audio-driven mode emits one hypothesis per SendAudio call; auto-play mode
// emits one per interval. The session ends once after the last hypothesis.
type Adapter struct {
	mu       sync.Mutex
	cb       stt.Callback
	script   Script
	interval time.Duration
	clock    clock.Clock
	failure  error

	step          int  // Next hypothesis to send
	audioReceived int  // Count of audio frames received
	ended         bool // Ensures only one session end
	closed        bool
	stop          chan struct{}
}

// New creates a new mock STT adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{clock: clock.New()}
	for _, opt := range opts {
		opt(a)
	}
	if a.script == nil {
		counterMu.Lock()
		a.script = DefaultScripts[scriptCounter%len(DefaultScripts)]
		scriptCounter++
		counterMu.Unlock()
	}
	return a
}

// NewFactory returns an stt.Factory producing mock adapters with opts.
func NewFactory(opts ...Option) stt.Factory {
	return func(context.Context) (stt.Adapter, error) {
		return New(opts...), nil
	}
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cb = cb
	if a.interval > 0 && a.stop == nil {
		a.stop = make(chan struct{})
		go a.autoplay(a.clock.Ticker(a.interval), a.stop)
	}
	return nil
}

func (a *Adapter) autoplay(ticker *clock.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := a.advance(); done {
				return
			}
		}
	}
}

// SendAudio simulates receiving audio. In audio-driven mode every frame
// advances the script by one hypothesis.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}
	a.audioReceived++
	driven := a.interval == 0
	a.mu.Unlock()

	if driven {
		a.advance()
	}
	return nil
}

// AudioFrames returns the number of audio frames received.
func (a *Adapter) AudioFrames() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.audioReceived
}

// advance emits the next event outside the lock and reports whether the
// session is over.
func (a *Adapter) advance() bool {
	a.mu.Lock()
	if a.closed || a.cb == nil || a.ended {
		a.mu.Unlock()
		return true
	}
	cb := a.cb
	if a.step < len(a.script) {
		text := a.script[a.step]
		a.step++
		a.mu.Unlock()
		cb.OnDelta(text)
		return false
	}
	a.ended = true
	failure := a.failure
	a.mu.Unlock()

	if failure != nil {
		cb.OnError(failure)
	} else {
		cb.OnSessionEnd()
	}
	return true
}

// Close ends the mock session. No callbacks are delivered afterwards.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.stop != nil {
		close(a.stop)
	}
	return nil
}
