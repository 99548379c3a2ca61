// Package stability detects when a live transcript has stopped changing.
package stability

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultInterval is the quiet period after the last change before text is
// considered stable.
const DefaultInterval = 2500 * time.Millisecond

// Token identifies one arm of the detector. The zero Token is never issued.
type Token uint64

// Detector is a single-shot debounce timer. Every Arm supersedes the previous
// one, and only the most recent arm can be accepted, at most once.
//
// The fire callback runs on a timer goroutine; it should only hand the token
// back to its owner, which then calls Accept from its own goroutine.
type Detector struct {
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	seq     uint64
	pending Token
	timer   *clock.Timer
}

// New creates a detector. A non-positive interval uses DefaultInterval.
func New(clk clock.Clock, interval time.Duration) *Detector {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Detector{clock: clk, interval: interval}
}

// Interval returns the debounce interval.
func (d *Detector) Interval() time.Duration {
	return d.interval
}

// Arm schedules fire at changedAt plus the interval, replacing any pending
// schedule. It returns the token fire will be called with.
func (d *Detector) Arm(changedAt time.Time, fire func(Token)) Token {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.seq++
	tok := Token(d.seq)
	d.pending = tok

	delay := changedAt.Add(d.interval).Sub(d.clock.Now())
	if delay < 0 {
		delay = 0
	}
	d.timer = d.clock.AfterFunc(delay, func() { fire(tok) })
	return tok
}

// Cancel discards any pending schedule.
func (d *Detector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.pending = 0
}

// Accept reports whether tok belongs to the current arm and consumes it.
// A superseded, cancelled or already accepted token returns false.
func (d *Detector) Accept(tok Token) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tok == 0 || tok != d.pending {
		return false
	}
	d.pending = 0
	d.timer = nil
	return true
}

// Pending reports whether an arm is outstanding.
func (d *Detector) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != 0
}

func (d *Detector) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
