// Package session bridges a transcription provider to the caption controller,
// one provider session per utterance, with resource limits.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a transcription session.
type State int

const (
	// StateOpen - Session is active, deltas are forwarded.
	StateOpen State = iota
	// StateEnded - Provider finished on its own or failed.
	StateEnded
	// StateDropped - Session was cut short by a local limit.
	StateDropped
	// StateClosed - Session was stopped by the caller.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateEnded:
		return "ENDED"
	case StateDropped:
		return "DROPPED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if no more deltas may be forwarded.
func (s State) IsTerminal() bool {
	return s != StateOpen
}

// Errors for invalid state transitions.
var (
	ErrSessionClosed = errors.New("session is closed")
	ErrSessionEnded  = errors.New("session already ended")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	OPEN ──→ ENDED    (provider end or error, once)
//	  │
//	  ├───→ DROPPED  (limit exceeded, once)
//	  │
//	  └───→ CLOSED   (caller stop, from any state)
type Lifecycle struct {
	mu    sync.RWMutex
	id    uint64
	state State
}

// NewLifecycle creates a new session lifecycle in OPEN state.
func NewLifecycle(id uint64) *Lifecycle {
	return &Lifecycle{id: id, state: StateOpen}
}

// ID returns the session ID.
func (l *Lifecycle) ID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsDropped returns true if the session was cut short by a limit.
func (l *Lifecycle) IsDropped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDropped
}

// EmitDelta validates that a delta may be forwarded.
func (l *Lifecycle) EmitDelta() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateOpen:
		return nil
	case StateEnded, StateDropped:
		return ErrSessionEnded
	default:
		return ErrSessionClosed
	}
}

// End transitions an open session to ENDED.
// Returns true if this call ended the session.
func (l *Lifecycle) End() bool {
	return l.finish(StateEnded)
}

// Drop transitions an open session to DROPPED.
// Returns true if this call dropped the session.
func (l *Lifecycle) Drop() bool {
	return l.finish(StateDropped)
}

func (l *Lifecycle) finish(to State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = to
	return true
}

// Close transitions the session to CLOSED. Idempotent.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateClosed
}

// Reset reopens the lifecycle for a new session.
func (l *Lifecycle) Reset(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = id
	l.state = StateOpen
}
