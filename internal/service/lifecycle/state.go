// Package lifecycle owns the live caption: it ingests transcription deltas,
// waits for the text to settle, annotates it and commits finished captions
// to history.
package lifecycle

import (
	"errors"
	"fmt"
)

// State represents the controller state.
type State int

const (
	// StateIdle - No utterance is being recorded.
	StateIdle State = iota
	// StateRecording - Source is running, no stability timer pending.
	StateRecording
	// StateStabilizing - Text changed recently; the stability timer is armed.
	StateStabilizing
	// StateAnnotating - Text settled and an annotation is in flight.
	StateAnnotating
	// StateCommitting - Caption is being finalized and handed to history.
	StateCommitting
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateStabilizing:
		return "STABILIZING_TEXT"
	case StateAnnotating:
		return "ANNOTATING"
	case StateCommitting:
		return "COMMITTING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsRecording returns true while a transcription session is open.
func (s State) IsRecording() bool {
	return s == StateRecording || s == StateStabilizing || s == StateAnnotating
}

// ErrInvalidTransition is returned for a state change the machine does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// State transitions:
//
//	IDLE ──start──→ RECORDING ──delta──→ STABILIZING_TEXT ──fire──→ ANNOTATING
//	  ▲                 ▲                      │   ▲                    │
//	  │                 └──────── result ──────┼───┼────────────────────┘
//	  │                                        │   └──── delta ─────────┘
//	  └──── COMMITTING ◀──── stop / clear / restart (any state)
var transitions = map[State][]State{
	StateIdle:        {StateRecording, StateCommitting, StateIdle},
	StateRecording:   {StateStabilizing, StateCommitting, StateIdle},
	StateStabilizing: {StateStabilizing, StateAnnotating, StateCommitting, StateIdle},
	StateAnnotating:  {StateRecording, StateStabilizing, StateCommitting, StateIdle},
	StateCommitting:  {StateIdle},
}

// CanTransition reports whether the machine allows s → to.
func (s State) CanTransition(to State) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transition validates and returns the next state.
func transition(from, to State) (State, error) {
	if !from.CanTransition(to) {
		return from, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
