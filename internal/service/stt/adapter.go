// Package stt defines the contract for transcription sources.
package stt

import (
	"context"
	"errors"
	"fmt"
)

// Errors reported through Callback.OnError when a session is cut short locally.
var (
	ErrSessionLimit   = errors.New("session limit exceeded")
	ErrSessionTimeout = fmt.Errorf("%w: max duration", ErrSessionLimit)
)

// Callback receives the live hypothesis stream of a transcription session.
type Callback interface {
	// OnDelta is called with the full revised text of the current utterance
	// every time the provider updates its hypothesis.
	OnDelta(text string)

	// OnSessionEnd is called once when recognition terminates on its own.
	OnSessionEnd()

	// OnError is called when the provider fails mid-session.
	OnError(err error)
}

// Adapter defines the interface for STT providers.
type Adapter interface {
	// Start begins a streaming transcription session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the STT provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}

// Factory creates a fresh adapter for each session.
type Factory func(ctx context.Context) (Adapter, error)
