package stt

import (
	"strings"
	"sync"
)

// Transcript folds interim and final provider results into the single
// monotonically revised utterance text that Callback.OnDelta expects.
// Finalized segments accumulate; the latest interim is appended after them.
type Transcript struct {
	mu      sync.Mutex
	finals  []string
	interim string
}

// Interim records a new interim hypothesis and returns the combined text.
func (t *Transcript) Interim(text string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.interim = strings.TrimSpace(text)
	return t.textLocked()
}

// Final records a finalized segment and returns the combined text.
func (t *Transcript) Final(text string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	text = strings.TrimSpace(text)
	if text != "" {
		t.finals = append(t.finals, text)
	}
	t.interim = ""
	return t.textLocked()
}

// Text returns the combined text.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.textLocked()
}

// Reset discards all segments.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finals = nil
	t.interim = ""
}

func (t *Transcript) textLocked() string {
	joined := strings.Join(t.finals, " ")
	switch {
	case joined == "":
		return t.interim
	case t.interim == "":
		return joined
	default:
		return joined + " " + t.interim
	}
}
