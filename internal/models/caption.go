// Package models defines the caption data structures and the events published about them.
package models

import (
	"strings"
	"time"
)

// Caption is the text currently shown on screen for one utterance.
type Caption struct {
	ID            string
	Text          string
	CreatedAt     time.Time
	HasAnnotation bool

	// FromSpeech is false for manually typed or injected text, which is never auto-annotated.
	FromSpeech bool
}

// IsEmpty reports whether the caption has no visible text.
func (c Caption) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == ""
}

// HistoryEntry is a committed caption as persisted in history.
// CreatedAt is encoded as epoch milliseconds.
type HistoryEntry struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     int64  `json:"createdAt"`
	HasAnnotation bool   `json:"hasAnnotation"`
}

// NewHistoryEntry copies a caption into its persisted form.
func NewHistoryEntry(c Caption) HistoryEntry {
	return HistoryEntry{
		ID:            c.ID,
		Text:          strings.TrimSpace(c.Text),
		CreatedAt:     c.CreatedAt.UnixMilli(),
		HasAnnotation: c.HasAnnotation,
	}
}

// Time returns CreatedAt as a time.Time.
func (e HistoryEntry) Time() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// AnnotationSource records which stage of the annotator produced a result.
type AnnotationSource string

const (
	AnnotationKeyword   AnnotationSource = "keyword"
	AnnotationSentiment AnnotationSource = "sentiment"
	AnnotationFallback  AnnotationSource = "fallback"
)

// AnnotationResult is the ordered set of emoji chosen for a piece of text. Never empty.
type AnnotationResult struct {
	Emoji  []string
	Source AnnotationSource
}

// String joins the emoji with single spaces.
func (r AnnotationResult) String() string {
	return strings.Join(r.Emoji, " ")
}
