// Package annotate picks emoji for a finished caption.
//
// Keyword triggers are tried first, then a lexicon sentiment score, then a
// constant neutral marker, so a result is never empty.
package annotate

import (
	"strings"

	"live-caption-service/internal/models"
)

const (
	// MaxEmoji caps how many keyword emoji are appended.
	MaxEmoji = 2

	// SentimentThreshold is the absolute score needed to pick a mood emoji.
	SentimentThreshold = 0.3

	PositiveEmoji = "😊"
	NegativeEmoji = "😔"
	FallbackEmoji = "💭"
)

// Scorer rates the sentiment of text in [-1, 1]. ok is false when the text
// carries no sentiment signal.
type Scorer interface {
	Score(text string) (score float64, ok bool)
}

// Annotator maps text to emoji. It holds no mutable state and is safe for
// concurrent use.
type Annotator struct {
	scorer Scorer
}

// New creates an annotator. A nil scorer disables the sentiment stage.
func New(scorer Scorer) *Annotator {
	return &Annotator{scorer: scorer}
}

// NewDefault creates an annotator backed by the built-in lexicon.
func NewDefault() *Annotator {
	return New(NewLexicon())
}

// Annotate returns the emoji for text.
func (a *Annotator) Annotate(text string) models.AnnotationResult {
	if matched := matchKeywords(text); len(matched) > 0 {
		return models.AnnotationResult{Emoji: matched, Source: models.AnnotationKeyword}
	}

	if a.scorer != nil {
		if score, ok := a.scorer.Score(text); ok {
			switch {
			case score > SentimentThreshold:
				return models.AnnotationResult{Emoji: []string{PositiveEmoji}, Source: models.AnnotationSentiment}
			case score < -SentimentThreshold:
				return models.AnnotationResult{Emoji: []string{NegativeEmoji}, Source: models.AnnotationSentiment}
			}
		}
	}

	return models.AnnotationResult{Emoji: []string{FallbackEmoji}, Source: models.AnnotationFallback}
}

// Apply appends the annotation to text, separated by a space.
func Apply(text string, r models.AnnotationResult) string {
	text = strings.TrimRight(text, " \t\n")
	if len(r.Emoji) == 0 {
		return text
	}
	if text == "" {
		return r.String()
	}
	return text + " " + r.String()
}

// matchKeywords collects emoji of every matching row in table order,
// de-duplicated and capped at MaxEmoji.
func matchKeywords(text string) []string {
	lower := strings.ToLower(text)

	var out []string
	seen := make(map[string]struct{}, MaxEmoji)
	for _, kw := range keywordTable {
		if !strings.Contains(lower, kw.match) {
			continue
		}
		for _, e := range kw.emoji {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
			if len(out) == MaxEmoji {
				return out
			}
		}
	}
	return out
}
