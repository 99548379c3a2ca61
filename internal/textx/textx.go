// Package textx holds the text helpers shared by the caption pipeline:
// emoji stripping, base-text extraction and tokenisation.
package textx

import (
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// IsEmoji reports whether a grapheme cluster renders as an emoji.
func IsEmoji(cluster []rune) bool {
	for _, r := range cluster {
		if isEmojiRune(r) {
			return true
		}
	}
	return false
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, transport, flags, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2300 && r <= 0x23FF: // watch, hourglass, media controls
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // stars, arrows
		return true
	case r == 0xFE0F || r == 0x20E3 || r == 0x200D:
		return true
	}
	return false
}

// StripEmoji removes every emoji grapheme cluster from s, keeping the rest verbatim.
func StripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if IsEmoji(g.Runes()) {
			continue
		}
		b.WriteString(g.Str())
	}
	return b.String()
}

// ContainsEmoji reports whether s has at least one emoji grapheme.
func ContainsEmoji(s string) bool {
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if IsEmoji(g.Runes()) {
			return true
		}
	}
	return false
}

// Normalize applies NFC and collapses runs of whitespace into single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// BaseText is the comparable form of a caption: normalised, with emoji removed.
func BaseText(s string) string {
	return Normalize(StripEmoji(norm.NFC.String(s)))
}

// Tokens splits the base text of s on whitespace.
func Tokens(s string) []string {
	return strings.Fields(BaseText(s))
}
