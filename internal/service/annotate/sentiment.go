package annotate

import (
	"strings"
	"unicode"
)

// Lexicon is a word-list sentiment scorer. The score is the mean weight of
// the sentiment-bearing words in the text; a negator flips the next word.
type Lexicon struct {
	weights  map[string]float64
	negators map[string]struct{}
}

// NewLexicon returns a scorer with the built-in English word list.
func NewLexicon() *Lexicon {
	return &Lexicon{weights: defaultWeights, negators: defaultNegators}
}

// Score implements Scorer.
func (l *Lexicon) Score(text string) (float64, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var sum float64
	var n int
	negate := false
	for _, w := range words {
		if _, ok := l.negators[w]; ok {
			negate = true
			continue
		}
		weight, ok := l.weights[w]
		if !ok {
			continue
		}
		if negate {
			weight = -weight
			negate = false
		}
		sum += weight
		n++
	}
	if n == 0 {
		return 0, false
	}
	return clamp(sum/float64(n), -1, 1), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var defaultNegators = map[string]struct{}{
	"not": {}, "never": {}, "isn't": {}, "wasn't": {}, "don't": {}, "didn't": {},
	"doesn't": {}, "can't": {}, "won't": {}, "hardly": {},
}

var defaultWeights = map[string]float64{
	// positive
	"fantastic": 0.9, "wow": 0.7, "brilliant": 0.9, "awesome": 0.9, "perfect": 0.8,
	"fun": 0.6, "enjoy": 0.6, "enjoyed": 0.6, "glad": 0.6, "pleased": 0.6,
	"delighted": 0.8, "lovely": 0.8, "cool": 0.5, "fine": 0.3, "best": 0.7,
	"proud": 0.6, "lucky": 0.6, "calm": 0.4, "congratulations": 0.9, "cheers": 0.6,
	"win": 0.6, "won": 0.6, "success": 0.7, "smile": 0.6, "laugh": 0.6,
	"super": 0.6, "sweet": 0.5, "kind": 0.5, "fair": 0.3, "better": 0.4,
	// negative
	"dreadful": -0.9, "horrible": -0.9, "worst": -0.9, "ugly": -0.6, "boring": -0.5,
	"tired": -0.4, "sick": -0.6, "hurt": -0.7, "pain": -0.7, "upset": -0.7,
	"scared": -0.7, "afraid": -0.6, "lost": -0.5, "lose": -0.5, "fail": -0.7,
	"failed": -0.7, "broken": -0.6, "wrong": -0.5, "sorry": -0.4, "annoying": -0.6,
	"disappointed": -0.8, "miserable": -0.9, "lonely": -0.7, "cry": -0.7, "stressed": -0.6,
	"poor": -0.5, "worse": -0.6, "mad": -0.7, "furious": -0.9, "unfair": -0.6,
}
