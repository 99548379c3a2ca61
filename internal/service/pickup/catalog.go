// Package pickup serves pickup lines from a plain-text catalog, one line per
// entry, ordered from mild to bold.
package pickup

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxStrength is the shake strength that maps to the end of the catalog.
const MaxStrength = 10.0

const (
	minWindow   = 5
	maxAttempts = 10
	jitterRange = 3
	jitterProb  = 0.3
)

// fallbackLines are used when no catalog file is configured or readable.
var fallbackLines = []string{
	"Are you a magician? Because whenever I look at you, everyone else disappears.",
	"You must be a camera because every time I look at you, I smile.",
	"Do you have a map? I keep getting lost in your eyes.",
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRand sets the random source used for selection.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) { c.rng = r }
}

// WithLogger overrides the catalog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// Catalog picks lines by shake strength. Safe for concurrent use.
type Catalog struct {
	lines  []string
	logger zerolog.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	last int
}

// New creates a catalog over lines. Blank lines are dropped.
func New(lines []string, opts ...Option) *Catalog {
	c := &Catalog{
		logger: log.Logger.With().Str("component", "pickup").Logger(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		last:   -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			c.lines = append(c.lines, l)
		}
	}
	return c
}

// Load reads a catalog from path. An empty path, or a file that cannot be
// read, yields the built-in lines.
func Load(path string, opts ...Option) *Catalog {
	if path == "" {
		return New(fallbackLines, opts...)
	}
	f, err := os.Open(path)
	if err != nil {
		c := New(fallbackLines, opts...)
		c.logger.Warn().Err(err).Str("path", path).Msg("Pickup catalog not found, using fallback")
		return c
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		c := New(fallbackLines, opts...)
		c.logger.Warn().Err(err).Str("path", path).Msg("Pickup catalog unreadable, using fallback")
		return c
	}
	c := New(lines, opts...)
	c.logger.Info().Int("lines", c.Len()).Str("path", path).Msg("Loaded pickup catalog")
	return c
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return lines, nil
}

// Len returns the number of lines in the catalog.
func (c *Catalog) Len() int {
	return len(c.lines)
}

// GetPickupLine returns a line chosen near the position strength maps to.
// Stronger shakes land further towards the end of the catalog. ok is false
// when the catalog is empty.
func (c *Catalog) GetPickupLine(strength float64) (string, bool) {
	total := len(c.lines)
	if total == 0 {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lo, hi, target := Window(strength, total)

	var idx, attempts int
	for {
		idx = lo
		if hi > lo {
			idx = lo + c.rng.IntN(hi-lo+1)
		}
		attempts++
		if idx != c.last || attempts >= maxAttempts || total == 1 {
			break
		}
	}

	if attempts < maxAttempts && c.rng.Float64() < jitterProb {
		idx += c.rng.IntN(2*jitterRange+1) - jitterRange
		idx = max(0, min(total-1, idx))
	}

	c.last = idx
	c.logger.Debug().
		Float64("strength", strength).
		Int("index", idx).
		Int("target", target).
		Int("total", total).
		Msg("Pickup line selected")
	return c.lines[idx], true
}

// Window returns the inclusive index range to pick from and its centre for a
// catalog of total lines.
func Window(strength float64, total int) (lo, hi, target int) {
	norm := min(max(strength, 0)/MaxStrength, 1.0)
	target = int(norm * float64(total-1))
	size := max(minWindow, int(float64(total)*(1.0-norm*0.7)))
	lo = max(0, target-size/2)
	hi = min(total-1, target+size/2)
	return lo, hi, target
}
