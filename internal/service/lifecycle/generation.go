package lifecycle

// Generation is a monotonically increasing counter. The controller bumps it
// on every new utterance and every text replacement, and tags each in-flight
// annotation with the value it was started for. Only the loop goroutine
// touches it.
type Generation struct {
	counter uint64
}

// Next advances the counter and returns the new value.
func (g *Generation) Next() uint64 {
	g.counter++
	return g.counter
}

// Current returns the latest value.
func (g *Generation) Current() uint64 {
	return g.counter
}
