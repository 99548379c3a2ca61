package stability

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fires collects tokens delivered by the timer goroutine.
type fires struct {
	mu     sync.Mutex
	tokens []Token
}

func (f *fires) fire(tok Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, tok)
}

func (f *fires) get() []Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Token{}, f.tokens...)
}

func waitFires(t *testing.T, f *fires, n int) []Token {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := f.get()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d fires, got %d", n, len(got))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_Defaults(t *testing.T) {
	d := New(nil, 0)
	assert.Equal(t, DefaultInterval, d.Interval())
	assert.False(t, d.Pending())
}

func TestDetector_FiresAfterInterval(t *testing.T) {
	clk := clock.NewMock()
	d := New(clk, 2500*time.Millisecond)
	f := &fires{}

	tok := d.Arm(clk.Now(), f.fire)
	require.True(t, d.Pending())

	clk.Add(2499 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Empty(t, f.get(), "must not fire before the interval")

	clk.Add(time.Millisecond)
	got := waitFires(t, f, 1)
	assert.Equal(t, tok, got[0])
	assert.True(t, d.Accept(tok))
	assert.False(t, d.Accept(tok), "a token is accepted at most once")
	assert.False(t, d.Pending())
}

func TestDetector_RearmSupersedes(t *testing.T) {
	clk := clock.NewMock()
	d := New(clk, 2500*time.Millisecond)
	f := &fires{}

	// Delta at T, another at T+1s: only the second schedule survives.
	first := d.Arm(clk.Now(), f.fire)
	clk.Add(time.Second)
	second := d.Arm(clk.Now(), f.fire)

	clk.Add(2 * time.Second) // T+3s: past the first deadline
	time.Sleep(5 * time.Millisecond)
	assert.Empty(t, f.get(), "first schedule must be superseded")
	assert.False(t, d.Accept(first))

	clk.Add(500 * time.Millisecond) // T+3.5s: 2.5s after the last change
	got := waitFires(t, f, 1)
	require.Len(t, got, 1)
	assert.Equal(t, second, got[0])
	assert.True(t, d.Accept(second))
}

func TestDetector_Cancel(t *testing.T) {
	clk := clock.NewMock()
	d := New(clk, time.Second)
	f := &fires{}

	tok := d.Arm(clk.Now(), f.fire)
	d.Cancel()
	assert.False(t, d.Pending())

	clk.Add(5 * time.Second)
	time.Sleep(5 * time.Millisecond)
	assert.Empty(t, f.get())
	assert.False(t, d.Accept(tok))
}

func TestDetector_ArmInThePastFiresImmediately(t *testing.T) {
	clk := clock.NewMock()
	d := New(clk, time.Second)
	f := &fires{}

	changedAt := clk.Now()
	clk.Add(3 * time.Second)
	tok := d.Arm(changedAt, f.fire)

	clk.Add(0)
	got := waitFires(t, f, 1)
	assert.Equal(t, tok, got[0])
}

func TestDetector_AcceptZeroToken(t *testing.T) {
	d := New(clock.NewMock(), time.Second)
	assert.False(t, d.Accept(0))
}

func TestDetector_StaleFireAfterRearm(t *testing.T) {
	clk := clock.NewMock()
	d := New(clk, time.Second)
	f := &fires{}

	// The first timer fires, but a re-arm happens before its token is accepted.
	first := d.Arm(clk.Now(), f.fire)
	clk.Add(time.Second)
	waitFires(t, f, 1)

	second := d.Arm(clk.Now(), f.fire)
	assert.False(t, d.Accept(first), "stale token must be rejected")
	assert.True(t, d.Pending())

	clk.Add(time.Second)
	got := waitFires(t, f, 2)
	assert.Equal(t, second, got[1])
	assert.True(t, d.Accept(second))
}
