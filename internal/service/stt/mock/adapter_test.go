package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu     sync.Mutex
	deltas []string
	ends   int
	errors []error
}

func (c *testCallback) OnDelta(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltas = append(c.deltas, text)
}

func (c *testCallback) OnSessionEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ends++
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) snapshot() ([]string, int, []error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.deltas...), c.ends, append([]error{}, c.errors...)
}

func TestAdapter_New(t *testing.T) {
	adapter := New()
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if adapter.closed {
		t.Error("expected adapter to not be closed initially")
	}
	if len(adapter.script) == 0 {
		t.Error("expected a default script")
	}
}

func TestAdapter_Start(t *testing.T) {
	adapter := New()
	cb := &testCallback{}

	if err := adapter.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.cb != cb {
		t.Error("expected callback to be set")
	}
}

func TestAdapter_SendAudio_PlaysScript(t *testing.T) {
	script := Script{"hello", "hello there", "hello there friend"}
	adapter := New(WithScript(script))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	for i := 0; i < 5; i++ {
		if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deltas, ends, errs := cb.snapshot()
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %d", len(deltas))
	}
	for i := range script {
		if deltas[i] != script[i] {
			t.Errorf("delta %d: got %q, want %q", i, deltas[i], script[i])
		}
	}
	if ends != 1 {
		t.Errorf("expected exactly 1 session end, got %d", ends)
	}
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if adapter.AudioFrames() != 5 {
		t.Errorf("expected 5 audio frames, got %d", adapter.AudioFrames())
	}
}

func TestAdapter_WithFailure(t *testing.T) {
	boom := errors.New("recognizer unavailable")
	adapter := New(WithScript(Script{"one two"}), WithFailure(boom))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	adapter.SendAudio(context.Background(), []byte("a"))
	adapter.SendAudio(context.Background(), []byte("a"))

	_, ends, errs := cb.snapshot()
	if ends != 0 {
		t.Errorf("expected no session end, got %d", ends)
	}
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("expected recognizer error, got %v", errs)
	}
}

func TestAdapter_AutoPlay(t *testing.T) {
	clk := clock.NewMock()
	adapter := New(WithScript(Script{"a", "a b"}), WithInterval(time.Second), WithClock(clk))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	waitFor := func(cond func() bool) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for !cond() {
			if time.Now().After(deadline) {
				t.Fatal("condition not met in time")
			}
			clk.Add(time.Second)
			time.Sleep(time.Millisecond)
		}
	}

	waitFor(func() bool {
		_, ends, _ := cb.snapshot()
		return ends == 1
	})

	deltas, _, _ := cb.snapshot()
	if len(deltas) != 2 || deltas[1] != "a b" {
		t.Errorf("unexpected deltas: %v", deltas)
	}

	// Audio does not advance an auto-playing script.
	adapter.SendAudio(context.Background(), []byte("a"))
	deltas, ends, _ := cb.snapshot()
	if len(deltas) != 2 || ends != 1 {
		t.Errorf("expected no further events, got deltas=%v ends=%d", deltas, ends)
	}
	adapter.Close()
}

func TestAdapter_Close(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adapter.closed {
		t.Error("expected adapter to be closed")
	}
}

func TestAdapter_Close_Idempotent(t *testing.T) {
	adapter := New(WithInterval(time.Hour))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	adapter.Close()
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestAdapter_SendAudio_AfterClose(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	adapter.Close()

	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deltas, ends, _ := cb.snapshot()
	if len(deltas) != 0 || ends != 0 {
		t.Errorf("expected no callbacks after close, got deltas=%v ends=%d", deltas, ends)
	}
}

func TestAdapter_CyclesThroughScripts(t *testing.T) {
	a1 := New()
	a2 := New()

	if len(DefaultScripts) > 1 && a1.script[len(a1.script)-1] == a2.script[len(a2.script)-1] {
		t.Error("expected consecutive adapters to use different scripts")
	}
}

func TestDefaultScripts(t *testing.T) {
	for i, s := range DefaultScripts {
		if len(s) == 0 {
			t.Errorf("script %d is empty", i)
		}
		for j := 1; j < len(s); j++ {
			if len(s[j]) <= len(s[j-1]) {
				t.Errorf("script %d step %d does not extend the previous hypothesis", i, j)
			}
		}
	}
}

func TestAdapter_ThreadSafety(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				adapter.SendAudio(context.Background(), []byte("audio"))
			}
		}()
	}
	wg.Wait()
	adapter.Close()

	_, ends, _ := cb.snapshot()
	if ends != 1 {
		t.Errorf("expected exactly 1 session end, got %d", ends)
	}
}

func TestAdapter_NoCallbackSet(t *testing.T) {
	adapter := New()

	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFactory(t *testing.T) {
	f := NewFactory(WithScript(Script{"x y"}))
	a, err := f(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected adapter")
	}
}
