package session

import "testing"

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle(1)

	if lc.State() != StateOpen {
		t.Errorf("expected StateOpen, got %v", lc.State())
	}
	if lc.ID() != 1 {
		t.Errorf("expected id 1, got %d", lc.ID())
	}
	if err := lc.EmitDelta(); err != nil {
		t.Errorf("expected deltas to be allowed, got %v", err)
	}
}

func TestLifecycle_End_OnlyOnce(t *testing.T) {
	lc := NewLifecycle(1)

	if !lc.End() {
		t.Fatal("expected first End to succeed")
	}
	if lc.End() {
		t.Error("expected second End to be a no-op")
	}
	if lc.Drop() {
		t.Error("expected Drop after End to be a no-op")
	}
	if err := lc.EmitDelta(); err != ErrSessionEnded {
		t.Errorf("expected ErrSessionEnded, got %v", err)
	}
}

func TestLifecycle_Drop(t *testing.T) {
	lc := NewLifecycle(1)

	if !lc.Drop() {
		t.Fatal("expected Drop to succeed")
	}
	if !lc.IsDropped() {
		t.Error("expected IsDropped")
	}
	if lc.End() {
		t.Error("expected End after Drop to be a no-op")
	}
}

func TestLifecycle_Close(t *testing.T) {
	lc := NewLifecycle(1)
	lc.Close()
	lc.Close()

	if lc.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", lc.State())
	}
	if err := lc.EmitDelta(); err != ErrSessionClosed {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if lc.End() || lc.Drop() {
		t.Error("expected End/Drop after Close to be no-ops")
	}
}

func TestLifecycle_Reset(t *testing.T) {
	lc := NewLifecycle(1)
	lc.Drop()
	lc.Reset(2)

	if lc.ID() != 2 {
		t.Errorf("expected id 2, got %d", lc.ID())
	}
	if lc.State() != StateOpen {
		t.Errorf("expected StateOpen after reset, got %v", lc.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateOpen, "OPEN"},
		{StateEnded, "ENDED"},
		{StateDropped, "DROPPED"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	if StateOpen.IsTerminal() {
		t.Error("OPEN should not be terminal")
	}
	for _, s := range []State{StateEnded, StateDropped, StateClosed} {
		if !s.IsTerminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
}
