package textx

import "testing"

func TestBaseText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello there", "hello there"},
		{"trailing emoji", "hello there 👋 🙋", "hello there"},
		{"zwj family", "my family 👨‍👩‍👧‍👦", "my family"},
		{"variation selector", "coffee ☕️ please", "coffee please"},
		{"collapse whitespace", "  a \t b\n", "a b"},
		{"only emoji", "💭", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseText(tt.in); got != tt.want {
				t.Errorf("BaseText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainsEmoji(t *testing.T) {
	if ContainsEmoji("no emoji here") {
		t.Error("expected no emoji")
	}
	if !ContainsEmoji("sunny ☀️") {
		t.Error("expected emoji")
	}
	if ContainsEmoji("digits 123 and punctuation!?") {
		t.Error("digits and punctuation are not emoji")
	}
}

func TestTokens_IgnoresEmoji(t *testing.T) {
	if got := len(Tokens("hi 👋 🙋")); got != 1 {
		t.Errorf("expected 1 token, got %d", got)
	}
	if got := len(Tokens("hello there")); got != 2 {
		t.Errorf("expected 2 tokens, got %d", got)
	}
}
