package llm

import (
	"testing"

	"github.com/wellora/coach/internal/log"
)

func TestTokenCounterCount(t *testing.T) {
	c := NewTokenCounter("gpt-3.5-turbo", log.NewNop())

	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "single word", text: "hello"},
		{name: "sentence", text: "I'm trying to sleep better and eat more vegetables."},
		{name: "unicode", text: "café ☕ déjà vu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Count(tt.text)
			if got < 0 {
				t.Errorf("Count(%q) = %d, want >= 0", tt.text, got)
			}
			if tt.text == "" && got != 0 {
				t.Errorf("Count(\"\") = %d, want 0", got)
			}
			if tt.text != "" && got == 0 {
				t.Errorf("Count(%q) = 0, want > 0", tt.text)
			}
		})
	}
}

func TestTokenCounterDeterministic(t *testing.T) {
	c := NewTokenCounter("gpt-3.5-turbo", log.NewNop())

	text := "chest pain after running, should I be worried?"
	first := c.Count(text)
	for i := 0; i < 5; i++ {
		if got := c.Count(text); got != first {
			t.Fatalf("Count not deterministic: %d != %d", got, first)
		}
	}
}

func TestTokenCounterFallback(t *testing.T) {
	// No codec: character-length heuristic.
	c := &TokenCounter{codec: nil, logger: log.NewNop()}

	if got := c.Count("abcdefgh"); got != 2 {
		t.Errorf("Count fallback = %d, want 2", got)
	}
	if got := c.Count("abc"); got != 0 {
		t.Errorf("Count fallback short = %d, want 0", got)
	}
}

func TestCountTurns(t *testing.T) {
	c := &TokenCounter{codec: nil, logger: log.NewNop()}

	turns := []Turn{
		{Role: RoleUser, Content: "abcdefgh"},  // 2
		{Role: RoleAssistant, Content: "abcd"}, // 1
	}
	if got := c.CountTurns(turns); got != 3 {
		t.Errorf("CountTurns = %d, want 3", got)
	}
}
