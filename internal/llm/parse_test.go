package llm

import "testing"

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no fences",
			input: `{"name":"Sam","age":29}`,
			want:  `{"name":"Sam","age":29}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"name\":\"Sam\"}\n```",
			want:  `{"name":"Sam"}`,
		},
		{
			name:  "plain fence",
			input: "```\n[{\"content\":\"sleeps badly\"}]\n```",
			want:  `[{"content":"sleeps badly"}]`,
		},
		{
			name:  "fence with trailing whitespace",
			input: "```json\n{}\n```\n  ",
			want:  `{}`,
		},
		{name: "empty", input: "", want: ""},
		{name: "only fences", input: "```json\n```", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.input); got != tt.want {
				t.Errorf("StripCodeFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{name: "short", input: "hello", n: 10, want: "hello"},
		{name: "exact", input: "hello", n: 5, want: "hello"},
		{name: "truncated", input: "hello world", n: 5, want: "hello..."},
		{name: "empty", input: "", n: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}
