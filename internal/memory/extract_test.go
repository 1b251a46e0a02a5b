package memory

import (
	"strings"
	"testing"

	"github.com/wellora/coach/internal/llm"
)

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "plain array",
			raw:  `[{"type": "fact", "content": "works nights", "importance": 6}]`,
			want: 1,
		},
		{
			name: "fenced array",
			raw:  "```json\n[{\"type\": \"goal\", \"content\": \"run a 10k\", \"importance\": 7}]\n```",
			want: 1,
		},
		{
			name: "empty array",
			raw:  `[]`,
			want: 0,
		},
		{
			name: "empty response",
			raw:  "",
			want: 0,
		},
		{
			name:    "prose instead of JSON",
			raw:     "Sure! Here are the memories I found.",
			wantErr: true,
		},
		{
			name:    "object instead of array",
			raw:     `{"type": "fact"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := parseExtraction(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseExtraction() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExtraction() error = %v", err)
			}
			if len(items) != tt.want {
				t.Errorf("parseExtraction() returned %d items, want %d", len(items), tt.want)
			}
		})
	}
}

func TestParseExtractionRejectsOversizedResponse(t *testing.T) {
	raw := `[{"type": "fact", "content": "` + strings.Repeat("x", 11*1024) + `"}]`
	if _, err := parseExtraction(raw); err == nil {
		t.Error("parseExtraction() accepted an oversized response")
	}
}

func TestRenderTranscript(t *testing.T) {
	turns := []llm.Turn{
		{Role: llm.RoleUser, Content: "I work night shifts"},
		{Role: llm.RoleAssistant, Content: "That can disrupt sleep."},
	}
	got := renderTranscript(turns)
	want := "user: I work night shifts\nassistant: That can disrupt sleep.\n"
	if got != want {
		t.Errorf("renderTranscript() = %q, want %q", got, want)
	}
}
