package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wellora/coach/internal/llm"
)

// extractMaxTokens caps the extraction response size.
const extractMaxTokens = 500

// extractionPrompt asks the model for a JSON object of profile fields found
// in the utterance. %s placeholders: (1) existing data, (2) new message.
const extractionPrompt = `Extract any personal health information from the following message and return it as a JSON object.
Only extract information that is explicitly stated.

Existing data: %s
New message: %s

Extract these fields:
- name (string)
- age (number)
- gender (string)
- health_conditions (list of strings)
- medications (list of strings)
- allergies (list of strings)
- health_goals (list of strings) - e.g., "lose weight", "improve fitness", "better sleep"
- activity_level (string) - sedentary, lightly_active, moderately_active, very_active
- dietary_preferences (list of strings) - e.g., "vegetarian", "vegan", "keto"
- sleep_hours (number) - average hours per night
- sleep_issues (list of strings) - e.g., "insomnia", "snoring"
- occupation (string)
- recent_health_events (list of strings) - any recent changes or events

Return ONLY a JSON object, no other text.`

// Extractor pulls profile fields out of user utterances with a model call.
type Extractor struct {
	client llm.Client
	logger *slog.Logger
}

// NewExtractor creates a profile extractor.
func NewExtractor(client llm.Client, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, logger: logger}
}

// Extract returns profile fields found in message. The model output is
// parsed defensively: any malformed response degrades to the zero Extracted
// value (no change) rather than an error surfaced to the caller's turn.
func (e *Extractor) Extract(ctx context.Context, message string, existing *Profile) (Extracted, error) {
	turns := []llm.Turn{
		{Role: llm.RoleSystem, Content: "You are a data extraction assistant. Return only valid JSON."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(extractionPrompt, summarizeExisting(existing), message)},
	}

	resp, err := e.client.Complete(ctx, turns, llm.CompleteOpts{
		Temperature: 0,
		MaxTokens:   extractMaxTokens,
	})
	if err != nil {
		return Extracted{}, fmt.Errorf("profile extraction call: %w", err)
	}

	text := llm.StripCodeFences(resp.Content)
	if text == "" {
		return Extracted{}, nil
	}
	if !llm.SizeOK(text) {
		return Extracted{}, fmt.Errorf("extraction response too large: %d bytes", len(text))
	}

	var out Extracted
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Extracted{}, fmt.Errorf("parsing extraction result: %w (raw: %q)", err, llm.Truncate(text, 200))
	}

	return out, nil
}

// summarizeExisting renders known fields so the model does not re-extract
// them. Only identity fields are included to keep the prompt short.
func summarizeExisting(p *Profile) string {
	if p == nil {
		return "{}"
	}
	parts := []string{}
	if p.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%s", p.Name))
	}
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("age=%d", p.Age))
	}
	if p.Gender != "" {
		parts = append(parts, fmt.Sprintf("gender=%s", p.Gender))
	}
	if len(p.HealthConditions) > 0 {
		parts = append(parts, "conditions="+strings.Join(p.HealthConditions, ","))
	}
	if len(p.Medications) > 0 {
		parts = append(parts, "medications="+strings.Join(p.Medications, ","))
	}
	if len(p.Allergies) > 0 {
		parts = append(parts, "allergies="+strings.Join(p.Allergies, ","))
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, "; ") + "}"
}
