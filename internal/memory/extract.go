package memory

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

// extractionPrompt asks the model for a JSON array of memories worth keeping
// from a conversation window. %s placeholder: the rendered transcript.
const extractionPrompt = `Analyze this conversation and extract important information to remember about the user.

Conversation:
%s

Extract memories in these categories:
- fact: factual information about the user (job, family, location, etc.)
- preference: things they like or dislike
- goal: what they want to achieve
- concern: worries or issues they mentioned

For each memory, rate importance 1-10 (10 = critical health information).

Return a JSON array:
[{"type": "fact", "content": "...", "importance": 5}]

Only include genuinely useful information. Return an empty array if nothing is worth remembering.
Return ONLY the JSON array, no other text.`

// extractedMemory is the wire shape of one item in the extraction response.
type extractedMemory struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	Importance int    `json:"importance"`
}

// Extractor turns recent conversation turns into stored memories with a
// model call.
type Extractor struct {
	client llm.Client
	store  *Store
	logger *slog.Logger
}

// NewExtractor creates a memory extractor writing through store.
func NewExtractor(client llm.Client, store *Store, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, store: store, logger: logger}
}

// Extract asks the model for memories in the given turns and persists the
// well-formed ones. Malformed items are skipped individually; importance is
// clamped. Returns the number of memories stored.
func (e *Extractor) Extract(ctx context.Context, conversationID string, turns []llm.Turn) (int, error) {
	if len(turns) == 0 {
		return 0, nil
	}

	prompt := []llm.Turn{
		{Role: llm.RoleSystem, Content: "You are a data extraction assistant. Return only valid JSON."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(extractionPrompt, renderTranscript(turns))},
	}
	resp, err := e.client.Complete(ctx, prompt, llm.CompleteOpts{
		Temperature: 0,
		MaxTokens:   extractMaxTokens,
	})
	if err != nil {
		return 0, fmt.Errorf("memory extraction call: %w", err)
	}

	items, err := parseExtraction(resp.Content)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, item := range items {
		if item.Content == "" || !ValidType(item.Type) {
			e.logger.Debug("skipping malformed extracted memory",
				"conversation_id", conversationID, "type", item.Type)
			continue
		}
		if _, err := e.store.Append(ctx, conversationID, item.Type, item.Content, item.Importance, nil); err != nil {
			e.logger.Warn("storing extracted memory failed",
				"conversation_id", conversationID, "error", err)
			continue
		}
		stored++
	}
	return stored, nil
}

// parseExtraction decodes the model's memory array, tolerating code fences
// and an empty response.
func parseExtraction(raw string) ([]extractedMemory, error) {
	text := llm.StripCodeFences(raw)
	if text == "" {
		return nil, nil
	}
	if !llm.SizeOK(text) {
		return nil, fmt.Errorf("extraction response too large: %d bytes", len(text))
	}

	var items []extractedMemory
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("parsing extraction result: %w (raw: %q)", err, llm.Truncate(text, 200))
	}
	return items, nil
}

func renderTranscript(turns []llm.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
