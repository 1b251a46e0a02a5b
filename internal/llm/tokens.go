package llm

import (
	"log/slog"

	"github.com/tiktoken-go/tokenizer"
)

// fallbackCharsPerToken approximates tokens as len(text)/4 when no codec is
// available. This matches the common ~4 chars/token ratio for English text;
// it is an approximation, not an exact count.
const fallbackCharsPerToken = 4

// TokenCounter estimates the token cost of text for a given model.
//
// It prefers the model's tiktoken encoding, falling back to cl100k_base for
// unknown models and finally to a deterministic character-length heuristic.
// Count never fails.
type TokenCounter struct {
	codec  tokenizer.Codec // nil = heuristic only
	logger *slog.Logger
}

// NewTokenCounter creates a counter for the given model name.
func NewTokenCounter(model string, logger *slog.Logger) *TokenCounter {
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
	}
	if err != nil {
		logger.Warn("tokenizer unavailable, using character heuristic", "model", model, "error", err)
		codec = nil
	}

	return &TokenCounter{codec: codec, logger: logger}
}

// Count returns the estimated token count of text. Never negative.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	if c.codec != nil {
		n, err := c.codec.Count(text)
		if err == nil {
			return n
		}
		c.logger.Debug("token count failed, using character heuristic", "error", err)
	}

	return len(text) / fallbackCharsPerToken
}

// CountTurns returns the estimated total token cost of the given turns.
func (c *TokenCounter) CountTurns(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += c.Count(t.Content)
	}
	return total
}
