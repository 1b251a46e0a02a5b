package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/wellora/coach/internal/history"
	"github.com/wellora/coach/internal/llm"
)

// TurnSource provides the recent conversation window for extraction.
type TurnSource interface {
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*history.Message, error)
}

// MemoryExtractor turns conversation turns into stored memories.
type MemoryExtractor interface {
	Extract(ctx context.Context, conversationID string, turns []llm.Turn) (int, error)
}

// Handler processes background tasks.
type Handler struct {
	turns     TurnSource
	extractor MemoryExtractor
	window    int // how many recent turns to extract from
	logger    *slog.Logger
}

// NewHandler creates a task handler. window bounds the conversation slice
// handed to extraction.
func NewHandler(turns TurnSource, extractor MemoryExtractor, window int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{turns: turns, extractor: extractor, window: window, logger: logger}
}

// Mux returns the task routing table.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMemoryExtract, h.HandleMemoryExtract)
	return mux
}

// HandleMemoryExtract runs memory extraction over a conversation's recent
// turns. Extraction failures are logged and swallowed so the task is not
// retried for a model that keeps returning garbage; a malformed payload is
// never retried.
func (h *Handler) HandleMemoryExtract(ctx context.Context, task *asynq.Task) error {
	var payload memoryExtractPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshaling payload: %w: %w", err, asynq.SkipRetry)
	}

	messages, err := h.turns.ListRecent(ctx, payload.ConversationID, h.window)
	if err != nil {
		return fmt.Errorf("loading conversation window: %w", err)
	}

	turns := make([]llm.Turn, 0, len(messages))
	for _, m := range messages {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		turns = append(turns, llm.Turn{Role: m.Role, Content: m.Content})
	}

	stored, err := h.extractor.Extract(ctx, payload.ConversationID, turns)
	if err != nil {
		h.logger.Warn("memory extraction skipped",
			"conversation_id", payload.ConversationID, "error", err)
		return nil
	}

	h.logger.Info("memory extraction done",
		"conversation_id", payload.ConversationID, "stored", stored)
	return nil
}

// NewServer creates the worker server. Extraction is latency-insensitive,
// so concurrency stays low to cap model-call fan-out.
func NewServer(redisAddr, redisPassword string, redisDB int) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB},
		asynq.Config{Concurrency: 2},
	)
}
