package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wellora/coach/internal/cache"
)

// typingTTL keeps the cached indicator short-lived so a crashed request
// cannot leave a conversation "typing" forever.
const typingTTL = 30 * time.Second

// TypingIndicator tracks whether the assistant is composing a reply for a
// conversation. The cache is the fast path; the durable store is the
// fallback when the cache has no entry.
type TypingIndicator struct {
	cache   cache.Cache
	durable HistoryStore
	logger  *slog.Logger
}

// NewTypingIndicator creates a typing indicator. c may be nil to use only
// the durable store.
func NewTypingIndicator(c cache.Cache, durable HistoryStore, logger *slog.Logger) *TypingIndicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypingIndicator{cache: c, durable: durable, logger: logger}
}

// Set records the typing state in both layers. Errors are logged, never
// returned: the indicator is presentation state and must not fail a turn.
func (t *TypingIndicator) Set(ctx context.Context, conversationID string, typing bool) {
	if err := t.durable.SetTyping(ctx, conversationID, typing); err != nil {
		t.logger.Warn("durable typing write failed", "conversation_id", conversationID, "error", err)
	}
	if t.cache == nil {
		return
	}
	value := []byte("0")
	if typing {
		value = []byte("1")
	}
	if err := t.cache.Set(ctx, cache.Key("typing", conversationID), value, typingTTL); err != nil {
		t.logger.Warn("typing cache write failed", "conversation_id", conversationID, "error", err)
	}
}

// Get reads the typing state, cache first. Any failure reads as not typing.
func (t *TypingIndicator) Get(ctx context.Context, conversationID string) bool {
	if t.cache != nil {
		raw, err := t.cache.Get(ctx, cache.Key("typing", conversationID))
		if err == nil {
			return len(raw) == 1 && raw[0] == '1'
		}
		if !errors.Is(err, cache.ErrMiss) {
			t.logger.Warn("typing cache read failed", "conversation_id", conversationID, "error", err)
		}
	}

	typing, err := t.durable.GetTyping(ctx, conversationID)
	if err != nil {
		t.logger.Warn("durable typing read failed", "conversation_id", conversationID, "error", err)
		return false
	}
	return typing
}
