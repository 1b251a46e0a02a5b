package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellora/coach/internal/cache"
)

// ErrNotFound indicates the referenced memory does not exist.
var ErrNotFound = errors.New("memory not found")

// cacheTTL bounds staleness of the per-conversation memory list.
const cacheTTL = 5 * time.Minute

// Store persists memories in PostgreSQL with a read-through cache in front
// of List. Writes invalidate every cached list for the conversation.
type Store struct {
	pool   *pgxpool.Pool
	cache  cache.Cache
	logger *slog.Logger
}

// NewStore creates a memory Store. c may be nil to disable caching.
func NewStore(pool *pgxpool.Pool, c cache.Cache, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, cache: c, logger: logger}, nil
}

// Append persists a new memory. Unknown types are rejected; importance is
// clamped into range. source may be nil when no single message produced
// the memory.
func (s *Store) Append(ctx context.Context, conversationID, memType, content string, importance int, source *uuid.UUID) (*Memory, error) {
	if !ValidType(memType) {
		return nil, fmt.Errorf("unknown memory type %q", memType)
	}

	m := &Memory{
		ConversationID:  conversationID,
		Type:            memType,
		Content:         content,
		Importance:      ClampImportance(importance),
		SourceMessageID: source,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO memories (conversation_id, memory_type, content, importance, source_message_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		conversationID, m.Type, content, m.Importance, source,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appending memory: %w", err)
	}

	s.invalidate(ctx, conversationID)
	return m, nil
}

// List returns up to limit memories ordered by importance then recency,
// both descending. Results are cached per (conversation, limit).
func (s *Store) List(ctx context.Context, conversationID string, limit int) ([]*Memory, error) {
	key := cache.Key("memories", conversationID, limit)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var memories []*Memory
			if err := json.Unmarshal(raw, &memories); err == nil {
				return memories, nil
			}
			s.logger.Warn("dropping undecodable memory cache entry", "key", key)
			_ = s.cache.Delete(ctx, key)
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("memory cache read failed", "error", err)
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, memory_type, content, importance, source_message_id, created_at
		 FROM memories
		 WHERE conversation_id = $1
		 ORDER BY importance DESC, created_at DESC
		 LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	var memories []*Memory
	for rows.Next() {
		m := &Memory{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Type, &m.Content, &m.Importance, &m.SourceMessageID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(memories); err == nil {
			if err := s.cache.Set(ctx, key, raw, cacheTTL); err != nil {
				s.logger.Warn("memory cache write failed", "error", err)
			}
		}
	}

	return memories, nil
}

// SetImportance updates a memory's importance, clamped into range.
func (s *Store) SetImportance(ctx context.Context, id uuid.UUID, importance int) error {
	var conversationID string
	err := s.pool.QueryRow(ctx,
		`UPDATE memories SET importance = $2 WHERE id = $1
		 RETURNING conversation_id`,
		id, ClampImportance(importance),
	).Scan(&conversationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating memory importance: %w", err)
	}

	s.invalidate(ctx, conversationID)
	return nil
}

// invalidate drops every cached list for the conversation. Cache errors are
// logged, not returned; the cache is best-effort.
func (s *Store) invalidate(ctx context.Context, conversationID string) {
	if s.cache == nil {
		return
	}
	prefix := cache.Key("memories", conversationID) + ":"
	if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
		s.logger.Warn("memory cache invalidation failed", "conversation_id", conversationID, "error", err)
	}
}
