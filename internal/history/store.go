package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the referenced message does not exist.
var ErrNotFound = errors.New("message not found")

const messageCols = `id, conversation_id, role, content, token_count, metadata, created_at`

// Store persists messages in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines. Ordering within a
// conversation is append-with-server-timestamp; concurrent requests for the
// same conversation may interleave, which the orchestration semantics
// tolerate.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a message Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Append persists a new message and returns it with its generated ID and
// server timestamp.
func (s *Store) Append(ctx context.Context, conversationID, role, content string, tokenCount int, metadata map[string]string) (*Message, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	m := &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokenCount:     tokenCount,
		Metadata:       metadata,
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content, token_count, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		conversationID, role, content, tokenCount, meta,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	return m, nil
}

// List returns up to limit messages for a conversation, newest first.
// When beforeID is non-nil, only messages created before that message are
// returned (pagination).
func (s *Store) List(ctx context.Context, conversationID string, limit int, beforeID *uuid.UUID) ([]*Message, error) {
	var rows pgx.Rows
	var err error

	if beforeID != nil {
		rows, err = s.pool.Query(ctx,
			`SELECT `+messageCols+`
			 FROM messages
			 WHERE conversation_id = $1
			   AND created_at < (SELECT created_at FROM messages WHERE id = $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			conversationID, *beforeID, limit,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+messageCols+`
			 FROM messages
			 WHERE conversation_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			conversationID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListRecent returns the most recent limit messages in chronological order,
// ready to be submitted as completion context.
func (s *Store) ListRecent(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	messages, err := s.List(ctx, conversationID, limit, nil)
	if err != nil {
		return nil, err
	}
	// Newest-first to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Count returns the number of messages in a conversation.
func (s *Store) Count(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`,
		conversationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// SetTyping upserts the durable typing indicator for a conversation. The
// cache layer in front of this is best-effort; this row is the fallback.
func (s *Store) SetTyping(ctx context.Context, conversationID string, typing bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO typing_indicators (conversation_id, typing, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (conversation_id)
		 DO UPDATE SET typing = EXCLUDED.typing, updated_at = now()`,
		conversationID, typing,
	)
	if err != nil {
		return fmt.Errorf("setting typing indicator: %w", err)
	}
	return nil
}

// GetTyping returns the durable typing indicator. Unknown conversations are
// not typing.
func (s *Store) GetTyping(ctx context.Context, conversationID string) (bool, error) {
	var typing bool
	err := s.pool.QueryRow(ctx,
		`SELECT typing FROM typing_indicators WHERE conversation_id = $1`,
		conversationID,
	).Scan(&typing)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting typing indicator: %w", err)
	}
	return typing, nil
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		m := &Message{}
		var meta []byte
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Role, &m.Content,
			&m.TokenCount, &meta, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}
