// Package history persists conversation messages and the durable typing
// indicator fallback.
package history

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted conversation record. Messages are immutable after
// creation and ordered by creation time within a conversation; the core
// never deletes them.
type Message struct {
	ID             uuid.UUID
	ConversationID string
	Role           string
	Content        string
	TokenCount     int
	Metadata       map[string]string
	CreatedAt      time.Time
}
