// Package protocol manages coaching safety protocols: guideline documents
// attached to the system prompt when a user's message touches their topic.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Priority bounds. Higher priority protocols win selection ties.
const (
	MinPriority = 0
	MaxPriority = 10
)

// Protocol is a named guideline with trigger keywords.
type Protocol struct {
	ID        uuid.UUID
	Name      string
	Category  string
	Content   string
	Keywords  []string
	Priority  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClampPriority forces v into [MinPriority, MaxPriority].
func ClampPriority(v int) int {
	if v < MinPriority {
		return MinPriority
	}
	if v > MaxPriority {
		return MaxPriority
	}
	return v
}
