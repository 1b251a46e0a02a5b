// Package memory stores long-lived facts about a conversation and ranks
// them by relevance to the current utterance.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Memory types. Anything else coming back from an extraction is discarded.
const (
	TypeFact       = "fact"
	TypePreference = "preference"
	TypeGoal       = "goal"
	TypeConcern    = "concern"
)

// Importance bounds. Out-of-range values are clamped, never rejected.
const (
	MinImportance = 0
	MaxImportance = 10
)

// Memory is a durable extracted fact about a conversation.
// SourceMessageID links back to the originating message when known;
// batch extraction over a window leaves it nil.
type Memory struct {
	ID              uuid.UUID
	ConversationID  string
	Type            string
	Content         string
	Importance      int
	SourceMessageID *uuid.UUID
	CreatedAt       time.Time
}

// ValidType reports whether t is a known memory type.
func ValidType(t string) bool {
	switch t {
	case TypeFact, TypePreference, TypeGoal, TypeConcern:
		return true
	}
	return false
}

// ClampImportance forces v into [MinImportance, MaxImportance].
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}
