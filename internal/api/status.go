package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wellora/coach/internal/chat"
	"github.com/wellora/coach/internal/profile"
	"github.com/wellora/coach/internal/protocol"
)

// statusHandler serves typing and profile reads.
type statusHandler struct {
	typing   *chat.TypingIndicator
	profiles chat.ProfileStore
	logger   *slog.Logger
}

// typingStatus handles GET /api/v1/typing.
func (h *statusHandler) typingStatus(w http.ResponseWriter, r *http.Request) {
	convID := conversationID(r)
	if convID == "" {
		writeError(w, http.StatusBadRequest, "missing_conversation", conversationHeader+" header is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"typing": h.typing.Get(r.Context(), convID),
	})
}

// profilePayload is the wire shape of a conversation profile.
type profilePayload struct {
	ConversationID      string   `json:"conversation_id"`
	Name                string   `json:"name,omitempty"`
	Age                 int      `json:"age,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	HealthConditions    []string `json:"health_conditions,omitempty"`
	Medications         []string `json:"medications,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	HealthGoals         []string `json:"health_goals,omitempty"`
	ActivityLevel       string   `json:"activity_level,omitempty"`
	DietaryPreferences  []string `json:"dietary_preferences,omitempty"`
	SleepHours          float64  `json:"sleep_hours,omitempty"`
	SleepIssues         []string `json:"sleep_issues,omitempty"`
	Occupation          string   `json:"occupation,omitempty"`
	RecentHealthEvents  []string `json:"recent_health_events,omitempty"`
	OnboardingCompleted bool     `json:"onboarding_completed"`
	CreatedAt           string   `json:"created_at"`
}

// getProfile handles GET /api/v1/profile.
func (h *statusHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	convID := conversationID(r)
	if convID == "" {
		writeError(w, http.StatusBadRequest, "missing_conversation", conversationHeader+" header is required")
		return
	}

	p, err := h.profiles.Get(r.Context(), convID)
	if errors.Is(err, profile.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile_not_found", "no profile for this conversation")
		return
	}
	if err != nil {
		h.logger.Error("getting profile failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, profilePayload{
		ConversationID:      p.ConversationID,
		Name:                p.Name,
		Age:                 p.Age,
		Gender:              p.Gender,
		HealthConditions:    p.HealthConditions,
		Medications:         p.Medications,
		Allergies:           p.Allergies,
		HealthGoals:         p.HealthGoals,
		ActivityLevel:       p.ActivityLevel,
		DietaryPreferences:  p.DietaryPreferences,
		SleepHours:          p.SleepHours,
		SleepIssues:         p.SleepIssues,
		Occupation:          p.Occupation,
		RecentHealthEvents:  p.RecentHealthEvents,
		OnboardingCompleted: p.OnboardingCompleted,
		CreatedAt:           p.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// protocolHandler serves protocol administration.
type protocolHandler struct {
	store  *protocol.Store
	logger *slog.Logger
}

// seed handles POST /api/v1/protocols/seed, installing the default
// protocol set. Existing names are left untouched.
func (h *protocolHandler) seed(w http.ResponseWriter, r *http.Request) {
	created, err := protocol.Seed(r.Context(), h.store, h.logger)
	if err != nil {
		h.logger.Error("protocol seeding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to seed protocols")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}
