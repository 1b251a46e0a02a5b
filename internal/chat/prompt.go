package chat

import (
	"strconv"
	"strings"

	"github.com/wellora/coach/internal/profile"
)

// promptMemoryLimit bounds how many memories the system prompt carries.
// Brevity is enforced by construction here, not by truncating afterwards.
const promptMemoryLimit = 2

// personaPreamble is the fixed persona and baseline safety instruction.
const personaPreamble = `You are an AI Health Coach. Be warm, friendly, and conversational like WhatsApp chat. Keep responses SHORT (2-3 sentences max). Never diagnose - suggest seeing a doctor for medical issues. Use emojis occasionally.`

// AssemblePrompt composes the system instruction from the profile, ranked
// memory contents, and selected protocol contents. Only non-empty profile
// fields appear, in a fixed order; at most promptMemoryLimit memories are
// included.
func AssemblePrompt(p *profile.Profile, memories []string, protocols []string) string {
	var b strings.Builder
	b.WriteString(personaPreamble)
	b.WriteString("\n\n")

	if line := profileLine(p); line != "" {
		b.WriteString("User: ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(memories) > 0 {
		if len(memories) > promptMemoryLimit {
			memories = memories[:promptMemoryLimit]
		}
		b.WriteString("Remember: ")
		b.WriteString(strings.Join(memories, "; "))
		b.WriteString("\n")
	}

	for _, content := range protocols {
		if content == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(content)
		b.WriteString("\n")
	}

	return b.String()
}

// profileLine renders non-empty profile fields as a compact pipe-joined
// summary, identity first.
func profileLine(p *profile.Profile) string {
	if p == nil {
		return ""
	}

	var parts []string
	if p.Name != "" {
		basic := p.Name
		if p.Age > 0 {
			basic += ", " + strconv.Itoa(p.Age) + "yo"
		}
		if p.Gender != "" {
			basic += ", " + p.Gender
		}
		parts = append(parts, basic)
	}
	if len(p.HealthConditions) > 0 {
		parts = append(parts, "Conditions: "+strings.Join(p.HealthConditions, ", "))
	}
	if len(p.Medications) > 0 {
		parts = append(parts, "Meds: "+strings.Join(p.Medications, ", "))
	}
	if len(p.HealthGoals) > 0 {
		parts = append(parts, "Goals: "+strings.Join(p.HealthGoals, ", "))
	}
	if p.ActivityLevel != "" {
		parts = append(parts, "Activity: "+p.ActivityLevel)
	}
	if len(p.DietaryPreferences) > 0 {
		parts = append(parts, "Diet: "+strings.Join(p.DietaryPreferences, ", "))
	}

	return strings.Join(parts, " | ")
}
