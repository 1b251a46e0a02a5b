// Package profile manages accumulated facts about a conversation owner:
// persistence, extraction from utterances, and the merge rules that keep the
// profile monotonically growing.
package profile

import (
	"slices"
	"time"
)

// Profile holds accumulated facts about the conversation owner. Fields are
// only ever added or overwritten by extraction, never deleted.
type Profile struct {
	ConversationID     string
	Name               string
	Age                int
	Gender             string
	HealthConditions   []string
	Medications        []string
	Allergies          []string
	HealthGoals        []string
	ActivityLevel      string
	DietaryPreferences []string
	SleepHours         float64
	SleepIssues        []string
	Occupation         string
	RecentHealthEvents []string

	// OnboardingCompleted flips to true once name and age are known.
	// The transition is one-way: extraction can never revert it.
	OnboardingCompleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Extracted is the structured output of a profile-extraction model call.
// Zero values mean "nothing found" and never overwrite existing data.
type Extracted struct {
	Name               string   `json:"name"`
	Age                int      `json:"age"`
	Gender             string   `json:"gender"`
	HealthConditions   []string `json:"health_conditions"`
	Medications        []string `json:"medications"`
	Allergies          []string `json:"allergies"`
	HealthGoals        []string `json:"health_goals"`
	ActivityLevel      string   `json:"activity_level"`
	DietaryPreferences []string `json:"dietary_preferences"`
	SleepHours         float64  `json:"sleep_hours"`
	SleepIssues        []string `json:"sleep_issues"`
	Occupation         string   `json:"occupation"`
	RecentHealthEvents []string `json:"recent_health_events"`
}

// Merge folds extracted data into the profile. Scalar fields are overwritten
// only when the extracted value is non-empty and differs; list fields are
// unioned, preserving existing order. Returns true when anything changed.
func (p *Profile) Merge(e Extracted) bool {
	changed := false

	setString := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}

	setString(&p.Name, e.Name)
	setString(&p.Gender, e.Gender)
	setString(&p.ActivityLevel, e.ActivityLevel)
	setString(&p.Occupation, e.Occupation)

	if e.Age > 0 && p.Age != e.Age {
		p.Age = e.Age
		changed = true
	}
	if e.SleepHours > 0 && p.SleepHours != e.SleepHours {
		p.SleepHours = e.SleepHours
		changed = true
	}

	mergeList := func(dst *[]string, add []string) {
		for _, item := range add {
			if item == "" || slices.Contains(*dst, item) {
				continue
			}
			*dst = append(*dst, item)
			changed = true
		}
	}

	mergeList(&p.HealthConditions, e.HealthConditions)
	mergeList(&p.Medications, e.Medications)
	mergeList(&p.Allergies, e.Allergies)
	mergeList(&p.HealthGoals, e.HealthGoals)
	mergeList(&p.DietaryPreferences, e.DietaryPreferences)
	mergeList(&p.SleepIssues, e.SleepIssues)
	mergeList(&p.RecentHealthEvents, e.RecentHealthEvents)

	return changed
}

// OnboardingReady reports whether the minimally required fields are present.
func (p *Profile) OnboardingReady() bool {
	return p.Name != "" && p.Age > 0
}
