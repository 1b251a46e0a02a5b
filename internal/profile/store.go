package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the profile does not exist.
var ErrNotFound = errors.New("profile not found")

const profileCols = `conversation_id, name, age, gender, health_conditions, medications,
	allergies, health_goals, activity_level, dietary_preferences, sleep_hours,
	sleep_issues, occupation, recent_health_events, onboarding_completed,
	created_at, updated_at`

// Store persists profiles in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a profile Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// GetOrCreate returns the profile for conversationID, creating an empty one
// when absent. The second return value reports whether a new profile was
// created.
func (s *Store) GetOrCreate(ctx context.Context, conversationID string) (*Profile, bool, error) {
	p, err := s.Get(ctx, conversationID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	// ON CONFLICT handles a concurrent create for the same conversation.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (conversation_id)
		 VALUES ($1)
		 ON CONFLICT (conversation_id) DO NOTHING`,
		conversationID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("creating profile: %w", err)
	}

	p, err = s.Get(ctx, conversationID)
	if err != nil {
		return nil, false, err
	}
	return p, tag.RowsAffected() > 0, nil
}

// Get returns the profile for conversationID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, conversationID string) (*Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE conversation_id = $1`,
		conversationID,
	)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// Update persists the mutable profile fields. OnboardingCompleted is written
// with OR semantics so a stale in-memory profile can never revert a completed
// onboarding.
func (s *Store) Update(ctx context.Context, p *Profile) error {
	conditions, err := marshalLists(p)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles
		 SET name = $2, age = $3, gender = $4,
		     health_conditions = $5, medications = $6, allergies = $7,
		     health_goals = $8, activity_level = $9, dietary_preferences = $10,
		     sleep_hours = $11, sleep_issues = $12, occupation = $13,
		     recent_health_events = $14,
		     onboarding_completed = onboarding_completed OR $15,
		     updated_at = now()
		 WHERE conversation_id = $1`,
		p.ConversationID, p.Name, p.Age, p.Gender,
		conditions.healthConditions, conditions.medications, conditions.allergies,
		conditions.healthGoals, p.ActivityLevel, conditions.dietaryPreferences,
		p.SleepHours, conditions.sleepIssues, p.Occupation,
		conditions.recentHealthEvents,
		p.OnboardingCompleted,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// jsonLists holds the JSONB-encoded list columns for an UPDATE.
type jsonLists struct {
	healthConditions   []byte
	medications        []byte
	allergies          []byte
	healthGoals        []byte
	dietaryPreferences []byte
	sleepIssues        []byte
	recentHealthEvents []byte
}

func marshalLists(p *Profile) (*jsonLists, error) {
	out := &jsonLists{}
	for _, field := range []struct {
		name string
		src  []string
		dst  *[]byte
	}{
		{"health_conditions", p.HealthConditions, &out.healthConditions},
		{"medications", p.Medications, &out.medications},
		{"allergies", p.Allergies, &out.allergies},
		{"health_goals", p.HealthGoals, &out.healthGoals},
		{"dietary_preferences", p.DietaryPreferences, &out.dietaryPreferences},
		{"sleep_issues", p.SleepIssues, &out.sleepIssues},
		{"recent_health_events", p.RecentHealthEvents, &out.recentHealthEvents},
	} {
		src := field.src
		if src == nil {
			src = []string{}
		}
		b, err := json.Marshal(src)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s: %w", field.name, err)
		}
		*field.dst = b
	}
	return out, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	var (
		conditions, medications, allergies       []byte
		goals, dietary, sleepIssues, healthEvent []byte
	)
	if err := row.Scan(
		&p.ConversationID, &p.Name, &p.Age, &p.Gender,
		&conditions, &medications, &allergies, &goals,
		&p.ActivityLevel, &dietary, &p.SleepHours, &sleepIssues,
		&p.Occupation, &healthEvent, &p.OnboardingCompleted,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	for _, col := range []struct {
		name string
		raw  []byte
		dst  *[]string
	}{
		{"health_conditions", conditions, &p.HealthConditions},
		{"medications", medications, &p.Medications},
		{"allergies", allergies, &p.Allergies},
		{"health_goals", goals, &p.HealthGoals},
		{"dietary_preferences", dietary, &p.DietaryPreferences},
		{"sleep_issues", sleepIssues, &p.SleepIssues},
		{"recent_health_events", healthEvent, &p.RecentHealthEvents},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("unmarshaling %s: %w", col.name, err)
		}
	}

	return p, nil
}
