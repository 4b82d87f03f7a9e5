package repository

import (
	"context"
	"fmt"

	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/store"
)

// StatsRepository accumulates daily counters
type StatsRepository struct {
	db Querier
}

var statFields = map[string]bool{
	store.StatPersonalizedQuestions: true,
	store.StatRandomQuestions:       true,
	store.StatTotalAnswers:          true,
	store.StatCompletedGates:        true,
	store.StatShareTokensCreated:    true,
	store.StatShareTokensUsed:       true,
}

// Increment upserts the daily row and bumps one counter atomically
func (r *StatsRepository) Increment(ctx context.Context, date, field string, delta int) error {
	if !statFields[field] {
		return fmt.Errorf("unknown stat field %q", field)
	}
	// field is validated against the allowlist above, never caller input
	query := fmt.Sprintf(`
		INSERT INTO daily_stats (date, %[1]s)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET %[1]s = daily_stats.%[1]s + $2
	`, field)
	if _, err := r.db.Exec(ctx, query, date, delta); err != nil {
		return fmt.Errorf("failed to increment daily stat: %w", err)
	}
	return nil
}

// Get returns the stats row for a date
func (r *StatsRepository) Get(ctx context.Context, date string) (*models.DailyStat, error) {
	query := `
		SELECT date, personalized_questions, random_questions, total_answers,
		       completed_gates, share_tokens_created, share_tokens_used
		FROM daily_stats
		WHERE date = $1
	`
	var s models.DailyStat
	err := r.db.QueryRow(ctx, query, date).Scan(
		&s.Date, &s.PersonalizedQuestions, &s.RandomQuestions, &s.TotalAnswers,
		&s.CompletedGates, &s.ShareTokensCreated, &s.ShareTokensUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", translateError(err))
	}
	return &s, nil
}
