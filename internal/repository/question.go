package repository

import (
	"context"
	"fmt"

	"maum-baedal-backend/internal/models"
)

// QuestionRepository handles database operations for questions
type QuestionRepository struct {
	db Querier
}

const questionColumns = `id, content, category, difficulty, total_used, total_answers, is_active, created_at`

func scanQuestion(row interface{ Scan(dest ...any) error }) (*models.Question, error) {
	var q models.Question
	err := row.Scan(
		&q.ID, &q.Content, &q.Category, &q.Difficulty,
		&q.TotalUsed, &q.TotalAnswers, &q.IsActive, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetByID retrieves a question by ID
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	q, err := scanQuestion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", translateError(err))
	}
	return q, nil
}

// FindLeastUsedByCategories finds the least-used active question within the
// given categories, ties broken by highest answer count.
func (r *QuestionRepository) FindLeastUsedByCategories(ctx context.Context, categories, excludeIDs []string) (*models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE is_active = true
		  AND category = ANY($1)
		  AND NOT (id = ANY($2))
		ORDER BY total_used ASC, total_answers DESC, id ASC
		LIMIT 1
	`
	q, err := scanQuestion(r.db.QueryRow(ctx, query, categories, emptyToSlice(excludeIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to find question by categories: %w", translateError(err))
	}
	return q, nil
}

// FindActiveAt returns the active question at the given offset of a stable
// ordering. A random offset into the count gives an index-friendly random
// pick without ORDER BY RANDOM().
func (r *QuestionRepository) FindActiveAt(ctx context.Context, offset int, excludeIDs []string) (*models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE is_active = true AND NOT (id = ANY($1))
		ORDER BY id ASC
		LIMIT 1 OFFSET $2
	`
	q, err := scanQuestion(r.db.QueryRow(ctx, query, emptyToSlice(excludeIDs), offset))
	if err != nil {
		return nil, fmt.Errorf("failed to find active question at offset: %w", translateError(err))
	}
	return q, nil
}

// CountActive counts active questions outside the excluded set
func (r *QuestionRepository) CountActive(ctx context.Context, excludeIDs []string) (int, error) {
	query := `SELECT COUNT(*) FROM questions WHERE is_active = true AND NOT (id = ANY($1))`
	var count int
	if err := r.db.QueryRow(ctx, query, emptyToSlice(excludeIDs)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active questions: %w", err)
	}
	return count, nil
}

// CountActiveCategories counts distinct categories among active questions
func (r *QuestionRepository) CountActiveCategories(ctx context.Context) (int, error) {
	query := `SELECT COUNT(DISTINCT category) FROM questions WHERE is_active = true`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active categories: %w", err)
	}
	return count, nil
}

// IncrementUsage atomically bumps the usage counter
func (r *QuestionRepository) IncrementUsage(ctx context.Context, id string) error {
	query := `UPDATE questions SET total_used = total_used + 1 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment question usage: %w", err)
	}
	return nil
}

// IncrementAnswers atomically bumps the answer counter
func (r *QuestionRepository) IncrementAnswers(ctx context.Context, id string) error {
	query := `UPDATE questions SET total_answers = total_answers + 1 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment question answers: %w", err)
	}
	return nil
}

// InsertIgnoreDuplicates bulk-inserts questions, deduplicating on content
func (r *QuestionRepository) InsertIgnoreDuplicates(ctx context.Context, questions []models.Question) (int64, error) {
	query := `
		INSERT INTO questions (id, content, category, difficulty, total_used, total_answers, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (content) DO NOTHING
	`
	var inserted int64
	for _, q := range questions {
		tag, err := r.db.Exec(ctx, query,
			q.ID, q.Content, q.Category, q.Difficulty,
			q.TotalUsed, q.TotalAnswers, q.IsActive, q.CreatedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert question: %w", translateError(err))
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// emptyToSlice keeps ANY($1) well-typed when there is nothing to exclude.
func emptyToSlice(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
