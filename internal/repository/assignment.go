package repository

import (
	"context"
	"fmt"

	"maum-baedal-backend/internal/models"
)

// AssignmentRepository handles database operations for assignments,
// answers and conversations.
type AssignmentRepository struct {
	db Querier
}

const assignmentColumns = `id, companion_id, service_day, question_id, status, created_at`

func scanAssignment(row interface{ Scan(dest ...any) error }) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(&a.ID, &a.CompanionID, &a.ServiceDay, &a.QuestionID, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new assignment. The partial unique index on
// (companion_id, service_day) for active rows surfaces races as
// store.ErrDuplicate, which callers resolve by re-reading.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	query := `
		INSERT INTO assignments (id, companion_id, service_day, question_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		assignment.ID, assignment.CompanionID, assignment.ServiceDay,
		assignment.QuestionID, assignment.Status, assignment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	a, err := scanAssignment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", translateError(err))
	}
	return a, nil
}

// FindActive finds the active assignment for a companion and service day
func (r *AssignmentRepository) FindActive(ctx context.Context, companionID, serviceDay string) (*models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE companion_id = $1 AND service_day = $2 AND status = 'active'
	`
	a, err := scanAssignment(r.db.QueryRow(ctx, query, companionID, serviceDay))
	if err != nil {
		return nil, fmt.Errorf("failed to find active assignment: %w", translateError(err))
	}
	return a, nil
}

// SetStatus updates an assignment's status
func (r *AssignmentRepository) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE assignments SET status = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to set assignment status: %w", translateError(err))
	}
	return nil
}

// SetCompanion repoints an assignment at a different companion. Used once
// per assignment, during solo to companion conversion.
func (r *AssignmentRepository) SetCompanion(ctx context.Context, id, companionID string) error {
	query := `UPDATE assignments SET companion_id = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, companionID, id); err != nil {
		return fmt.Errorf("failed to set assignment companion: %w", translateError(err))
	}
	return nil
}

// UpsertAnswer inserts the user's answer or updates it in place
func (r *AssignmentRepository) UpsertAnswer(ctx context.Context, answer *models.Answer) (bool, error) {
	query := `
		INSERT INTO answers (id, assignment_id, user_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignment_id, user_id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`
	var created bool
	err := r.db.QueryRow(ctx, query,
		answer.ID, answer.AssignmentID, answer.UserID,
		answer.Content, answer.CreatedAt, answer.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert answer: %w", translateError(err))
	}
	return created, nil
}

// ListAnswers returns the answers for an assignment, oldest first
func (r *AssignmentRepository) ListAnswers(ctx context.Context, assignmentID string) ([]models.Answer, error) {
	query := `
		SELECT id, assignment_id, user_id, content, created_at, updated_at
		FROM answers
		WHERE assignment_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.AssignmentID, &a.UserID, &a.Content, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CountAnswers counts the answers on an assignment
func (r *AssignmentRepository) CountAnswers(ctx context.Context, assignmentID string) (int, error) {
	query := `SELECT COUNT(*) FROM answers WHERE assignment_id = $1`
	var count int
	if err := r.db.QueryRow(ctx, query, assignmentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return count, nil
}

// CreateConversation inserts the conversation row. The unique constraint
// on assignment_id turns concurrent creation into store.ErrDuplicate.
func (r *AssignmentRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, assignment_id, is_public, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query,
		conversation.ID, conversation.AssignmentID, conversation.IsPublic, conversation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", translateError(err))
	}
	return nil
}

// GetConversation retrieves a conversation by ID
func (r *AssignmentRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT id, assignment_id, is_public, created_at FROM conversations WHERE id = $1`
	var c models.Conversation
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.AssignmentID, &c.IsPublic, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", translateError(err))
	}
	return &c, nil
}

// GetConversationByAssignment retrieves the conversation of an assignment
func (r *AssignmentRepository) GetConversationByAssignment(ctx context.Context, assignmentID string) (*models.Conversation, error) {
	query := `SELECT id, assignment_id, is_public, created_at FROM conversations WHERE assignment_id = $1`
	var c models.Conversation
	err := r.db.QueryRow(ctx, query, assignmentID).Scan(&c.ID, &c.AssignmentID, &c.IsPublic, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation by assignment: %w", translateError(err))
	}
	return &c, nil
}

// ListCompleted returns completed assignments for the companions, newest first
func (r *AssignmentRepository) ListCompleted(ctx context.Context, companionIDs []string, limit, offset int) ([]models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE companion_id = ANY($1) AND status = 'completed'
		ORDER BY service_day DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, emptyToSlice(companionIDs), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// FindAnswerless returns the day's active assignments with fewer than two
// answers, for reminder broadcasts.
func (r *AssignmentRepository) FindAnswerless(ctx context.Context, serviceDay string) ([]models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments a
		WHERE a.service_day = $1 AND a.status = 'active'
		  AND (SELECT COUNT(*) FROM answers ans WHERE ans.assignment_id = a.id) < 2
	`
	rows, err := r.db.Query(ctx, query, serviceDay)
	if err != nil {
		return nil, fmt.Errorf("failed to find answerless assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}
