package repository

import (
	"context"
	"fmt"
	"time"

	"maum-baedal-backend/internal/models"
)

// CompanionRepository handles database operations for companions
type CompanionRepository struct {
	db Querier
}

const companionColumns = `id, user1_id, user2_id, status, invite_code, connected_at, expires_at, created_at`

func scanCompanion(row interface{ Scan(dest ...any) error }) (*models.Companion, error) {
	var c models.Companion
	err := row.Scan(
		&c.ID, &c.User1ID, &c.User2ID, &c.Status,
		&c.InviteCode, &c.ConnectedAt, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create creates a new companion
func (r *CompanionRepository) Create(ctx context.Context, companion *models.Companion) error {
	query := `
		INSERT INTO companions (id, user1_id, user2_id, status, invite_code, connected_at, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		companion.ID, companion.User1ID, companion.User2ID, companion.Status,
		companion.InviteCode, companion.ConnectedAt, companion.ExpiresAt, companion.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create companion: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves a companion by ID
func (r *CompanionRepository) GetByID(ctx context.Context, id string) (*models.Companion, error) {
	query := `SELECT ` + companionColumns + ` FROM companions WHERE id = $1`
	c, err := scanCompanion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get companion: %w", translateError(err))
	}
	return c, nil
}

// FindActiveByUser finds the active companion containing the user
func (r *CompanionRepository) FindActiveByUser(ctx context.Context, userID string) (*models.Companion, error) {
	query := `
		SELECT ` + companionColumns + `
		FROM companions
		WHERE (user1_id = $1 OR user2_id = $1) AND status = 'active'
		LIMIT 1
	`
	c, err := scanCompanion(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to find active companion: %w", translateError(err))
	}
	return c, nil
}

// FindByInviteCode retrieves a companion by its invite code
func (r *CompanionRepository) FindByInviteCode(ctx context.Context, code string) (*models.Companion, error) {
	query := `SELECT ` + companionColumns + ` FROM companions WHERE invite_code = $1`
	c, err := scanCompanion(r.db.QueryRow(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("failed to find companion by invite code: %w", translateError(err))
	}
	return c, nil
}

// InviteCodeExists checks if an invite code is already taken
func (r *CompanionRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM companions WHERE invite_code = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invite code: %w", err)
	}
	return exists, nil
}

// FindConnection finds an active companion joining the two users, in either order
func (r *CompanionRepository) FindConnection(ctx context.Context, userID, otherID string) (*models.Companion, error) {
	query := `
		SELECT ` + companionColumns + `
		FROM companions
		WHERE status = 'active'
		  AND ((user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1))
		LIMIT 1
	`
	c, err := scanCompanion(r.db.QueryRow(ctx, query, userID, otherID))
	if err != nil {
		return nil, fmt.Errorf("failed to find connection: %w", translateError(err))
	}
	return c, nil
}

// Activate flips a companion to active with the given second member
func (r *CompanionRepository) Activate(ctx context.Context, id, user2ID string, connectedAt time.Time) error {
	query := `
		UPDATE companions
		SET user2_id = $1, status = 'active', connected_at = $2
		WHERE id = $3
	`
	tag, err := r.db.Exec(ctx, query, user2ID, connectedAt, id)
	if err != nil {
		return fmt.Errorf("failed to activate companion: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to activate companion: no such companion")
	}
	return nil
}

// SetStatus updates a companion's status
func (r *CompanionRepository) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE companions SET status = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to set companion status: %w", translateError(err))
	}
	return nil
}

// ListActive returns all active companions, for broadcast jobs
func (r *CompanionRepository) ListActive(ctx context.Context) ([]models.Companion, error) {
	query := `SELECT ` + companionColumns + ` FROM companions WHERE status = 'active'`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active companions: %w", err)
	}
	defer rows.Close()

	var companions []models.Companion
	for rows.Next() {
		c, err := scanCompanion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan companion: %w", err)
		}
		companions = append(companions, *c)
	}
	return companions, rows.Err()
}

// ListByUser returns every companion the user belongs to, newest first
func (r *CompanionRepository) ListByUser(ctx context.Context, userID string) ([]models.Companion, error) {
	query := `
		SELECT ` + companionColumns + `
		FROM companions
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list companions by user: %w", err)
	}
	defer rows.Close()

	var companions []models.Companion
	for rows.Next() {
		c, err := scanCompanion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan companion: %w", err)
		}
		companions = append(companions, *c)
	}
	return companions, rows.Err()
}

// DeleteExpiredPending garbage-collects pending companions past their expiry
func (r *CompanionRepository) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM companions WHERE status = 'pending' AND expires_at < $1`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pending companions: %w", err)
	}
	return tag.RowsAffected(), nil
}
