package repository

import (
	"context"
	"fmt"
	"time"

	"maum-baedal-backend/internal/models"
)

// ShareTokenRepository handles database operations for share tokens
type ShareTokenRepository struct {
	db Querier
}

// Create stores a new share token
func (r *ShareTokenRepository) Create(ctx context.Context, token *models.ShareToken) error {
	query := `
		INSERT INTO share_tokens (id, token, assignment_id, creator_id, message, status, companion_id, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		token.ID, token.Token, token.AssignmentID, token.CreatorID, token.Message, token.Status,
		token.CompanionID, token.ExpiresAt, token.UsedAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create share token: %w", translateError(err))
	}
	return nil
}

// GetByToken retrieves a share token by its token string
func (r *ShareTokenRepository) GetByToken(ctx context.Context, token string) (*models.ShareToken, error) {
	query := `
		SELECT id, token, assignment_id, creator_id, message, status, companion_id, expires_at, used_at, created_at
		FROM share_tokens
		WHERE token = $1
	`
	var st models.ShareToken
	err := r.db.QueryRow(ctx, query, token).Scan(
		&st.ID, &st.Token, &st.AssignmentID, &st.CreatorID, &st.Message, &st.Status,
		&st.CompanionID, &st.ExpiresAt, &st.UsedAt, &st.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get share token: %w", translateError(err))
	}
	return &st, nil
}

// MarkUsed conditionally flips a pending token to used. The WHERE clause
// on status makes exactly one of two concurrent redeemers win.
func (r *ShareTokenRepository) MarkUsed(ctx context.Context, token, companionID string, usedAt time.Time) (bool, error) {
	query := `
		UPDATE share_tokens
		SET status = 'used', used_at = $1, companion_id = $2
		WHERE token = $3 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, usedAt, companionID, token)
	if err != nil {
		return false, fmt.Errorf("failed to mark share token used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpirePending batch-flips stale pending tokens to expired
func (r *ShareTokenRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE share_tokens SET status = 'expired' WHERE status = 'pending' AND expires_at < $1`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire share tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
