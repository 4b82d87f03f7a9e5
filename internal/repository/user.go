package repository

import (
	"context"
	"fmt"

	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/store"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db Querier
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, nickname, label, bio, image, interests, push_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Nickname, user.Label, user.Bio, user.Image,
		user.Interests, user.PushToken, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, nickname, label, bio, image, interests, push_token, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Nickname, &user.Label, &user.Bio, &user.Image,
		&user.Interests, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translateError(err))
	}
	return &user, nil
}

// UpdateProfile updates nickname, label, bio and interests in one statement
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, nickname, label string, bio *string, interests []string) error {
	query := `UPDATE users SET nickname = $1, label = $2, bio = $3, interests = $4 WHERE id = $5`
	tag, err := r.db.Exec(ctx, query, nickname, label, bio, interests, id)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update profile: %w", store.ErrNotFound)
	}
	return nil
}

// UpdateLabel updates the user's relationship label
func (r *UserRepository) UpdateLabel(ctx context.Context, id, label string) error {
	query := `UPDATE users SET label = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, label, id); err != nil {
		return fmt.Errorf("failed to update label: %w", translateError(err))
	}
	return nil
}

// UpdateImage updates the user's profile image URL
func (r *UserRepository) UpdateImage(ctx context.Context, id, imageURL string) error {
	query := `UPDATE users SET image = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, imageURL, id); err != nil {
		return fmt.Errorf("failed to update image: %w", translateError(err))
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, pushToken, id); err != nil {
		return fmt.Errorf("failed to update push token: %w", translateError(err))
	}
	return nil
}
