package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"maum-baedal-backend/internal/apperrors"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	inviteCodeLength = 6
	// 0, O, I and 1 are excluded for readability
	inviteCodeChars    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeAttempts = 10
	inviteTTL          = 24 * time.Hour
)

// CompanionService manages relationship records and their lifecycle.
type CompanionService struct {
	store    store.Store
	notifier Notifier
	now      func() time.Time
}

// NewCompanionService creates a new companion service
func NewCompanionService(st store.Store, notifier Notifier) *CompanionService {
	return &CompanionService{
		store:    st,
		notifier: notifier,
		now:      time.Now,
	}
}

// GetActiveFor finds the active companion containing the user.
func (s *CompanionService) GetActiveFor(ctx context.Context, userID string) (*models.Companion, error) {
	companion, err := s.store.Companions().FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("no active companion")
		}
		return nil, err
	}
	return companion, nil
}

// InviteResult is the outcome of creating an invite.
type InviteResult struct {
	CompanionID string    `json:"companion_id"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreateInvite generates a collision-checked invite code, creates a
// pending companion for the inviter and records their display label.
func (s *CompanionService) CreateInvite(ctx context.Context, userID, label string) (*InviteResult, error) {
	var result *InviteResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		code, err := s.generateUniqueInviteCode(ctx, tx.Companions())
		if err != nil {
			return err
		}

		now := s.now()
		expiresAt := now.Add(inviteTTL)
		companion := &models.Companion{
			ID:         uuid.New().String(),
			User1ID:    userID,
			Status:     models.CompanionPending,
			InviteCode: &code,
			ExpiresAt:  &expiresAt,
			CreatedAt:  now,
		}
		if err := tx.Companions().Create(ctx, companion); err != nil {
			return err
		}
		if label != "" {
			if err := tx.Users().UpdateLabel(ctx, userID, label); err != nil {
				return err
			}
		}

		result = &InviteResult{CompanionID: companion.ID, Code: code, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("companion_id", result.CompanionID).
		Msg("Invite created")
	return result, nil
}

// ConnectWithInvite validates an invite code and atomically activates the
// pending companion with the joining user as the second member.
func (s *CompanionService) ConnectWithInvite(ctx context.Context, code, userID, label string) (*models.Companion, error) {
	var companion *models.Companion
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		found, err := tx.Companions().FindByInviteCode(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.NotFound("invite code not found")
			}
			return err
		}

		now := s.now()
		if found.ExpiresAt != nil && found.ExpiresAt.Before(now) {
			return apperrors.InvalidState("invite code expired")
		}
		if found.Status != models.CompanionPending {
			return apperrors.InvalidState("invite code already used")
		}
		if found.User1ID == userID {
			return apperrors.InvalidState("cannot use your own invite code")
		}

		if err := ensureNotConnected(ctx, tx, userID, found.User1ID); err != nil {
			return err
		}

		if err := tx.Companions().Activate(ctx, found.ID, userID, now); err != nil {
			return err
		}
		if label != "" {
			if err := tx.Users().UpdateLabel(ctx, userID, label); err != nil {
				return err
			}
		}

		found.User2ID = &userID
		found.Status = models.CompanionActive
		found.ConnectedAt = &now
		companion = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("companion_id", companion.ID).
		Str("user_id", userID).
		Msg("Companion connected via invite code")
	s.notifyConnected(companion)
	return companion, nil
}

// CleanupExpired garbage-collects expired pending companions.
func (s *CompanionService) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.store.Companions().DeleteExpiredPending(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("Expired pending companions removed")
	}
	return count, nil
}

// ensureNotConnected rejects the join when the joiner already has an
// active relationship, or one already exists between the two users. A
// solo companion does not count as connected.
func ensureNotConnected(ctx context.Context, tx store.Tx, userID, otherID string) error {
	if _, err := tx.Companions().FindActiveByUser(ctx, userID); err == nil {
		return apperrors.InvalidState("already connected with a companion")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := tx.Companions().FindActiveByUser(ctx, otherID); err == nil {
		return apperrors.InvalidState("the inviter is already connected with a companion")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := tx.Companions().FindConnection(ctx, userID, otherID); err == nil {
		return apperrors.InvalidState("already connected with this user")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (s *CompanionService) notifyConnected(companion *models.Companion) {
	if s.notifier == nil {
		return
	}
	vars := map[string]string{"companion_id": companion.ID}
	s.notifier.Dispatch(companion.User1ID, EventCompanionConnected, vars)
	if companion.User2ID != nil && *companion.User2ID != companion.User1ID {
		s.notifier.Dispatch(*companion.User2ID, EventCompanionConnected, vars)
	}
}

func (s *CompanionService) generateUniqueInviteCode(ctx context.Context, companions store.CompanionStore) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code := generateInviteCode()
		exists, err := companions.InviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperrors.ResourceExhausted(
		fmt.Sprintf("failed to generate unique invite code after %d attempts", inviteCodeAttempts))
}

func generateInviteCode() string {
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCodeChars))))
		code[i] = inviteCodeChars[n.Int64()]
	}
	return string(code)
}
