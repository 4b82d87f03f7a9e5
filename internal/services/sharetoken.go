package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"maum-baedal-backend/internal/apperrors"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	shareTokenBytes    = 24
	shareTokenTTL      = 24 * time.Hour
	shareTokenAttempts = 5
)

// ShareTokenService issues and validates single-use share links for
// assignments answered in solo mode.
type ShareTokenService struct {
	store   store.Store
	baseURL string
	now     func() time.Time
}

// NewShareTokenService creates a new share token service
func NewShareTokenService(st store.Store, baseURL string) *ShareTokenService {
	return &ShareTokenService{
		store:   st,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// ShareLink is a freshly issued share token with its public URL.
type ShareLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create issues a new share token for the assignment. Token collisions are
// retried a bounded number of times.
func (s *ShareTokenService) Create(ctx context.Context, assignmentID, creatorID string, message *string) (*ShareLink, error) {
	now := s.now()
	expiresAt := now.Add(shareTokenTTL)

	var link *ShareLink
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		for i := 0; i < shareTokenAttempts; i++ {
			token := generateShareToken()
			st := &models.ShareToken{
				ID:           uuid.New().String(),
				Token:        token,
				AssignmentID: assignmentID,
				CreatorID:    creatorID,
				Message:      message,
				Status:       models.ShareTokenPending,
				ExpiresAt:    expiresAt,
				CreatedAt:    now,
			}
			err := tx.ShareTokens().Create(ctx, st)
			if err == nil {
				link = &ShareLink{
					Token:     token,
					URL:       s.baseURL + "/join/" + token,
					ExpiresAt: expiresAt,
				}
				return nil
			}
			if !errors.Is(err, store.ErrDuplicate) {
				return err
			}
		}
		return apperrors.ResourceExhausted(
			fmt.Sprintf("failed to generate unique share token after %d attempts", shareTokenAttempts))
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Stats().Increment(ctx, dateKey(now), store.StatShareTokensCreated, 1); err != nil {
		log.Warn().Err(err).Msg("Failed to record share token stat")
	}

	log.Info().
		Str("assignment_id", assignmentID).
		Str("creator_id", creatorID).
		Msg("Share token created")
	return link, nil
}

// Validate checks that the token exists, is pending and has not expired.
// It does not consume the token.
func (s *ShareTokenService) Validate(ctx context.Context, token string) (*models.ShareToken, error) {
	st, err := s.store.ShareTokens().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("invalid share link")
		}
		return nil, err
	}
	if s.now().After(st.ExpiresAt) {
		return nil, apperrors.InvalidState("share link expired")
	}
	if st.Status != models.ShareTokenPending {
		return nil, apperrors.InvalidState("share link already used")
	}
	return st, nil
}

// Cleanup marks every expired pending token as expired.
func (s *ShareTokenService) Cleanup(ctx context.Context) (int64, error) {
	count, err := s.store.ShareTokens().ExpirePending(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("Expired share tokens marked")
	}
	return count, nil
}

func generateShareToken() string {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
