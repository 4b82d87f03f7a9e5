package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maum-baedal-backend/internal/apperrors"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	jwtExpDays        = 365
	maxNicknameLength = 30
	maxBioLength      = 200
	maxInterests      = 5
)

// UserService handles user accounts, profiles and auth tokens.
type UserService struct {
	store     store.Store
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(st store.Store, jwtSecret string) *UserService {
	return &UserService{
		store:     st,
		jwtSecret: jwtSecret,
	}
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// CreateUser creates a new anonymous user with a signed token.
func (s *UserService) CreateUser(ctx context.Context, nickname string, interests []string) (*models.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = "익명"
	}
	if len([]rune(nickname)) > maxNicknameLength {
		return nil, apperrors.Invalid("nickname is too long")
	}
	if err := validateInterests(interests); err != nil {
		return nil, err
	}

	userID := uuid.New().String()
	token, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &models.User{
		ID:        userID,
		Token:     token,
		Nickname:  nickname,
		Interests: interests,
		CreatedAt: time.Now(),
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUser loads a user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile validates and updates the user's profile.
func (s *UserService) UpdateProfile(ctx context.Context, id, nickname, label string, bio *string, interests []string) (*models.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, apperrors.Invalid("nickname is required")
	}
	if len([]rune(nickname)) > maxNicknameLength {
		return nil, apperrors.Invalid("nickname is too long")
	}
	if bio != nil {
		trimmed := strings.TrimSpace(*bio)
		if trimmed == "" {
			bio = nil
		} else if len([]rune(trimmed)) > maxBioLength {
			return nil, apperrors.Invalid("bio is too long")
		} else {
			bio = &trimmed
		}
	}
	if err := validateInterests(interests); err != nil {
		return nil, err
	}

	if err := s.store.Users().UpdateProfile(ctx, id, nickname, label, bio, interests); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// UpdatePushToken stores or clears the user's device push token.
func (s *UserService) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	if pushToken != nil && strings.TrimSpace(*pushToken) == "" {
		pushToken = nil
	}
	return s.store.Users().UpdatePushToken(ctx, id, pushToken)
}

func validateInterests(interests []string) error {
	if len(interests) > maxInterests {
		return apperrors.Invalid(fmt.Sprintf("at most %d interests are allowed", maxInterests))
	}
	seen := make(map[string]bool, len(interests))
	for _, in := range interests {
		if !IsValidInterest(in) {
			return apperrors.Invalid("unknown interest: " + in)
		}
		if seen[in] {
			return apperrors.Invalid("duplicate interest: " + in)
		}
		seen[in] = true
	}
	return nil
}
