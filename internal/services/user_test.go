package services

import (
	"context"
	"strings"
	"testing"

	"maum-baedal-backend/internal/apperrors"

	"github.com/stretchr/testify/require"
)

func TestCreateUser_TokenRoundtrip(t *testing.T) {
	st := newMemStore()
	svc := NewUserService(st, "test-secret")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "지민", []string{"daily", "food"})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.NotEmpty(t, user.Token)
	require.Equal(t, "지민", user.Nickname)

	userID, err := svc.ValidateJWT(user.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)

	// Tokens signed with another secret do not verify.
	other := NewUserService(st, "other-secret")
	_, err = other.ValidateJWT(user.Token)
	require.Error(t, err)
}

func TestCreateUser_DefaultsAndValidation(t *testing.T) {
	st := newMemStore()
	svc := NewUserService(st, "test-secret")
	ctx := context.Background()

	anon, err := svc.CreateUser(ctx, "  ", nil)
	require.NoError(t, err)
	require.Equal(t, "익명", anon.Nickname)

	_, err = svc.CreateUser(ctx, strings.Repeat("가", 31), nil)
	require.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))

	_, err = svc.CreateUser(ctx, "지민", []string{"bogus"})
	require.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))

	_, err = svc.CreateUser(ctx, "지민", []string{"daily", "daily"})
	require.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))

	_, err = svc.CreateUser(ctx, "지민", interestCategories[:6])
	require.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))
}

func TestUpdateProfile(t *testing.T) {
	st := newMemStore()
	svc := NewUserService(st, "test-secret")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "지민", nil)
	require.NoError(t, err)

	bio := "매일 한 가지씩 기록합니다"
	updated, err := svc.UpdateProfile(ctx, user.ID, "민지", "언니", &bio, []string{"comfort"})
	require.NoError(t, err)
	require.Equal(t, "민지", updated.Nickname)
	require.Equal(t, "언니", updated.Label)
	require.NotNil(t, updated.Bio)
	require.Equal(t, bio, *updated.Bio)
	require.Equal(t, []string{"comfort"}, updated.Interests)

	// A blank bio clears the field instead of storing whitespace.
	blank := "   "
	updated, err = svc.UpdateProfile(ctx, user.ID, "민지", "언니", &blank, nil)
	require.NoError(t, err)
	require.Nil(t, updated.Bio)

	long := strings.Repeat("가", 201)
	_, err = svc.UpdateProfile(ctx, user.ID, "민지", "언니", &long, nil)
	require.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))

	_, err = svc.UpdateProfile(ctx, user.ID, "", "", nil, nil)
	require.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))

	_, err = svc.UpdateProfile(ctx, "missing", "민지", "", nil, nil)
	require.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
