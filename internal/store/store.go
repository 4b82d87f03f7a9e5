// Package store defines the persistence interfaces the core services
// operate against. The pgx-backed implementation lives in
// internal/repository; tests substitute an in-memory fake.
package store

import (
	"context"
	"errors"
	"time"

	"maum-baedal-backend/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint. Callers treat it as "someone else already created the row"
// and re-read.
var ErrDuplicate = errors.New("duplicate")

// Tx is one consistent view of the data store. Outside a transaction the
// methods autocommit; inside WithTx they share one transaction.
type Tx interface {
	Users() UserStore
	Companions() CompanionStore
	Questions() QuestionStore
	Assignments() AssignmentStore
	ShareTokens() ShareTokenStore
	Stats() StatsStore
}

// Store is the root handle passed into services.
type Store interface {
	Tx

	// WithTx runs fn inside a single transaction; any error rolls the
	// whole transaction back so no partial writes are observable.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// UserStore persists users and their profiles.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, nickname, label string, bio *string, interests []string) error
	UpdateLabel(ctx context.Context, id, label string) error
	UpdateImage(ctx context.Context, id, imageURL string) error
	UpdatePushToken(ctx context.Context, id string, pushToken *string) error
}

// CompanionStore persists relationship records.
type CompanionStore interface {
	Create(ctx context.Context, companion *models.Companion) error
	GetByID(ctx context.Context, id string) (*models.Companion, error)
	FindActiveByUser(ctx context.Context, userID string) (*models.Companion, error)
	FindByInviteCode(ctx context.Context, code string) (*models.Companion, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)

	// FindConnection finds an active companion joining the two users, in
	// either order.
	FindConnection(ctx context.Context, userID, otherID string) (*models.Companion, error)

	// Activate flips a companion to active with the given second member.
	Activate(ctx context.Context, id, user2ID string, connectedAt time.Time) error

	SetStatus(ctx context.Context, id, status string) error
	ListActive(ctx context.Context) ([]models.Companion, error)

	// ListByUser returns every companion (any status) the user belongs to.
	ListByUser(ctx context.Context, userID string) ([]models.Companion, error)
	DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error)
}

// QuestionStore persists questions and their usage counters.
type QuestionStore interface {
	GetByID(ctx context.Context, id string) (*models.Question, error)

	// FindLeastUsedByCategories returns the active question in one of the
	// given categories with the lowest totalUsed (ties broken by highest
	// totalAnswers), excluding excludeIDs. ErrNotFound when none match.
	FindLeastUsedByCategories(ctx context.Context, categories, excludeIDs []string) (*models.Question, error)

	// FindActiveAt returns the active question at the given offset in a
	// stable ordering, excluding excludeIDs.
	FindActiveAt(ctx context.Context, offset int, excludeIDs []string) (*models.Question, error)

	CountActive(ctx context.Context, excludeIDs []string) (int, error)
	CountActiveCategories(ctx context.Context) (int, error)
	IncrementUsage(ctx context.Context, id string) error
	IncrementAnswers(ctx context.Context, id string) error

	// InsertIgnoreDuplicates bulk-inserts questions, skipping rows whose
	// content already exists. Returns the number actually inserted.
	InsertIgnoreDuplicates(ctx context.Context, questions []models.Question) (int64, error)
}

// AssignmentStore persists assignments, answers and conversations.
type AssignmentStore interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	GetByID(ctx context.Context, id string) (*models.Assignment, error)
	FindActive(ctx context.Context, companionID, serviceDay string) (*models.Assignment, error)
	SetStatus(ctx context.Context, id, status string) error
	SetCompanion(ctx context.Context, id, companionID string) error

	// UpsertAnswer inserts the user's answer or updates its content in
	// place. Reports whether a new row was created.
	UpsertAnswer(ctx context.Context, answer *models.Answer) (created bool, err error)
	ListAnswers(ctx context.Context, assignmentID string) ([]models.Answer, error)
	CountAnswers(ctx context.Context, assignmentID string) (int, error)

	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetConversationByAssignment(ctx context.Context, assignmentID string) (*models.Conversation, error)

	// ListCompleted returns completed assignments for the given companions,
	// newest service day first.
	ListCompleted(ctx context.Context, companionIDs []string, limit, offset int) ([]models.Assignment, error)

	// FindAnswerless returns active assignments for the service day having
	// fewer than two answers, for reminder broadcasts.
	FindAnswerless(ctx context.Context, serviceDay string) ([]models.Assignment, error)
}

// ShareTokenStore persists share tokens.
type ShareTokenStore interface {
	Create(ctx context.Context, token *models.ShareToken) error
	GetByToken(ctx context.Context, token string) (*models.ShareToken, error)

	// MarkUsed conditionally flips a pending token to used, recording the
	// resulting companion. Reports false when the token was not pending,
	// so exactly one of two concurrent redeemers wins.
	MarkUsed(ctx context.Context, token, companionID string, usedAt time.Time) (bool, error)

	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// StatsStore accumulates daily counters. Increments are atomic upserts.
type StatsStore interface {
	Increment(ctx context.Context, date, field string, delta int) error
	Get(ctx context.Context, date string) (*models.DailyStat, error)
}

// DailyStat field names accepted by StatsStore.Increment.
const (
	StatPersonalizedQuestions = "personalized_questions"
	StatRandomQuestions       = "random_questions"
	StatTotalAnswers          = "total_answers"
	StatCompletedGates        = "completed_gates"
	StatShareTokensCreated    = "share_tokens_created"
	StatShareTokensUsed       = "share_tokens_used"
)
