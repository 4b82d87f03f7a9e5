package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"maum-baedal-backend/internal/apperrors"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	minActiveQuestions  = 10
	minActiveCategories = 5
	healthCacheTTL      = 5 * time.Minute
)

// Selection reasons, recorded in daily stats.
const (
	ReasonCommonInterest = "common_interest"
	ReasonUserInterest   = "user_interest"
	ReasonRandom         = "random"
)

// QuestionService selects questions for assignments and keeps the
// question pool healthy.
type QuestionService struct {
	store store.Store
	now   func() time.Time
	randN func(int) int

	mu          sync.Mutex
	healthAt    time.Time
	healthOK    bool
	healthCount int
}

// NewQuestionService creates a new question service
func NewQuestionService(st store.Store) *QuestionService {
	return &QuestionService{
		store: st,
		now:   time.Now,
		randN: rand.Intn,
	}
}

// SelectResult carries the chosen question and why it was chosen.
type SelectResult struct {
	Question *models.Question
	Reason   string
}

// Select picks a question for a relationship inside the caller's
// transaction. Priority: common interests, then the union of both
// members' interests, then a random active question; an empty pool
// triggers one recovery attempt before giving up.
func (s *QuestionService) Select(ctx context.Context, tx store.Tx, interests1, interests2, excludeIDs []string) (*SelectResult, error) {
	questions := tx.Questions()

	common := intersect(interests1, interests2)
	if len(common) > 0 {
		q, err := questions.FindLeastUsedByCategories(ctx, common, excludeIDs)
		if err == nil {
			return &SelectResult{Question: q, Reason: ReasonCommonInterest}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	all := union(interests1, interests2)
	if len(all) > 0 {
		q, err := questions.FindLeastUsedByCategories(ctx, all, excludeIDs)
		if err == nil {
			return &SelectResult{Question: q, Reason: ReasonUserInterest}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	q, err := s.selectRandom(ctx, questions, excludeIDs)
	if err == nil {
		return &SelectResult{Question: q, Reason: ReasonRandom}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// Empty pool: recover inside the same transaction and retry once.
	created, err := s.recover(ctx, questions)
	if err != nil {
		return nil, fmt.Errorf("question pool recovery failed: %w", err)
	}
	log.Warn().Int64("questions_created", created).Msg("Question pool was empty, recovered defaults")

	q, err = s.selectRandom(ctx, questions, excludeIDs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ResourceExhausted("no active questions available")
		}
		return nil, err
	}
	return &SelectResult{Question: q, Reason: ReasonRandom}, nil
}

// selectRandom picks a uniformly random active question via an offset into
// the active count, which stays index-friendly on large pools.
func (s *QuestionService) selectRandom(ctx context.Context, questions store.QuestionStore, excludeIDs []string) (*models.Question, error) {
	count, err := questions.CountActive(ctx, excludeIDs)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, store.ErrNotFound
	}
	return questions.FindActiveAt(ctx, s.randN(count), excludeIDs)
}

// Health describes the state of the question pool.
type Health struct {
	Healthy         bool     `json:"healthy"`
	ActiveQuestions int      `json:"active_questions"`
	Categories      int      `json:"categories"`
	Issues          []string `json:"issues,omitempty"`
}

// CheckHealth inspects the question pool without caching.
func (s *QuestionService) CheckHealth(ctx context.Context) (*Health, error) {
	questions := s.store.Questions()

	active, err := questions.CountActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	categories, err := questions.CountActiveCategories(ctx)
	if err != nil {
		return nil, err
	}

	h := &Health{ActiveQuestions: active, Categories: categories}
	if active == 0 {
		h.Issues = append(h.Issues, "no active questions")
	} else if active < minActiveQuestions {
		h.Issues = append(h.Issues, fmt.Sprintf("too few active questions (%d)", active))
	}
	if categories < minActiveCategories {
		h.Issues = append(h.Issues, fmt.Sprintf("too few question categories (%d)", categories))
	}
	h.Healthy = len(h.Issues) == 0
	return h, nil
}

// RecoveryResult reports what EnsureAvailable did.
type RecoveryResult struct {
	Recovered bool `json:"recovered"`
	Count     int  `json:"count"`
}

// EnsureAvailable checks pool health and, when unhealthy, inserts the
// curated default set. Idempotent: the insert deduplicates on content.
func (s *QuestionService) EnsureAvailable(ctx context.Context) (*RecoveryResult, error) {
	health, err := s.CheckHealth(ctx)
	if err != nil {
		return nil, err
	}
	if health.Healthy {
		s.cacheHealth(true, health.ActiveQuestions)
		return &RecoveryResult{Recovered: false, Count: health.ActiveQuestions}, nil
	}

	log.Warn().
		Strs("issues", health.Issues).
		Int("active_questions", health.ActiveQuestions).
		Msg("Question pool unhealthy, recovering")

	var created int64
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		n, err := s.recover(ctx, tx.Questions())
		created = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("question pool recovery failed: %w", err)
	}

	after, err := s.CheckHealth(ctx)
	if err != nil {
		return nil, err
	}
	if !after.Healthy {
		s.cacheHealth(false, after.ActiveQuestions)
		return nil, apperrors.ResourceExhausted("question pool still unhealthy after recovery")
	}

	s.cacheHealth(true, after.ActiveQuestions)
	log.Info().
		Int64("questions_created", created).
		Int("active_questions", after.ActiveQuestions).
		Msg("Question pool recovered")
	return &RecoveryResult{Recovered: true, Count: after.ActiveQuestions}, nil
}

// QuickCheck answers "is the pool usable" from a short-lived cache so the
// hot path does not pay a count query on every request. The cache can
// never mask an empty pool for longer than its TTL.
func (s *QuestionService) QuickCheck(ctx context.Context) bool {
	s.mu.Lock()
	if !s.healthAt.IsZero() && s.now().Sub(s.healthAt) < healthCacheTTL {
		ok := s.healthOK && s.healthCount > 0
		s.mu.Unlock()
		return ok
	}
	s.mu.Unlock()

	count, err := s.store.Questions().CountActive(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Quick question check failed")
		return false
	}
	ok := count >= minActiveQuestions
	s.cacheHealth(ok, count)
	return ok
}

func (s *QuestionService) cacheHealth(ok bool, count int) {
	s.mu.Lock()
	s.healthAt = s.now()
	s.healthOK = ok
	s.healthCount = count
	s.mu.Unlock()
}

func (s *QuestionService) recover(ctx context.Context, questions store.QuestionStore) (int64, error) {
	defaults := make([]models.Question, len(defaultQuestions))
	now := s.now()
	for i, d := range defaultQuestions {
		defaults[i] = models.Question{
			ID:         uuid.New().String(),
			Content:    d.content,
			Category:   d.category,
			Difficulty: d.difficulty,
			IsActive:   true,
			CreatedAt:  now,
		}
	}
	return questions.InsertIgnoreDuplicates(ctx, defaults)
}

func intersect(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	var out []string
	for _, v := range b {
		if seen[v] {
			out = append(out, v)
			seen[v] = false
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, v := range append(append([]string{}, a...), b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
