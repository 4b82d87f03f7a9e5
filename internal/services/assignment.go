package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"maum-baedal-backend/internal/apperrors"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/serviceday"
	"maum-baedal-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxAnswerLength = 1000

	// recentExclusionWindow is how many past assignments are checked to
	// avoid repeating a question for the same companion.
	recentExclusionWindow = 30
)

// soloCompanionID is the deterministic id of a user's self-pair, so that
// concurrent first requests converge on one row.
func soloCompanionID(userID string) string {
	return "solo-" + userID
}

// dateKey is the stats bucket for a point in time.
func dateKey(now time.Time) string {
	return serviceday.Day(now)
}

// AssignmentService owns the daily question lifecycle: assignment
// creation, answer submission, gate opening and solo conversion.
type AssignmentService struct {
	store     store.Store
	questions *QuestionService
	notifier  Notifier
	now       func() time.Time
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(st store.Store, questions *QuestionService, notifier Notifier) *AssignmentService {
	return &AssignmentService{
		store:     st,
		questions: questions,
		notifier:  notifier,
		now:       time.Now,
	}
}

// TodayView is today's assignment with everything the caller needs to
// render it for one user.
type TodayView struct {
	Assignment   *models.Assignment
	Question     *models.Question
	Companion    *models.Companion
	Answers      []models.Answer
	Conversation *models.Conversation
	Partner      *models.User
	GateStatus   models.GateStatus
	TimeLeft     serviceday.TimeLeft
}

// MyAnswer returns the viewer's answer, or nil.
func (v *TodayView) MyAnswer(userID string) *models.Answer {
	for i := range v.Answers {
		if v.Answers[i].UserID == userID {
			return &v.Answers[i]
		}
	}
	return nil
}

// PartnerAnswer returns the other member's answer, or nil.
func (v *TodayView) PartnerAnswer(userID string) *models.Answer {
	for i := range v.Answers {
		if v.Answers[i].UserID != userID {
			return &v.Answers[i]
		}
	}
	return nil
}

// GetOrCreateToday returns the user's assignment for the current service
// day, creating the companion record and the assignment as needed. The
// call is idempotent; concurrent callers converge on one assignment.
func (s *AssignmentService) GetOrCreateToday(ctx context.Context, userID string) (*TodayView, error) {
	now := s.now()
	day := serviceday.Day(now)

	companion, err := s.companionFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	assignment, err := s.store.Assignments().FindActive(ctx, companion.ID, day)
	if errors.Is(err, store.ErrNotFound) {
		assignment, err = s.createAssignment(ctx, companion, day, now)
	}
	if err != nil {
		return nil, err
	}

	return s.buildTodayView(ctx, assignment, companion, userID, now)
}

// companionFor resolves the user's active companion, falling back to
// their solo self-pair which is created on first use.
func (s *AssignmentService) companionFor(ctx context.Context, userID string) (*models.Companion, error) {
	companion, err := s.store.Companions().FindActiveByUser(ctx, userID)
	if err == nil {
		return companion, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	soloID := soloCompanionID(userID)
	companion, err = s.store.Companions().GetByID(ctx, soloID)
	if err == nil {
		if companion.Status != models.CompanionSolo {
			// Converted self-pair with no active successor; start over.
			return nil, apperrors.InvalidState("no active companion")
		}
		return companion, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	solo := &models.Companion{
		ID:        soloID,
		User1ID:   userID,
		User2ID:   &userID,
		Status:    models.CompanionSolo,
		CreatedAt: s.now(),
	}
	if err := s.store.Companions().Create(ctx, solo); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.store.Companions().GetByID(ctx, soloID)
		}
		return nil, err
	}
	log.Info().Str("user_id", userID).Msg("Solo companion created")
	return solo, nil
}

// createAssignment picks a question and creates today's assignment. A
// concurrent creation loses the insert race and adopts the winner's row.
func (s *AssignmentService) createAssignment(ctx context.Context, companion *models.Companion, day string, now time.Time) (*models.Assignment, error) {
	// Cached health check keeps the hot path off count queries; an
	// unhealthy pool is topped up before selection runs.
	if !s.questions.QuickCheck(ctx) {
		if _, err := s.questions.EnsureAvailable(ctx); err != nil {
			return nil, err
		}
	}

	var (
		assignment *models.Assignment
		selection  *SelectResult
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		assignment = nil
		selection = nil

		interests1, interests2, err := s.memberInterests(ctx, tx, companion)
		if err != nil {
			return err
		}
		excludeIDs, err := s.recentQuestionIDs(ctx, tx, companion.ID)
		if err != nil {
			return err
		}

		sel, err := s.questions.Select(ctx, tx, interests1, interests2, excludeIDs)
		if err != nil {
			return err
		}

		a := &models.Assignment{
			ID:          uuid.New().String(),
			CompanionID: companion.ID,
			ServiceDay:  day,
			QuestionID:  sel.Question.ID,
			Status:      models.AssignmentActive,
			CreatedAt:   now,
		}
		if err := tx.Assignments().Create(ctx, a); err != nil {
			return err
		}
		if err := tx.Questions().IncrementUsage(ctx, sel.Question.ID); err != nil {
			return err
		}

		assignment = a
		selection = sel
		return nil
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Another request created today's assignment first.
		return s.store.Assignments().FindActive(ctx, companion.ID, day)
	}
	if err != nil {
		return nil, err
	}

	statField := store.StatRandomQuestions
	if selection.Reason != ReasonRandom {
		statField = store.StatPersonalizedQuestions
	}
	if err := s.store.Stats().Increment(ctx, day, statField, 1); err != nil {
		log.Warn().Err(err).Msg("Failed to record assignment stat")
	}

	log.Info().
		Str("companion_id", companion.ID).
		Str("service_day", day).
		Str("question_id", assignment.QuestionID).
		Str("reason", selection.Reason).
		Msg("Assignment created")
	return assignment, nil
}

func (s *AssignmentService) memberInterests(ctx context.Context, tx store.Tx, companion *models.Companion) ([]string, []string, error) {
	user1, err := tx.Users().GetByID(ctx, companion.User1ID)
	if err != nil {
		return nil, nil, err
	}
	if companion.User2ID == nil || *companion.User2ID == companion.User1ID {
		return user1.Interests, nil, nil
	}
	user2, err := tx.Users().GetByID(ctx, *companion.User2ID)
	if err != nil {
		return nil, nil, err
	}
	return user1.Interests, user2.Interests, nil
}

func (s *AssignmentService) recentQuestionIDs(ctx context.Context, tx store.Tx, companionID string) ([]string, error) {
	recent, err := tx.Assignments().ListCompleted(ctx, []string{companionID}, recentExclusionWindow, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recent))
	for _, a := range recent {
		ids = append(ids, a.QuestionID)
	}
	return ids, nil
}

// SubmitResult is the outcome of an answer submission.
type SubmitResult struct {
	Created        bool
	GateStatus     models.GateStatus
	ConversationID string
}

// SubmitAnswer records or updates the user's answer. When it completes
// the pair, the conversation is created in the same transaction so the
// opened gate and its artifact appear together.
func (s *AssignmentService) SubmitAnswer(ctx context.Context, assignmentID, userID, content string) (*SubmitResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Invalid("answer content is required")
	}
	if len([]rune(content)) > maxAnswerLength {
		return nil, apperrors.Invalid("answer content is too long")
	}

	now := s.now()
	var (
		result    *SubmitResult
		companion *models.Companion
		opened    bool
		created   bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		result = nil
		opened = false
		created = false

		assignment, err := tx.Assignments().GetByID(ctx, assignmentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.NotFound("assignment not found")
			}
			return err
		}
		companion, err = tx.Companions().GetByID(ctx, assignment.CompanionID)
		if err != nil {
			return err
		}
		if !companion.HasMember(userID) {
			return apperrors.Forbidden("not a member of this assignment")
		}
		if assignment.Status != models.AssignmentActive {
			return apperrors.InvalidState("answers are locked once the gate has opened")
		}

		answer := &models.Answer{
			ID:           uuid.New().String(),
			AssignmentID: assignmentID,
			UserID:       userID,
			Content:      content,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		created, err = tx.Assignments().UpsertAnswer(ctx, answer)
		if err != nil {
			return err
		}
		if created {
			if err := tx.Questions().IncrementAnswers(ctx, assignment.QuestionID); err != nil {
				return err
			}
			if err := tx.Stats().Increment(ctx, dateKey(now), store.StatTotalAnswers, 1); err != nil {
				return err
			}
		}

		if companion.IsSolo() {
			result = &SubmitResult{Created: created, GateStatus: models.GateSoloMode}
			return nil
		}

		count, err := tx.Assignments().CountAnswers(ctx, assignmentID)
		if err != nil {
			return err
		}
		if count < 2 {
			result = &SubmitResult{Created: created, GateStatus: models.GateWaitingPartner}
			return nil
		}

		conversation, err := s.openGate(ctx, tx, assignment, now)
		if err != nil {
			return err
		}
		opened = true
		result = &SubmitResult{
			Created:        created,
			GateStatus:     models.GateOpened,
			ConversationID: conversation.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAfterSubmit(companion, userID, created, opened)
	return result, nil
}

// openGate creates the conversation and completes the assignment. Safe to
// race: the duplicate loser adopts the winner's conversation.
func (s *AssignmentService) openGate(ctx context.Context, tx store.Tx, assignment *models.Assignment, now time.Time) (*models.Conversation, error) {
	conversation := &models.Conversation{
		ID:           uuid.New().String(),
		AssignmentID: assignment.ID,
		CreatedAt:    now,
	}
	err := tx.Assignments().CreateConversation(ctx, conversation)
	if errors.Is(err, store.ErrDuplicate) {
		return tx.Assignments().GetConversationByAssignment(ctx, assignment.ID)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Assignments().SetStatus(ctx, assignment.ID, models.AssignmentCompleted); err != nil {
		return nil, err
	}
	if err := tx.Stats().Increment(ctx, dateKey(now), store.StatCompletedGates, 1); err != nil {
		return nil, err
	}

	log.Info().
		Str("assignment_id", assignment.ID).
		Str("conversation_id", conversation.ID).
		Msg("Gate opened")
	return conversation, nil
}

func (s *AssignmentService) notifyAfterSubmit(companion *models.Companion, userID string, created, opened bool) {
	if s.notifier == nil || companion == nil || companion.IsSolo() {
		return
	}
	partnerID := companion.PartnerOf(userID)
	if opened {
		vars := map[string]string{"companion_id": companion.ID}
		s.notifier.Dispatch(companion.User1ID, EventGateOpened, vars)
		if companion.User2ID != nil {
			s.notifier.Dispatch(*companion.User2ID, EventGateOpened, vars)
		}
		return
	}
	if created && partnerID != "" {
		s.notifier.Dispatch(partnerID, EventPartnerAnswered, map[string]string{"companion_id": companion.ID})
	}
}

// ConvertResult is the outcome of redeeming a share token.
type ConvertResult struct {
	Companion      *models.Companion
	ConversationID string
	AssignmentID   string
}

// ConvertSoloToCompanion redeems a share token: the joiner answers the
// shared solo assignment, a new active companion replaces the self-pair,
// and the gate opens, all in one transaction. Exactly one concurrent
// redeemer can win the token.
func (s *AssignmentService) ConvertSoloToCompanion(ctx context.Context, token, newUserID, content, label string) (*ConvertResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Invalid("answer content is required")
	}
	if len([]rune(content)) > maxAnswerLength {
		return nil, apperrors.Invalid("answer content is too long")
	}

	now := s.now()
	var result *ConvertResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		result = nil

		st, err := tx.ShareTokens().GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.NotFound("invalid share link")
			}
			return err
		}
		if now.After(st.ExpiresAt) {
			return apperrors.InvalidState("share link expired")
		}
		if st.Status != models.ShareTokenPending {
			return apperrors.InvalidState("share link already used")
		}
		if st.CreatorID == newUserID {
			return apperrors.InvalidState("cannot join your own share link")
		}

		assignment, err := tx.Assignments().GetByID(ctx, st.AssignmentID)
		if err != nil {
			return err
		}
		solo, err := tx.Companions().GetByID(ctx, assignment.CompanionID)
		if err != nil {
			return err
		}
		if !solo.IsSolo() {
			return apperrors.InvalidState("assignment is no longer in solo mode")
		}
		if assignment.Status != models.AssignmentActive {
			return apperrors.InvalidState("assignment already completed")
		}

		creatorAnswer, err := s.answerBy(ctx, tx, assignment.ID, st.CreatorID)
		if err != nil {
			return err
		}
		if creatorAnswer == nil {
			return apperrors.InvalidState("the sharer has not answered yet")
		}

		if err := ensureNotConnected(ctx, tx, newUserID, st.CreatorID); err != nil {
			return err
		}

		companion := &models.Companion{
			ID:          uuid.New().String(),
			User1ID:     st.CreatorID,
			User2ID:     &newUserID,
			Status:      models.CompanionActive,
			ConnectedAt: &now,
			CreatedAt:   now,
		}
		if err := tx.Companions().Create(ctx, companion); err != nil {
			return err
		}

		won, err := tx.ShareTokens().MarkUsed(ctx, token, companion.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return apperrors.InvalidState("share link already used")
		}

		if err := tx.Assignments().SetCompanion(ctx, assignment.ID, companion.ID); err != nil {
			return err
		}

		answer := &models.Answer{
			ID:           uuid.New().String(),
			AssignmentID: assignment.ID,
			UserID:       newUserID,
			Content:      content,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		created, err := tx.Assignments().UpsertAnswer(ctx, answer)
		if err != nil {
			return err
		}

		conversation, err := s.openGate(ctx, tx, assignment, now)
		if err != nil {
			return err
		}

		if err := tx.Companions().SetStatus(ctx, solo.ID, models.CompanionConverted); err != nil {
			return err
		}
		if label != "" {
			if err := tx.Users().UpdateLabel(ctx, newUserID, label); err != nil {
				return err
			}
		}

		if created {
			if err := tx.Questions().IncrementAnswers(ctx, assignment.QuestionID); err != nil {
				return err
			}
			if err := tx.Stats().Increment(ctx, dateKey(now), store.StatTotalAnswers, 1); err != nil {
				return err
			}
		}
		if err := tx.Stats().Increment(ctx, dateKey(now), store.StatShareTokensUsed, 1); err != nil {
			return err
		}

		result = &ConvertResult{
			Companion:      companion,
			ConversationID: conversation.ID,
			AssignmentID:   assignment.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("companion_id", result.Companion.ID).
		Str("assignment_id", result.AssignmentID).
		Str("user_id", newUserID).
		Msg("Solo assignment converted to companion")

	if s.notifier != nil {
		vars := map[string]string{
			"companion_id":    result.Companion.ID,
			"conversation_id": result.ConversationID,
		}
		s.notifier.Dispatch(result.Companion.User1ID, EventCompanionConnected, vars)
		s.notifier.Dispatch(newUserID, EventCompanionConnected, vars)
		s.notifier.Dispatch(result.Companion.User1ID, EventGateOpened, vars)
		s.notifier.Dispatch(newUserID, EventGateOpened, vars)
	}
	return result, nil
}

func (s *AssignmentService) answerBy(ctx context.Context, tx store.Tx, assignmentID, userID string) (*models.Answer, error) {
	answers, err := tx.Assignments().ListAnswers(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	for i := range answers {
		if answers[i].UserID == userID {
			return &answers[i], nil
		}
	}
	return nil, nil
}

// GateStatusFor derives the gate state for one viewer. The conversation
// row is authoritative for "opened"; two answers without it still read
// as waiting so the reveal and its artifact appear atomically.
func GateStatusFor(companion *models.Companion, answers []models.Answer, conversation *models.Conversation, viewerID string) models.GateStatus {
	if conversation != nil {
		return models.GateOpened
	}
	var mine bool
	for i := range answers {
		if answers[i].UserID == viewerID {
			mine = true
			break
		}
	}
	if !mine {
		return models.GateNeedMyAnswer
	}
	if companion.IsSolo() {
		return models.GateSoloMode
	}
	return models.GateWaitingPartner
}

func (s *AssignmentService) buildTodayView(ctx context.Context, assignment *models.Assignment, companion *models.Companion, userID string, now time.Time) (*TodayView, error) {
	question, err := s.store.Questions().GetByID(ctx, assignment.QuestionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.Assignments().ListAnswers(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}
	conversation, err := s.store.Assignments().GetConversationByAssignment(ctx, assignment.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var partner *models.User
	if partnerID := companion.PartnerOf(userID); partnerID != "" {
		partner, err = s.store.Users().GetByID(ctx, partnerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return &TodayView{
		Assignment:   assignment,
		Question:     question,
		Companion:    companion,
		Answers:      answers,
		Conversation: conversation,
		Partner:      partner,
		GateStatus:   GateStatusFor(companion, answers, conversation, userID),
		TimeLeft:     serviceday.Left(now),
	}, nil
}

// ConversationView is a revealed assignment with both answers.
type ConversationView struct {
	Conversation *models.Conversation
	Assignment   *models.Assignment
	Question     *models.Question
	Companion    *models.Companion
	Answers      []models.Answer
	Members      map[string]*models.User
}

// GetConversation loads a revealed conversation for one of its members.
func (s *AssignmentService) GetConversation(ctx context.Context, conversationID, viewerID string) (*ConversationView, error) {
	conversation, err := s.store.Assignments().GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, err
	}
	assignment, err := s.store.Assignments().GetByID(ctx, conversation.AssignmentID)
	if err != nil {
		return nil, err
	}
	companion, err := s.store.Companions().GetByID(ctx, assignment.CompanionID)
	if err != nil {
		return nil, err
	}
	if !companion.HasMember(viewerID) {
		return nil, apperrors.Forbidden("not a member of this conversation")
	}

	question, err := s.store.Questions().GetByID(ctx, assignment.QuestionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.Assignments().ListAnswers(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	members := make(map[string]*models.User, 2)
	for _, id := range []string{companion.User1ID, companion.PartnerOf(companion.User1ID)} {
		if id == "" {
			continue
		}
		if _, ok := members[id]; ok {
			continue
		}
		u, err := s.store.Users().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		members[id] = u
	}

	return &ConversationView{
		Conversation: conversation,
		Assignment:   assignment,
		Question:     question,
		Companion:    companion,
		Answers:      answers,
		Members:      members,
	}, nil
}

// HistoryItem is one completed assignment in a user's history.
type HistoryItem struct {
	Assignment     models.Assignment
	Question       *models.Question
	ConversationID string
}

// History lists the user's completed assignments, newest first, across
// every companion they have belonged to.
func (s *AssignmentService) History(ctx context.Context, userID string, limit, offset int) ([]HistoryItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	companions, err := s.store.Companions().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(companions))
	for _, c := range companions {
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return []HistoryItem{}, nil
	}

	assignments, err := s.store.Assignments().ListCompleted(ctx, ids, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(assignments))
	for _, a := range assignments {
		question, err := s.store.Questions().GetByID(ctx, a.QuestionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		item := HistoryItem{Assignment: a, Question: question}
		conversation, err := s.store.Assignments().GetConversationByAssignment(ctx, a.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if conversation != nil {
			item.ConversationID = conversation.ID
		}
		items = append(items, item)
	}
	return items, nil
}

// SharedView is what a share link shows before the visitor answers.
type SharedView struct {
	AssignmentID  string
	Question      *models.Question
	CreatorName   string
	CreatorAnswer *models.Answer
	Message       *string
	ExpiresAt     time.Time
}

// SharedPreview resolves a share token into the shared question and the
// creator's answer. The token is not consumed.
func (s *AssignmentService) SharedPreview(ctx context.Context, token string) (*SharedView, error) {
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
	return s.sharedView(ctx, st)
}

// SharedAssignment shows a solo assignment's shared content directly by
// id, for the creator's own share page.
func (s *AssignmentService) SharedAssignment(ctx context.Context, assignmentID, viewerID string) (*SharedView, error) {
	assignment, err := s.store.Assignments().GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("assignment not found")
		}
		return nil, err
	}
	companion, err := s.store.Companions().GetByID(ctx, assignment.CompanionID)
	if err != nil {
		return nil, err
	}
	if !companion.HasMember(viewerID) {
		return nil, apperrors.Forbidden("not a member of this assignment")
	}

	question, err := s.store.Questions().GetByID(ctx, assignment.QuestionID)
	if err != nil {
		return nil, err
	}
	creatorAnswer, err := s.answerByStore(ctx, assignment.ID, companion.User1ID)
	if err != nil {
		return nil, err
	}
	creator, err := s.store.Users().GetByID(ctx, companion.User1ID)
	if err != nil {
		return nil, err
	}

	return &SharedView{
		AssignmentID:  assignment.ID,
		Question:      question,
		CreatorName:   creator.Nickname,
		CreatorAnswer: creatorAnswer,
	}, nil
}

func (s *AssignmentService) sharedView(ctx context.Context, st *models.ShareToken) (*SharedView, error) {
	assignment, err := s.store.Assignments().GetByID(ctx, st.AssignmentID)
	if err != nil {
		return nil, err
	}
	question, err := s.store.Questions().GetByID(ctx, assignment.QuestionID)
	if err != nil {
		return nil, err
	}
	creatorAnswer, err := s.answerByStore(ctx, assignment.ID, st.CreatorID)
	if err != nil {
		return nil, err
	}
	creator, err := s.store.Users().GetByID(ctx, st.CreatorID)
	if err != nil {
		return nil, err
	}

	return &SharedView{
		AssignmentID:  assignment.ID,
		Question:      question,
		CreatorName:   creator.Nickname,
		CreatorAnswer: creatorAnswer,
		Message:       st.Message,
		ExpiresAt:     st.ExpiresAt,
	}, nil
}

func (s *AssignmentService) answerByStore(ctx context.Context, assignmentID, userID string) (*models.Answer, error) {
	answers, err := s.store.Assignments().ListAnswers(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	for i := range answers {
		if answers[i].UserID == userID {
			return &answers[i], nil
		}
	}
	return nil, nil
}

// CreateShareGate validates that the assignment may be shared by the user:
// it must be their active solo assignment with their answer in place.
func (s *AssignmentService) CreateShareGate(ctx context.Context, assignmentID, userID string) error {
	assignment, err := s.store.Assignments().GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("assignment not found")
		}
		return err
	}
	companion, err := s.store.Companions().GetByID(ctx, assignment.CompanionID)
	if err != nil {
		return err
	}
	if !companion.HasMember(userID) {
		return apperrors.Forbidden("not a member of this assignment")
	}
	if !companion.IsSolo() {
		return apperrors.InvalidState("only solo assignments can be shared")
	}
	if assignment.Status != models.AssignmentActive {
		return apperrors.InvalidState("assignment already completed")
	}
	answer, err := s.answerByStore(ctx, assignmentID, userID)
	if err != nil {
		return err
	}
	if answer == nil {
		return apperrors.InvalidState("answer before sharing")
	}
	return nil
}

// BroadcastDaily notifies every active companion member that a new
// service day has begun. Returns the number of users notified.
func (s *AssignmentService) BroadcastDaily(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	companions, err := s.store.Companions().ListActive(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, c := range companions {
		s.notifier.Dispatch(c.User1ID, EventDailyQuestion, nil)
		count++
		if c.User2ID != nil && *c.User2ID != c.User1ID {
			s.notifier.Dispatch(*c.User2ID, EventDailyQuestion, nil)
			count++
		}
	}
	return count, nil
}

// BroadcastReminder nudges members who have not answered today's
// question yet. Returns the number of users notified.
func (s *AssignmentService) BroadcastReminder(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	day := serviceday.Day(s.now())
	assignments, err := s.store.Assignments().FindAnswerless(ctx, day)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range assignments {
		companion, err := s.store.Companions().GetByID(ctx, a.CompanionID)
		if err != nil {
			log.Warn().Err(err).Str("assignment_id", a.ID).Msg("Failed to load companion for reminder")
			continue
		}
		answers, err := s.store.Assignments().ListAnswers(ctx, a.ID)
		if err != nil {
			log.Warn().Err(err).Str("assignment_id", a.ID).Msg("Failed to load answers for reminder")
			continue
		}
		answered := make(map[string]bool, len(answers))
		for _, ans := range answers {
			answered[ans.UserID] = true
		}
		members := []string{companion.User1ID}
		if companion.User2ID != nil && *companion.User2ID != companion.User1ID {
			members = append(members, *companion.User2ID)
		}
		for _, id := range members {
			if !answered[id] {
				s.notifier.Dispatch(id, EventAnswerReminder, nil)
				count++
			}
		}
	}
	return count, nil
}
