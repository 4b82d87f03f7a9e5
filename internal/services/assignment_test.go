package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"maum-baedal-backend/internal/apperrors"
	"maum-baedal-backend/internal/models"

	"github.com/stretchr/testify/require"
)

// 12:00 KST on 2025-08-26, well inside the service day.
var testNow = time.Date(2025, 8, 26, 3, 0, 0, 0, time.UTC)

const testDay = "2025-08-26"

type dispatchedEvent struct {
	userID string
	event  Event
}

type mockNotifier struct {
	mu     sync.Mutex
	events []dispatchedEvent
}

func (n *mockNotifier) Dispatch(userID string, event Event, vars map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, dispatchedEvent{userID: userID, event: event})
}

func (n *mockNotifier) sent(userID string, event Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.userID == userID && e.event == event {
			return true
		}
	}
	return false
}

type testEnv struct {
	store      *memStore
	questions  *QuestionService
	assignment *AssignmentService
	companions *CompanionService
	tokens     *ShareTokenService
	notifier   *mockNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newMemStore()
	notifier := &mockNotifier{}

	questions := NewQuestionService(st)
	questions.now = func() time.Time { return testNow }
	questions.randN = func(n int) int { return 0 }

	assignment := NewAssignmentService(st, questions, notifier)
	assignment.now = func() time.Time { return testNow }

	companions := NewCompanionService(st, notifier)
	companions.now = func() time.Time { return testNow }

	tokens := NewShareTokenService(st, "https://maum.example.com")
	tokens.now = func() time.Time { return testNow }

	return &testEnv{
		store:      st,
		questions:  questions,
		assignment: assignment,
		companions: companions,
		tokens:     tokens,
		notifier:   notifier,
	}
}

func (e *testEnv) seedUser(t *testing.T, id string, interests ...string) {
	t.Helper()
	err := e.store.Users().Create(context.Background(), &models.User{
		ID:        id,
		Nickname:  "user-" + id,
		Interests: interests,
		CreatedAt: testNow,
	})
	require.NoError(t, err)
}

func (e *testEnv) seedQuestions(t *testing.T, n int) {
	t.Helper()
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:        fmt.Sprintf("q%03d", i),
			Content:   fmt.Sprintf("question %d", i),
			Category:  interestCategories[i%len(interestCategories)],
			IsActive:  true,
			CreatedAt: testNow,
		}
	}
	_, err := e.store.Questions().InsertIgnoreDuplicates(context.Background(), qs)
	require.NoError(t, err)
}

func (e *testEnv) seedPair(t *testing.T, u1, u2 string) *models.Companion {
	t.Helper()
	e.seedUser(t, u1)
	e.seedUser(t, u2)
	connected := testNow
	c := &models.Companion{
		ID:          "pair-" + u1 + "-" + u2,
		User1ID:     u1,
		User2ID:     &u2,
		Status:      models.CompanionActive,
		ConnectedAt: &connected,
		CreatedAt:   testNow,
	}
	require.NoError(t, e.store.Companions().Create(context.Background(), c))
	return c
}

func TestGetOrCreateToday_FirstUseCreatesSoloAssignment(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", "daily")
	env.seedQuestions(t, 20)
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)

	require.Equal(t, "solo-u1", view.Companion.ID)
	require.Equal(t, models.CompanionSolo, view.Companion.Status)
	require.Equal(t, testDay, view.Assignment.ServiceDay)
	require.Equal(t, models.AssignmentActive, view.Assignment.Status)
	require.Equal(t, models.GateNeedMyAnswer, view.GateStatus)
	require.NotNil(t, view.Question)

	// Idempotent: the second call returns the same assignment.
	again, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, view.Assignment.ID, again.Assignment.ID)

	q, err := env.store.Questions().GetByID(ctx, view.Assignment.QuestionID)
	require.NoError(t, err)
	require.Equal(t, 1, q.TotalUsed)
}

func TestGetOrCreateToday_EmptyPoolRecoversBeforeSelection(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1")
	ctx := context.Background()

	// No seeded questions: the health check runs before selection and
	// tops the pool up with the default set.
	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, view.Question)

	count, err := env.store.Questions().CountActive(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, len(defaultQuestions), count)

	// The recovery warmed the health cache, so the next request skips
	// the count query entirely.
	require.True(t, env.questions.QuickCheck(ctx))
}

func TestGetOrCreateToday_PrefersCommonInterests(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, 20)
	c := env.seedPair(t, "u1", "u2")
	ctx := context.Background()

	require.NoError(t, env.store.Users().UpdateProfile(ctx, "u1", "a", "", nil, []string{"food", "daily"}))
	require.NoError(t, env.store.Users().UpdateProfile(ctx, "u2", "b", "", nil, []string{"food", "memories"}))

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, c.ID, view.Companion.ID)
	require.Equal(t, "food", view.Question.Category)

	stat, err := env.store.Stats().Get(ctx, testDay)
	require.NoError(t, err)
	require.Equal(t, 1, stat.PersonalizedQuestions)
}

func TestGetOrCreateToday_ConcurrentRequestsConverge(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1")
	env.seedQuestions(t, 20)

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := env.assignment.GetOrCreateToday(context.Background(), "u1")
			if err == nil {
				ids[i] = view.Assignment.ID
			}
		}(i)
	}
	wg.Wait()

	first := ids[0]
	require.NotEmpty(t, first)
	for _, id := range ids {
		require.Equal(t, first, id)
	}
}

func TestSubmitAnswer_GateOpensOnSecondAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, 20)
	env.seedPair(t, "u1", "u2")
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)

	first, err := env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u1", "첫번째 답변")
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, models.GateWaitingPartner, first.GateStatus)
	require.Empty(t, first.ConversationID)
	require.True(t, env.notifier.sent("u2", EventPartnerAnswered))

	second, err := env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u2", "두번째 답변")
	require.NoError(t, err)
	require.Equal(t, models.GateOpened, second.GateStatus)
	require.NotEmpty(t, second.ConversationID)
	require.True(t, env.notifier.sent("u1", EventGateOpened))
	require.True(t, env.notifier.sent("u2", EventGateOpened))

	a, err := env.store.Assignments().GetByID(ctx, view.Assignment.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentCompleted, a.Status)

	conv, err := env.store.Assignments().GetConversationByAssignment(ctx, view.Assignment.ID)
	require.NoError(t, err)
	require.Equal(t, second.ConversationID, conv.ID)

	stat, err := env.store.Stats().Get(ctx, testDay)
	require.NoError(t, err)
	require.Equal(t, 2, stat.TotalAnswers)
	require.Equal(t, 1, stat.CompletedGates)

	// Answers are locked once the gate has opened.
	_, err = env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u1", "수정 시도")
	require.Error(t, err)
	require.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestSubmitAnswer_EditBeforeGateOpens(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, 20)
	env.seedPair(t, "u1", "u2")
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)

	_, err = env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u1", "처음 쓴 답")
	require.NoError(t, err)

	edited, err := env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u1", "고쳐 쓴 답")
	require.NoError(t, err)
	require.False(t, edited.Created)
	require.Equal(t, models.GateWaitingPartner, edited.GateStatus)

	answers, err := env.store.Assignments().ListAnswers(ctx, view.Assignment.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Equal(t, "고쳐 쓴 답", answers[0].Content)

	stat, err := env.store.Stats().Get(ctx, testDay)
	require.NoError(t, err)
	require.Equal(t, 1, stat.TotalAnswers)
}

func TestSubmitAnswer_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, 20)
	env.seedPair(t, "u1", "u2")
	env.seedUser(t, "outsider")
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)

	tests := []struct {
		name         string
		assignmentID string
		userID       string
		content      string
		wantKind     apperrors.Kind
	}{
		{"empty content", view.Assignment.ID, "u1", "   ", apperrors.KindInvalid},
		{"too long", view.Assignment.ID, "u1", strings.Repeat("가", 1001), apperrors.KindInvalid},
		{"not a member", view.Assignment.ID, "outsider", "답변", apperrors.KindForbidden},
		{"unknown assignment", "missing", "u1", "답변", apperrors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.assignment.SubmitAnswer(ctx, tt.assignmentID, tt.userID, tt.content)
			require.Error(t, err)
			require.Equal(t, tt.wantKind, apperrors.KindOf(err))
		})
	}
}

func TestSubmitAnswer_SoloStaysInSoloMode(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1")
	env.seedQuestions(t, 20)
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)

	result, err := env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u1", "혼자 쓰는 답")
	require.NoError(t, err)
	require.Equal(t, models.GateSoloMode, result.GateStatus)
	require.Empty(t, result.ConversationID)

	// One member, one answer: no conversation, assignment still active.
	a, err := env.store.Assignments().GetByID(ctx, view.Assignment.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentActive, a.Status)
}

func TestConvertSoloToCompanion(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "creator")
	env.seedUser(t, "joiner")
	env.seedQuestions(t, 20)
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "creator")
	require.NoError(t, err)
	_, err = env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "creator", "나의 답변")
	require.NoError(t, err)

	require.NoError(t, env.assignment.CreateShareGate(ctx, view.Assignment.ID, "creator"))
	link, err := env.tokens.Create(ctx, view.Assignment.ID, "creator", nil)
	require.NoError(t, err)

	result, err := env.assignment.ConvertSoloToCompanion(ctx, link.Token, "joiner", "합류하며 쓴 답", "동생")
	require.NoError(t, err)
	require.Equal(t, models.CompanionActive, result.Companion.Status)
	require.NotEmpty(t, result.ConversationID)

	// The assignment moved to the new pair and the gate opened.
	a, err := env.store.Assignments().GetByID(ctx, view.Assignment.ID)
	require.NoError(t, err)
	require.Equal(t, result.Companion.ID, a.CompanionID)
	require.Equal(t, models.AssignmentCompleted, a.Status)

	solo, err := env.store.Companions().GetByID(ctx, "solo-creator")
	require.NoError(t, err)
	require.Equal(t, models.CompanionConverted, solo.Status)

	st, err := env.store.ShareTokens().GetByToken(ctx, link.Token)
	require.NoError(t, err)
	require.Equal(t, models.ShareTokenUsed, st.Status)
	require.NotNil(t, st.CompanionID)
	require.Equal(t, result.Companion.ID, *st.CompanionID)

	joinerLabel, err := env.store.Users().GetByID(ctx, "joiner")
	require.NoError(t, err)
	require.Equal(t, "동생", joinerLabel.Label)

	require.True(t, env.notifier.sent("creator", EventGateOpened))
	require.True(t, env.notifier.sent("joiner", EventCompanionConnected))

	// A second redeemer finds the token spent.
	env.seedUser(t, "late")
	_, err = env.assignment.ConvertSoloToCompanion(ctx, link.Token, "late", "늦은 답변", "")
	require.Error(t, err)
	require.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestConvertSoloToCompanion_ConcurrentRedeemersSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "creator")
	env.seedQuestions(t, 20)
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "creator")
	require.NoError(t, err)
	_, err = env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "creator", "나의 답변")
	require.NoError(t, err)
	link, err := env.tokens.Create(ctx, view.Assignment.ID, "creator", nil)
	require.NoError(t, err)

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		joiner := fmt.Sprintf("joiner%d", i)
		env.seedUser(t, joiner)
		wg.Add(1)
		go func(i int, joiner string) {
			defer wg.Done()
			_, errs[i] = env.assignment.ConvertSoloToCompanion(ctx, link.Token, joiner, "답변", "")
		}(i, joiner)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
		}
	}
	require.Equal(t, 1, winners)
}

func TestConvertSoloToCompanion_RequiresCreatorAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "creator")
	env.seedUser(t, "joiner")
	env.seedQuestions(t, 20)
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "creator")
	require.NoError(t, err)
	link, err := env.tokens.Create(ctx, view.Assignment.ID, "creator", nil)
	require.NoError(t, err)

	_, err = env.assignment.ConvertSoloToCompanion(ctx, link.Token, "joiner", "답변", "")
	require.Error(t, err)
	require.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))

	// The failed conversion leaves the token redeemable.
	st, err := env.store.ShareTokens().GetByToken(ctx, link.Token)
	require.NoError(t, err)
	require.Equal(t, models.ShareTokenPending, st.Status)
}

func TestGateStatusFor(t *testing.T) {
	u2 := "u2"
	pair := &models.Companion{ID: "c1", User1ID: "u1", User2ID: &u2, Status: models.CompanionActive}
	soloU1 := "u1"
	solo := &models.Companion{ID: "solo-u1", User1ID: "u1", User2ID: &soloU1, Status: models.CompanionSolo}
	myAnswer := models.Answer{UserID: "u1", Content: "a"}
	partnerAnswer := models.Answer{UserID: "u2", Content: "b"}
	conv := &models.Conversation{ID: "conv1"}

	tests := []struct {
		name         string
		companion    *models.Companion
		answers      []models.Answer
		conversation *models.Conversation
		want         models.GateStatus
	}{
		{"no answer yet", pair, nil, nil, models.GateNeedMyAnswer},
		{"waiting for partner", pair, []models.Answer{myAnswer}, nil, models.GateWaitingPartner},
		{"partner answered first", pair, []models.Answer{partnerAnswer}, nil, models.GateNeedMyAnswer},
		{"opened", pair, []models.Answer{myAnswer, partnerAnswer}, conv, models.GateOpened},
		{"both answered but no conversation yet", pair, []models.Answer{myAnswer, partnerAnswer}, nil, models.GateWaitingPartner},
		{"solo unanswered", solo, nil, nil, models.GateNeedMyAnswer},
		{"solo answered", solo, []models.Answer{myAnswer}, nil, models.GateSoloMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GateStatusFor(tt.companion, tt.answers, tt.conversation, "u1")
			require.Equal(t, tt.want, got)
		})
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, 20)
	env.seedPair(t, "u1", "u2")
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)
	_, err = env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u1", "답 하나")
	require.NoError(t, err)
	result, err := env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u2", "답 둘")
	require.NoError(t, err)

	items, err := env.assignment.History(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, view.Assignment.ID, items[0].Assignment.ID)
	require.Equal(t, result.ConversationID, items[0].ConversationID)
	require.NotNil(t, items[0].Question)

	// Both members see the same history.
	other, err := env.assignment.History(ctx, "u2", 10, 0)
	require.NoError(t, err)
	require.Len(t, other, 1)

	// Paging past the end yields nothing.
	empty, err := env.assignment.History(ctx, "u1", 10, 1)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestGetConversation_Access(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, 20)
	env.seedPair(t, "u1", "u2")
	env.seedUser(t, "outsider")
	ctx := context.Background()

	view, err := env.assignment.GetOrCreateToday(ctx, "u1")
	require.NoError(t, err)
	_, err = env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u1", "답 하나")
	require.NoError(t, err)
	result, err := env.assignment.SubmitAnswer(ctx, view.Assignment.ID, "u2", "답 둘")
	require.NoError(t, err)

	conv, err := env.assignment.GetConversation(ctx, result.ConversationID, "u1")
	require.NoError(t, err)
	require.Len(t, conv.Answers, 2)
	require.Len(t, conv.Members, 2)

	_, err = env.assignment.GetConversation(ctx, result.ConversationID, "outsider")
	require.Error(t, err)
	require.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = env.assignment.GetConversation(ctx, "missing", "u1")
	require.Error(t, err)
	require.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
