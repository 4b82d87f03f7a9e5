package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/store"
)

// memStore is an in-memory store.Store for service tests. Individual
// operations are atomic; WithTx restores a snapshot on error so rollback
// semantics hold.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users         map[string]*models.User
	companions    map[string]*models.Companion
	questions     map[string]*models.Question
	assignments   map[string]*models.Assignment
	answers       map[string]*models.Answer
	conversations map[string]*models.Conversation
	shareTokens   map[string]*models.ShareToken
	stats         map[string]*models.DailyStat
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]*models.User),
		companions:    make(map[string]*models.Companion),
		questions:     make(map[string]*models.Question),
		assignments:   make(map[string]*models.Assignment),
		answers:       make(map[string]*models.Answer),
		conversations: make(map[string]*models.Conversation),
		shareTokens:   make(map[string]*models.ShareToken),
		stats:         make(map[string]*models.DailyStat),
	}
}

func (m *memStore) Users() store.UserStore             { return memUsers{m} }
func (m *memStore) Companions() store.CompanionStore   { return memCompanions{m} }
func (m *memStore) Questions() store.QuestionStore     { return memQuestions{m} }
func (m *memStore) Assignments() store.AssignmentStore { return memAssignments{m} }
func (m *memStore) ShareTokens() store.ShareTokenStore { return memShareTokens{m} }
func (m *memStore) Stats() store.StatsStore            { return memStats{m} }

// WithTx serializes transactions so a failed one can restore its
// snapshot without clobbering concurrent commits.
func (m *memStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	users         map[string]*models.User
	companions    map[string]*models.Companion
	questions     map[string]*models.Question
	assignments   map[string]*models.Assignment
	answers       map[string]*models.Answer
	conversations map[string]*models.Conversation
	shareTokens   map[string]*models.ShareToken
	stats         map[string]*models.DailyStat
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		users:         copyMap(m.users),
		companions:    copyMap(m.companions),
		questions:     copyMap(m.questions),
		assignments:   copyMap(m.assignments),
		answers:       copyMap(m.answers),
		conversations: copyMap(m.conversations),
		shareTokens:   copyMap(m.shareTokens),
		stats:         copyMap(m.stats),
	}
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = snap.users
	m.companions = snap.companions
	m.questions = snap.questions
	m.assignments = snap.assignments
	m.answers = snap.answers
	m.conversations = snap.conversations
	m.shareTokens = snap.shareTokens
	m.stats = snap.stats
}

func copyMap[V any](src map[string]*V) map[string]*V {
	dst := make(map[string]*V, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

// users

type memUsers struct{ m *memStore }

func (s memUsers) Create(ctx context.Context, user *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[user.ID]; ok {
		return store.ErrDuplicate
	}
	c := *user
	s.m.users[user.ID] = &c
	return nil
}

func (s memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s memUsers) UpdateProfile(ctx context.Context, id string, nickname, label string, bio *string, interests []string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Nickname = nickname
	u.Label = label
	u.Bio = bio
	u.Interests = interests
	return nil
}

func (s memUsers) UpdateLabel(ctx context.Context, id, label string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Label = label
	return nil
}

func (s memUsers) UpdateImage(ctx context.Context, id, imageURL string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Image = &imageURL
	return nil
}

func (s memUsers) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PushToken = pushToken
	return nil
}

// companions

type memCompanions struct{ m *memStore }

func (s memCompanions) Create(ctx context.Context, companion *models.Companion) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.companions[companion.ID]; ok {
		return store.ErrDuplicate
	}
	if companion.InviteCode != nil {
		for _, c := range s.m.companions {
			if c.InviteCode != nil && *c.InviteCode == *companion.InviteCode {
				return store.ErrDuplicate
			}
		}
	}
	c := *companion
	s.m.companions[companion.ID] = &c
	return nil
}

func (s memCompanions) GetByID(ctx context.Context, id string) (*models.Companion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.companions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (s memCompanions) FindActiveByUser(ctx context.Context, userID string) (*models.Companion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.companions {
		if c.Status == models.CompanionActive && c.HasMember(userID) {
			cc := *c
			return &cc, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memCompanions) FindByInviteCode(ctx context.Context, code string) (*models.Companion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.companions {
		if c.InviteCode != nil && *c.InviteCode == code {
			cc := *c
			return &cc, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memCompanions) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := s.FindByInviteCode(ctx, code)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (s memCompanions) FindConnection(ctx context.Context, userID, otherID string) (*models.Companion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.companions {
		if c.Status == models.CompanionActive && c.HasMember(userID) && c.HasMember(otherID) {
			cc := *c
			return &cc, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memCompanions) Activate(ctx context.Context, id, user2ID string, connectedAt time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.companions[id]
	if !ok {
		return store.ErrNotFound
	}
	c.User2ID = &user2ID
	c.Status = models.CompanionActive
	c.ConnectedAt = &connectedAt
	return nil
}

func (s memCompanions) SetStatus(ctx context.Context, id, status string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.companions[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s memCompanions) ListActive(ctx context.Context) ([]models.Companion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Companion
	for _, c := range s.m.companions {
		if c.Status == models.CompanionActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s memCompanions) ListByUser(ctx context.Context, userID string) ([]models.Companion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Companion
	for _, c := range s.m.companions {
		if c.HasMember(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memCompanions) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for id, c := range s.m.companions {
		if c.Status == models.CompanionPending && c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
			delete(s.m.companions, id)
			n++
		}
	}
	return n, nil
}

// questions

type memQuestions struct{ m *memStore }

func (s memQuestions) GetByID(ctx context.Context, id string) (*models.Question, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.questions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *q
	return &c, nil
}

func (s memQuestions) activeQuestions(excludeIDs []string) []*models.Question {
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []*models.Question
	for _, q := range s.m.questions {
		if q.IsActive && !excluded[q.ID] {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memQuestions) FindLeastUsedByCategories(ctx context.Context, categories, excludeIDs []string) (*models.Question, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}
	var candidates []*models.Question
	for _, q := range s.activeQuestions(excludeIDs) {
		if wanted[q.Category] {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil, store.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TotalUsed != b.TotalUsed {
			return a.TotalUsed < b.TotalUsed
		}
		if a.TotalAnswers != b.TotalAnswers {
			return a.TotalAnswers > b.TotalAnswers
		}
		return a.ID < b.ID
	})
	c := *candidates[0]
	return &c, nil
}

func (s memQuestions) FindActiveAt(ctx context.Context, offset int, excludeIDs []string) (*models.Question, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	active := s.activeQuestions(excludeIDs)
	if offset < 0 || offset >= len(active) {
		return nil, store.ErrNotFound
	}
	c := *active[offset]
	return &c, nil
}

func (s memQuestions) CountActive(ctx context.Context, excludeIDs []string) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return len(s.activeQuestions(excludeIDs)), nil
}

func (s memQuestions) CountActiveCategories(ctx context.Context) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cats := make(map[string]bool)
	for _, q := range s.m.questions {
		if q.IsActive {
			cats[q.Category] = true
		}
	}
	return len(cats), nil
}

func (s memQuestions) IncrementUsage(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.questions[id]
	if !ok {
		return store.ErrNotFound
	}
	q.TotalUsed++
	return nil
}

func (s memQuestions) IncrementAnswers(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.questions[id]
	if !ok {
		return store.ErrNotFound
	}
	q.TotalAnswers++
	return nil
}

func (s memQuestions) InsertIgnoreDuplicates(ctx context.Context, questions []models.Question) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	existing := make(map[string]bool, len(s.m.questions))
	for _, q := range s.m.questions {
		existing[q.Content] = true
	}
	var n int64
	for _, q := range questions {
		if existing[q.Content] {
			continue
		}
		c := q
		s.m.questions[q.ID] = &c
		existing[q.Content] = true
		n++
	}
	return n, nil
}

// assignments

type memAssignments struct{ m *memStore }

func (s memAssignments) Create(ctx context.Context, assignment *models.Assignment) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.assignments[assignment.ID]; ok {
		return store.ErrDuplicate
	}
	for _, a := range s.m.assignments {
		if a.CompanionID == assignment.CompanionID &&
			a.ServiceDay == assignment.ServiceDay &&
			a.Status == models.AssignmentActive {
			return store.ErrDuplicate
		}
	}
	c := *assignment
	s.m.assignments[assignment.ID] = &c
	return nil
}

func (s memAssignments) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.assignments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s memAssignments) FindActive(ctx context.Context, companionID, serviceDay string) (*models.Assignment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, a := range s.m.assignments {
		if a.CompanionID == companionID && a.ServiceDay == serviceDay && a.Status == models.AssignmentActive {
			c := *a
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memAssignments) SetStatus(ctx context.Context, id, status string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.assignments[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s memAssignments) SetCompanion(ctx context.Context, id, companionID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.assignments[id]
	if !ok {
		return store.ErrNotFound
	}
	a.CompanionID = companionID
	return nil
}

func (s memAssignments) UpsertAnswer(ctx context.Context, answer *models.Answer) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, a := range s.m.answers {
		if a.AssignmentID == answer.AssignmentID && a.UserID == answer.UserID {
			a.Content = answer.Content
			a.UpdatedAt = answer.UpdatedAt
			return false, nil
		}
	}
	c := *answer
	s.m.answers[answer.ID] = &c
	return true, nil
}

func (s memAssignments) ListAnswers(ctx context.Context, assignmentID string) ([]models.Answer, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Answer
	for _, a := range s.m.answers {
		if a.AssignmentID == assignmentID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s memAssignments) CountAnswers(ctx context.Context, assignmentID string) (int, error) {
	answers, _ := s.ListAnswers(ctx, assignmentID)
	return len(answers), nil
}

func (s memAssignments) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.conversations {
		if c.AssignmentID == conversation.AssignmentID {
			return store.ErrDuplicate
		}
	}
	c := *conversation
	s.m.conversations[conversation.ID] = &c
	return nil
}

func (s memAssignments) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (s memAssignments) GetConversationByAssignment(ctx context.Context, assignmentID string) (*models.Conversation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.conversations {
		if c.AssignmentID == assignmentID {
			cc := *c
			return &cc, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memAssignments) ListCompleted(ctx context.Context, companionIDs []string, limit, offset int) ([]models.Assignment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	wanted := make(map[string]bool, len(companionIDs))
	for _, id := range companionIDs {
		wanted[id] = true
	}
	var out []models.Assignment
	for _, a := range s.m.assignments {
		if a.Status == models.AssignmentCompleted && wanted[a.CompanionID] {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].ServiceDay, out[j].ServiceDay) > 0 })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memAssignments) FindAnswerless(ctx context.Context, serviceDay string) ([]models.Assignment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.m.assignments {
		if a.Status != models.AssignmentActive || a.ServiceDay != serviceDay {
			continue
		}
		count := 0
		for _, ans := range s.m.answers {
			if ans.AssignmentID == a.ID {
				count++
			}
		}
		if count < 2 {
			out = append(out, *a)
		}
	}
	return out, nil
}

// share tokens

type memShareTokens struct{ m *memStore }

func (s memShareTokens) Create(ctx context.Context, token *models.ShareToken) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.shareTokens[token.Token]; ok {
		return store.ErrDuplicate
	}
	c := *token
	s.m.shareTokens[token.Token] = &c
	return nil
}

func (s memShareTokens) GetByToken(ctx context.Context, token string) (*models.ShareToken, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.shareTokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (s memShareTokens) MarkUsed(ctx context.Context, token, companionID string, usedAt time.Time) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.shareTokens[token]
	if !ok || t.Status != models.ShareTokenPending {
		return false, nil
	}
	t.Status = models.ShareTokenUsed
	t.CompanionID = &companionID
	t.UsedAt = &usedAt
	return true, nil
}

func (s memShareTokens) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for _, t := range s.m.shareTokens {
		if t.Status == models.ShareTokenPending && t.ExpiresAt.Before(now) {
			t.Status = models.ShareTokenExpired
			n++
		}
	}
	return n, nil
}

// stats

type memStats struct{ m *memStore }

func (s memStats) Increment(ctx context.Context, date, field string, delta int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	st, ok := s.m.stats[date]
	if !ok {
		st = &models.DailyStat{Date: date}
		s.m.stats[date] = st
	}
	switch field {
	case store.StatPersonalizedQuestions:
		st.PersonalizedQuestions += delta
	case store.StatRandomQuestions:
		st.RandomQuestions += delta
	case store.StatTotalAnswers:
		st.TotalAnswers += delta
	case store.StatCompletedGates:
		st.CompletedGates += delta
	case store.StatShareTokensCreated:
		st.ShareTokensCreated += delta
	case store.StatShareTokensUsed:
		st.ShareTokensUsed += delta
	}
	return nil
}

func (s memStats) Get(ctx context.Context, date string) (*models.DailyStat, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	st, ok := s.m.stats[date]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *st
	return &c, nil
}
