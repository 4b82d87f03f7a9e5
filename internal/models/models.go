package models

import "time"

// Companion status values
const (
	CompanionPending   = "pending"
	CompanionActive    = "active"
	CompanionSolo      = "solo"
	CompanionConverted = "converted"
)

// Assignment status values
const (
	AssignmentActive    = "active"
	AssignmentCompleted = "completed"
)

// ShareToken status values
const (
	ShareTokenPending = "pending"
	ShareTokenUsed    = "used"
	ShareTokenExpired = "expired"
)

// GateStatus is the derived reveal state of an assignment from one user's
// point of view. It is never persisted.
type GateStatus string

const (
	GateNeedMyAnswer   GateStatus = "need_my_answer"
	GateWaitingPartner GateStatus = "waiting_partner"
	GateOpened         GateStatus = "opened"
	GateSoloMode       GateStatus = "solo_mode"
)

// User represents a user in the system
type User struct {
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"`
	Nickname  string    `json:"nickname"`
	Label     string    `json:"label,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	Image     *string   `json:"image,omitempty"`
	Interests []string  `json:"interests"`
	PushToken *string   `json:"push_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Companion represents a one-to-one relationship between two users.
// A solo companion has User1ID == User2ID and status "solo"; a pending
// companion has only User1ID set and carries an invite code.
type Companion struct {
	ID          string     `json:"id"`
	User1ID     string     `json:"user1_id"`
	User2ID     *string    `json:"user2_id,omitempty"`
	Status      string     `json:"status"`
	InviteCode  *string    `json:"invite_code,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsSolo reports whether the companion is the synthetic self-pair placeholder.
func (c *Companion) IsSolo() bool {
	return c.Status == CompanionSolo
}

// HasMember reports whether userID is one of the companion's members.
func (c *Companion) HasMember(userID string) bool {
	if c.User1ID == userID {
		return true
	}
	return c.User2ID != nil && *c.User2ID == userID
}

// PartnerOf returns the other member's id, or "" if there is none.
func (c *Companion) PartnerOf(userID string) string {
	if c.User1ID != userID {
		return c.User1ID
	}
	if c.User2ID != nil && *c.User2ID != userID {
		return *c.User2ID
	}
	return ""
}

// Question represents a daily question. Content is immutable; usage
// counters are bumped atomically on each use.
type Question struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	Difficulty   string    `json:"difficulty"`
	TotalUsed    int       `json:"total_used"`
	TotalAnswers int       `json:"total_answers"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Assignment binds one companion to one question for one service day.
type Assignment struct {
	ID          string    `json:"id"`
	CompanionID string    `json:"companion_id"`
	ServiceDay  string    `json:"service_day"`
	QuestionID  string    `json:"question_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Answer is one user's response to one assignment. At most one row exists
// per (assignment, user); resubmission updates in place.
type Answer struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversation is the revealed artifact created once an assignment has
// two answers. Exists iff the gate has opened.
type Conversation struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	IsPublic     bool      `json:"is_public"`
	CreatedAt    time.Time `json:"created_at"`
}

// ShareToken is a short-lived capability letting an outsider join its
// creator's pending relationship or shared solo assignment.
type ShareToken struct {
	ID           string     `json:"id"`
	Token        string     `json:"token"`
	AssignmentID string     `json:"assignment_id"`
	CreatorID    string     `json:"creator_id"`
	Message      *string    `json:"message,omitempty"`
	Status       string     `json:"status"`
	CompanionID  *string    `json:"companion_id,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DailyStat aggregates per-service-day counters.
type DailyStat struct {
	Date                  string `json:"date"`
	PersonalizedQuestions int    `json:"personalized_questions"`
	RandomQuestions       int    `json:"random_questions"`
	TotalAnswers          int    `json:"total_answers"`
	CompletedGates        int    `json:"completed_gates"`
	ShareTokensCreated    int    `json:"share_tokens_created"`
	ShareTokensUsed       int    `json:"share_tokens_used"`
}
