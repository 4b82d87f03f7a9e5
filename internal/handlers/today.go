package handlers

import (
	"net/http"

	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/serviceday"
	"maum-baedal-backend/internal/services"
)

// TodayHandler serves the daily assignment view.
type TodayHandler struct {
	assignmentService *services.AssignmentService
}

// NewTodayHandler creates a new today handler
func NewTodayHandler(assignmentService *services.AssignmentService) *TodayHandler {
	return &TodayHandler{assignmentService: assignmentService}
}

// QuestionResponse is the question as shown to users.
type QuestionResponse struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// AnswerResponse is one answer as shown to users.
type AnswerResponse struct {
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updated_at"`
}

// PartnerResponse is the minimal partner profile in the today view.
type PartnerResponse struct {
	Nickname string  `json:"nickname"`
	Label    string  `json:"label,omitempty"`
	Image    *string `json:"image,omitempty"`
}

// TimeLeftResponse is the remaining service-day time with display text.
type TimeLeftResponse struct {
	serviceday.TimeLeft
	Formatted string `json:"formatted"`
}

// TodayResponse is the GET /api/v1/today payload.
type TodayResponse struct {
	AssignmentID   string            `json:"assignment_id"`
	ServiceDay     string            `json:"service_day"`
	Question       QuestionResponse  `json:"question"`
	GateStatus     models.GateStatus `json:"gate_status"`
	SoloMode       bool              `json:"solo_mode"`
	MyAnswer       *AnswerResponse   `json:"my_answer,omitempty"`
	PartnerAnswer  *AnswerResponse   `json:"partner_answer,omitempty"`
	Partner        *PartnerResponse  `json:"partner,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	CanAnswer      bool              `json:"can_answer"`
	CanShare       bool              `json:"can_share"`
	TimeLeft       TimeLeftResponse  `json:"time_left"`
}

// GetToday handles GET /api/v1/today
func (h *TodayHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	view, err := h.assignmentService.GetOrCreateToday(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to load today's assignment")
		return
	}

	respondJSON(w, http.StatusOK, buildTodayResponse(view, userID))
}

func buildTodayResponse(view *services.TodayView, userID string) TodayResponse {
	resp := TodayResponse{
		AssignmentID: view.Assignment.ID,
		ServiceDay:   view.Assignment.ServiceDay,
		Question: QuestionResponse{
			ID:       view.Question.ID,
			Content:  view.Question.Content,
			Category: view.Question.Category,
		},
		GateStatus: view.GateStatus,
		SoloMode:   view.Companion.IsSolo(),
		CanAnswer:  view.Assignment.Status == models.AssignmentActive && !view.TimeLeft.IsExpired,
		TimeLeft: TimeLeftResponse{
			TimeLeft:  view.TimeLeft,
			Formatted: serviceday.FormatLeft(view.TimeLeft),
		},
	}

	if my := view.MyAnswer(userID); my != nil {
		resp.MyAnswer = answerResponse(my)
		// Only an answered solo assignment can be shared out.
		resp.CanShare = resp.SoloMode && resp.CanAnswer
	}

	if view.Partner != nil {
		resp.Partner = &PartnerResponse{
			Nickname: view.Partner.Nickname,
			Label:    view.Partner.Label,
			Image:    view.Partner.Image,
		}
	}

	if view.Conversation != nil {
		resp.ConversationID = view.Conversation.ID
		// Partner answers stay hidden until the gate has opened.
		if pa := view.PartnerAnswer(userID); pa != nil {
			resp.PartnerAnswer = answerResponse(pa)
		}
	}

	return resp
}

func answerResponse(a *models.Answer) *AnswerResponse {
	return &AnswerResponse{
		UserID:    a.UserID,
		Content:   a.Content,
		UpdatedAt: a.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
