package handlers

import (
	"net/http"
	"strconv"

	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ConversationHandler serves revealed conversations and history.
type ConversationHandler struct {
	assignmentService *services.AssignmentService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(assignmentService *services.AssignmentService) *ConversationHandler {
	return &ConversationHandler{assignmentService: assignmentService}
}

// ConversationResponse is the GET /api/v1/conversation/{id} payload.
type ConversationResponse struct {
	ID         string               `json:"id"`
	ServiceDay string               `json:"service_day"`
	Question   QuestionResponse     `json:"question"`
	Answers    []ConversationAnswer `json:"answers"`
}

// ConversationAnswer is one revealed answer with its author.
type ConversationAnswer struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Label    string `json:"label,omitempty"`
	Content  string `json:"content"`
}

// GetConversation handles GET /api/v1/conversation/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID := chi.URLParam(r, "id")

	view, err := h.assignmentService.GetConversation(r.Context(), conversationID, userID)
	if err != nil {
		respondServiceError(w, err, "Failed to load conversation")
		return
	}

	resp := ConversationResponse{
		ID:         view.Conversation.ID,
		ServiceDay: view.Assignment.ServiceDay,
		Question: QuestionResponse{
			ID:       view.Question.ID,
			Content:  view.Question.Content,
			Category: view.Question.Category,
		},
	}
	for _, a := range view.Answers {
		ca := ConversationAnswer{UserID: a.UserID, Content: a.Content}
		if u, ok := view.Members[a.UserID]; ok {
			ca.Nickname = u.Nickname
			ca.Label = u.Label
		}
		resp.Answers = append(resp.Answers, ca)
	}
	respondJSON(w, http.StatusOK, resp)
}

// HistoryItemResponse is one entry of GET /api/v1/history.
type HistoryItemResponse struct {
	AssignmentID   string           `json:"assignment_id"`
	ServiceDay     string           `json:"service_day"`
	Question       QuestionResponse `json:"question"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

// GetHistory handles GET /api/v1/history
func (h *ConversationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.assignmentService.History(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, err, "Failed to load history")
		return
	}

	resp := make([]HistoryItemResponse, 0, len(items))
	for _, item := range items {
		entry := HistoryItemResponse{
			AssignmentID:   item.Assignment.ID,
			ServiceDay:     item.Assignment.ServiceDay,
			ConversationID: item.ConversationID,
		}
		if item.Question != nil {
			entry.Question = QuestionResponse{
				ID:       item.Question.ID,
				Content:  item.Question.Content,
				Category: item.Question.Category,
			}
		}
		resp = append(resp, entry)
	}
	respondJSON(w, http.StatusOK, resp)
}
