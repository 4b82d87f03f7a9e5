package handlers

import (
	"encoding/json"
	"net/http"

	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/services"
)

// AnswerHandler handles answer submissions.
type AnswerHandler struct {
	assignmentService *services.AssignmentService
}

// NewAnswerHandler creates a new answer handler
func NewAnswerHandler(assignmentService *services.AssignmentService) *AnswerHandler {
	return &AnswerHandler{assignmentService: assignmentService}
}

// SubmitAnswerRequest represents an answer submission
type SubmitAnswerRequest struct {
	AssignmentID string `json:"assignment_id"`
	Content      string `json:"content"`
}

// SubmitAnswerResponse is the submission outcome.
type SubmitAnswerResponse struct {
	Success        bool              `json:"success"`
	GateStatus     models.GateStatus `json:"gate_status"`
	ConversationID string            `json:"conversation_id,omitempty"`
	RedirectURL    string            `json:"redirect_url,omitempty"`
}

// SubmitAnswer handles POST /api/v1/answer
func (h *AnswerHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AssignmentID == "" {
		respondError(w, "assignment_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.assignmentService.SubmitAnswer(r.Context(), req.AssignmentID, userID, req.Content)
	if err != nil {
		respondServiceError(w, err, "Failed to submit answer")
		return
	}

	resp := SubmitAnswerResponse{
		Success:        true,
		GateStatus:     result.GateStatus,
		ConversationID: result.ConversationID,
	}
	if result.ConversationID != "" {
		resp.RedirectURL = "/conversation/" + result.ConversationID
	}
	respondJSON(w, http.StatusOK, resp)
}
