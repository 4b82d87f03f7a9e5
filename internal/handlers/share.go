package handlers

import (
	"encoding/json"
	"net/http"

	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/models"
	"maum-baedal-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ShareHandler handles share links for solo assignments.
type ShareHandler struct {
	assignmentService *services.AssignmentService
	shareTokenService *services.ShareTokenService
}

// NewShareHandler creates a new share handler
func NewShareHandler(assignmentService *services.AssignmentService, shareTokenService *services.ShareTokenService) *ShareHandler {
	return &ShareHandler{
		assignmentService: assignmentService,
		shareTokenService: shareTokenService,
	}
}

// CreateShareRequest represents a share link creation
type CreateShareRequest struct {
	AssignmentID string  `json:"assignment_id"`
	Message      *string `json:"message,omitempty"`
}

// CreateShare handles POST /api/v1/share
func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AssignmentID == "" {
		respondError(w, "assignment_id is required", http.StatusBadRequest)
		return
	}

	if err := h.assignmentService.CreateShareGate(r.Context(), req.AssignmentID, userID); err != nil {
		respondServiceError(w, err, "Failed to create share link")
		return
	}

	link, err := h.shareTokenService.Create(r.Context(), req.AssignmentID, userID, req.Message)
	if err != nil {
		respondServiceError(w, err, "Failed to create share link")
		return
	}
	respondJSON(w, http.StatusOK, link)
}

// SharedViewResponse is the public preview behind a share link.
type SharedViewResponse struct {
	AssignmentID  string           `json:"assignment_id"`
	Question      QuestionResponse `json:"question"`
	CreatorName   string           `json:"creator_name"`
	CreatorAnswer string           `json:"creator_answer,omitempty"`
	Message       *string          `json:"message,omitempty"`
}

// PreviewShared handles GET /api/v1/share/join/{token}
func (h *ShareHandler) PreviewShared(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	view, err := h.assignmentService.SharedPreview(r.Context(), token)
	if err != nil {
		respondServiceError(w, err, "Failed to load shared question")
		return
	}
	respondJSON(w, http.StatusOK, sharedViewResponse(view))
}

// JoinSharedRequest is the payload for answering via a share link.
type JoinSharedRequest struct {
	Content string `json:"content"`
	Label   string `json:"label"`
}

// JoinSharedResponse is the conversion outcome.
type JoinSharedResponse struct {
	Success        bool              `json:"success"`
	CompanionID    string            `json:"companion_id"`
	ConversationID string            `json:"conversation_id"`
	GateStatus     models.GateStatus `json:"gate_status"`
	RedirectURL    string            `json:"redirect_url"`
}

// JoinShared handles POST /api/v1/share/join/{token}. The caller answers
// the shared question and becomes the creator's companion in one step.
func (h *ShareHandler) JoinShared(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := chi.URLParam(r, "token")

	var req JoinSharedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.assignmentService.ConvertSoloToCompanion(r.Context(), token, userID, req.Content, req.Label)
	if err != nil {
		respondServiceError(w, err, "Failed to join shared question")
		return
	}

	respondJSON(w, http.StatusOK, JoinSharedResponse{
		Success:        true,
		CompanionID:    result.Companion.ID,
		ConversationID: result.ConversationID,
		GateStatus:     models.GateOpened,
		RedirectURL:    "/conversation/" + result.ConversationID,
	})
}

// AnswerSharedRequest is the payload for answering a shared assignment
// directly by id. The share token still gates the conversion.
type AnswerSharedRequest struct {
	Token   string `json:"token"`
	Content string `json:"content"`
	Label   string `json:"label"`
}

// AnswerShared handles POST /api/v1/share/{assignmentId}/answer
func (h *ShareHandler) AnswerShared(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	assignmentID := chi.URLParam(r, "assignmentId")

	var req AnswerSharedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		respondError(w, "token is required", http.StatusBadRequest)
		return
	}

	token, err := h.shareTokenService.Validate(r.Context(), req.Token)
	if err != nil {
		respondServiceError(w, err, "Failed to validate share link")
		return
	}
	if token.AssignmentID != assignmentID {
		respondError(w, "share link does not match this assignment", http.StatusBadRequest)
		return
	}

	result, err := h.assignmentService.ConvertSoloToCompanion(r.Context(), req.Token, userID, req.Content, req.Label)
	if err != nil {
		respondServiceError(w, err, "Failed to answer shared question")
		return
	}

	respondJSON(w, http.StatusOK, JoinSharedResponse{
		Success:        true,
		CompanionID:    result.Companion.ID,
		ConversationID: result.ConversationID,
		GateStatus:     models.GateOpened,
		RedirectURL:    "/conversation/" + result.ConversationID,
	})
}

// GetSharedAssignment handles GET /api/v1/share/{assignmentId}
func (h *ShareHandler) GetSharedAssignment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	assignmentID := chi.URLParam(r, "assignmentId")

	view, err := h.assignmentService.SharedAssignment(r.Context(), assignmentID, userID)
	if err != nil {
		respondServiceError(w, err, "Failed to load shared assignment")
		return
	}
	respondJSON(w, http.StatusOK, sharedViewResponse(view))
}

func sharedViewResponse(view *services.SharedView) SharedViewResponse {
	resp := SharedViewResponse{
		AssignmentID: view.AssignmentID,
		Question: QuestionResponse{
			ID:       view.Question.ID,
			Content:  view.Question.Content,
			Category: view.Question.Category,
		},
		CreatorName: view.CreatorName,
		Message:     view.Message,
	}
	if view.CreatorAnswer != nil {
		resp.CreatorAnswer = view.CreatorAnswer.Content
	}
	return resp
}
