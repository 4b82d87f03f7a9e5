package handlers

import (
	"encoding/json"
	"net/http"

	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/services"
)

// CompanionHandler handles companion invites and connections.
type CompanionHandler struct {
	companionService *services.CompanionService
}

// NewCompanionHandler creates a new companion handler
func NewCompanionHandler(companionService *services.CompanionService) *CompanionHandler {
	return &CompanionHandler{companionService: companionService}
}

// CreateInviteRequest represents an invite creation
type CreateInviteRequest struct {
	Label string `json:"label"`
}

// CreateInvite handles POST /api/v1/companions/invite
func (h *CompanionHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateInviteRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	invite, err := h.companionService.CreateInvite(r.Context(), userID, req.Label)
	if err != nil {
		respondServiceError(w, err, "Failed to create invite")
		return
	}
	respondJSON(w, http.StatusOK, invite)
}

// ConnectRequest represents a connection via invite code
type ConnectRequest struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Connect handles POST /api/v1/companions/connect
func (h *CompanionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		respondError(w, "code is required", http.StatusBadRequest)
		return
	}

	companion, err := h.companionService.ConnectWithInvite(r.Context(), req.Code, userID, req.Label)
	if err != nil {
		respondServiceError(w, err, "Failed to connect")
		return
	}
	respondJSON(w, http.StatusOK, companion)
}

// GetCompanion handles GET /api/v1/companions
func (h *CompanionHandler) GetCompanion(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	companion, err := h.companionService.GetActiveFor(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to load companion")
		return
	}
	respondJSON(w, http.StatusOK, companion)
}
