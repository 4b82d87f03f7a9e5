package handlers

import (
	"net/http"

	"maum-baedal-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AdminHandler exposes operational endpoints: question pool health,
// recovery, cleanup jobs and broadcasts.
type AdminHandler struct {
	questionService   *services.QuestionService
	assignmentService *services.AssignmentService
	companionService  *services.CompanionService
	shareTokenService *services.ShareTokenService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	questionService *services.QuestionService,
	assignmentService *services.AssignmentService,
	companionService *services.CompanionService,
	shareTokenService *services.ShareTokenService,
) *AdminHandler {
	return &AdminHandler{
		questionService:   questionService,
		assignmentService: assignmentService,
		companionService:  companionService,
		shareTokenService: shareTokenService,
	}
}

// QuestionHealth handles GET /api/v1/admin/questions/health
func (h *AdminHandler) QuestionHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.questionService.CheckHealth(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to check question pool")
		return
	}
	respondJSON(w, http.StatusOK, health)
}

// RecoverQuestions handles POST /api/v1/admin/questions/recover
func (h *AdminHandler) RecoverQuestions(w http.ResponseWriter, r *http.Request) {
	result, err := h.questionService.EnsureAvailable(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to recover question pool")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CleanupResponse reports how many rows each cleanup touched.
type CleanupResponse struct {
	ExpiredCompanions int64 `json:"expired_companions"`
	ExpiredTokens     int64 `json:"expired_tokens"`
}

// Cleanup handles POST /api/v1/admin/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	companions, err := h.companionService.CleanupExpired(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to clean up companions")
		return
	}
	tokens, err := h.shareTokenService.Cleanup(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to clean up share tokens")
		return
	}
	respondJSON(w, http.StatusOK, CleanupResponse{
		ExpiredCompanions: companions,
		ExpiredTokens:     tokens,
	})
}

// BroadcastResponse reports how many users were notified.
type BroadcastResponse struct {
	Notified int `json:"notified"`
}

// BroadcastDaily handles POST /api/v1/admin/broadcast/daily
func (h *AdminHandler) BroadcastDaily(w http.ResponseWriter, r *http.Request) {
	count, err := h.assignmentService.BroadcastDaily(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to broadcast")
		return
	}
	log.Info().Int("notified", count).Msg("Daily broadcast sent")
	respondJSON(w, http.StatusOK, BroadcastResponse{Notified: count})
}

// BroadcastReminder handles POST /api/v1/admin/broadcast/reminder
func (h *AdminHandler) BroadcastReminder(w http.ResponseWriter, r *http.Request) {
	count, err := h.assignmentService.BroadcastReminder(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to broadcast")
		return
	}
	log.Info().Int("notified", count).Msg("Answer reminder sent")
	respondJSON(w, http.StatusOK, BroadcastResponse{Notified: count})
}
