package handlers

import (
	"encoding/json"
	"net/http"

	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService   *services.UserService
	avatarService *services.AvatarService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, avatarService *services.AvatarService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		avatarService: avatarService,
	}
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Nickname  string   `json:"nickname"`
	Interests []string `json:"interests"`
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if r.Body != nil {
		// Body is optional; an anonymous user needs no fields.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	user, err := h.userService.CreateUser(r.Context(), req.Nickname, req.Interests)
	if err != nil {
		respondServiceError(w, err, "Failed to create user")
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User created")
	respondJSON(w, http.StatusOK, user)
}

// GetProfile handles GET /api/v1/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to load profile")
		return
	}
	user.Token = ""
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfileRequest represents a profile update
type UpdateProfileRequest struct {
	Nickname  string   `json:"nickname"`
	Label     string   `json:"label"`
	Bio       *string  `json:"bio,omitempty"`
	Interests []string `json:"interests"`
}

// UpdateProfile handles PUT /api/v1/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, req.Nickname, req.Label, req.Bio, req.Interests)
	if err != nil {
		respondServiceError(w, err, "Failed to update profile")
		return
	}
	user.Token = ""
	respondJSON(w, http.StatusOK, user)
}

// PushTokenRequest represents a push token registration
type PushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/profile/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), userID, req.PushToken); err != nil {
		respondServiceError(w, err, "Failed to update push token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AvatarUploadRequest represents a request for an avatar upload URL
type AvatarUploadRequest struct {
	ContentType string `json:"content_type"`
}

// GetAvatarUploadURL handles POST /api/v1/profile/avatar
func (h *UserHandler) GetAvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	if h.avatarService == nil {
		respondError(w, "Avatar uploads are not configured", http.StatusServiceUnavailable)
		return
	}
	userID := middleware.GetUserID(r.Context())

	var req AvatarUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.avatarService.GetUploadURL(r.Context(), userID, req.ContentType)
	if err != nil {
		respondServiceError(w, err, "Failed to create upload URL")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
