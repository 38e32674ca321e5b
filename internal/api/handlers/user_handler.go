package handlers

import (
	"net/http"

	"github.com/isdelr/rockhound-be/internal/services"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// GetProfile returns the user with level progress and achievements.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrFail(w, r)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetAchievements returns the caller's achievements.
func (h *UserHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrFail(w, r)
	if !ok {
		return
	}
	achievements, err := h.service.GetAchievements(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load achievements")
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}
