package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/rockhound-be/internal/services"
)

// AdminHandler serves the admin dashboard.
type AdminHandler struct {
	service services.AdminServiceProvider
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service services.AdminServiceProvider) *AdminHandler {
	return &AdminHandler{service: service}
}

// GetStats returns the cached dashboard statistics.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute stats")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=0")
	writeJSON(w, http.StatusOK, stats)
}

// GetRecentEvents handles the request to get recent activity/events.
func (h *AdminHandler) GetRecentEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}
	writeJSON(w, http.StatusOK, h.service.GetRecentEvents(limit))
}
