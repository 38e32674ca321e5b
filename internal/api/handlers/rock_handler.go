package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/rockhound-be/internal/services"
)

// RockHandler handles HTTP requests for the caller's specimen collection.
type RockHandler struct {
	service services.RockServiceProvider
}

// NewRockHandler creates a new RockHandler.
func NewRockHandler(service services.RockServiceProvider) *RockHandler {
	return &RockHandler{service: service}
}

// GetAll lists the caller's specimens, newest first. Supports ?limit= and ?offset=.
func (h *RockHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrFail(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rocks, err := h.service.GetRocks(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve specimens")
		return
	}
	writeJSON(w, http.StatusOK, rocks)
}

// Create logs a new specimen and awards XP.
func (h *RockHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrFail(w, r)
	if !ok {
		return
	}
	var input services.RockInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.CreateRock(r.Context(), claims.UserID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to save specimen")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Delete removes one of the caller's specimens.
func (h *RockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrFail(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRock(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete specimen")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
