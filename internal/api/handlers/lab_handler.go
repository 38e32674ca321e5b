package handlers

import (
	"net/http"

	"github.com/isdelr/rockhound-be/internal/services"
)

// LabHandler handles specimen fusion.
type LabHandler struct {
	service services.LabServiceProvider
}

// NewLabHandler creates a new LabHandler.
func NewLabHandler(service services.LabServiceProvider) *LabHandler {
	return &LabHandler{service: service}
}

// FusePayload names the two specimens to combine.
type FusePayload struct {
	RockA string `json:"rockA"`
	RockB string `json:"rockB"`
}

// Fuse combines two of the caller's specimens into a new one.
func (h *LabHandler) Fuse(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrFail(w, r)
	if !ok {
		return
	}
	var payload FusePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Fuse(r.Context(), claims.UserID, payload.RockA, payload.RockB)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fuse specimens")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
