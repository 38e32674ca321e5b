package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/isdelr/rockhound-be/internal/services"
)

const maxImageBytes = 10 << 20

// AIHandler exposes identification, narration and the daily bounty.
type AIHandler struct {
	service services.AIServiceProvider
	bounty  services.BountyServiceProvider
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(service services.AIServiceProvider, bounty services.BountyServiceProvider) *AIHandler {
	return &AIHandler{service: service, bounty: bounty}
}

// IdentifyPayload is the JSON form of an identification request. Image may be
// plain base64 or a data URL.
type IdentifyPayload struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

// SpeechPayload is the text to narrate.
type SpeechPayload struct {
	Text string `json:"text"`
}

// Identify classifies a specimen photo sent as multipart field "image" or as JSON.
func (h *AIHandler) Identify(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrFail(w, r)
	if !ok {
		return
	}

	image, mimeType, err := readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.Identify(r.Context(), claims.UserID, image, mimeType)
	if err != nil {
		writeServiceError(w, r, err, "Failed to identify specimen")
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return nil, "", fmt.Errorf("invalid multipart form")
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, "", fmt.Errorf("missing image field")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read image")
		}
		if len(data) > maxImageBytes {
			return nil, "", fmt.Errorf("image is too large")
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(data)
		}
		return data, mimeType, nil
	}

	var payload IdentifyPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		return nil, "", err
	}
	raw, mimeType := payload.Image, payload.MimeType
	// data:image/png;base64,....
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		meta, body, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(meta, ";base64")
		}
		raw = body
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("image is not valid base64")
	}
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// Speech narrates text and returns audio/wav.
func (h *AIHandler) Speech(w http.ResponseWriter, r *http.Request) {
	var payload SpeechPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wav, err := h.service.Narrate(r.Context(), payload.Text)
	if err != nil {
		writeServiceError(w, r, err, "Failed to synthesize speech")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// Bounty returns today's target mineral.
func (h *AIHandler) Bounty(w http.ResponseWriter, r *http.Request) {
	b, err := h.bounty.Today(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to load bounty")
		return
	}
	writeJSON(w, http.StatusOK, b)
}
