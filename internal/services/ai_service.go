package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/isdelr/rockhound-be/internal/ai"
	"github.com/isdelr/rockhound-be/internal/models"
)

const maxSpeechRunes = 1000

// SpecimenAI is the part of the AI client used for scans and narration.
type SpecimenAI interface {
	IdentifySpecimen(ctx context.Context, image []byte, mimeType string) (models.Identification, error)
	Speak(ctx context.Context, text string) ([]byte, error)
}

// AIServiceProvider defines the interface for AI-backed features.
type AIServiceProvider interface {
	Identify(ctx context.Context, userID string, image []byte, mimeType string) (models.Identification, error)
	Narrate(ctx context.Context, text string) ([]byte, error)
}

// AIService proxies identification and speech requests to the AI client so
// the API key never leaves the server.
type AIService struct {
	client SpecimenAI
	events EventServiceProvider
}

// NewAIService creates a new AIService.
func NewAIService(client SpecimenAI, events EventServiceProvider) *AIService {
	return &AIService{client: client, events: events}
}

// Identify classifies a specimen photo.
func (s *AIService) Identify(ctx context.Context, userID string, image []byte, mimeType string) (models.Identification, error) {
	if len(image) == 0 {
		return models.Identification{}, fmt.Errorf("%w: image is required", ErrValidation)
	}
	if mimeType != "" && !strings.HasPrefix(mimeType, "image/") {
		return models.Identification{}, fmt.Errorf("%w: unsupported media type %s", ErrValidation, mimeType)
	}

	id, err := s.client.IdentifySpecimen(ctx, image, mimeType)
	if err != nil {
		return models.Identification{}, err
	}
	s.events.CreateEvent("scan.completed", "info",
		fmt.Sprintf("Scanner matched %s (%.0f%% confidence).", id.Name, id.Confidence*100), &userID)
	return id, nil
}

// Narrate speaks text and returns a WAV file.
func (s *AIService) Narrate(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxSpeechRunes {
		return nil, fmt.Errorf("%w: text must be at most %d characters", ErrValidation, maxSpeechRunes)
	}

	pcm, err := s.client.Speak(ctx, text)
	if err != nil {
		return nil, err
	}
	return ai.EncodeWAV(pcm, ai.SpeechSampleRate, ai.SpeechChannels, ai.SpeechBitsPerSample), nil
}
