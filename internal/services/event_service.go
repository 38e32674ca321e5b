package services

import (
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/stream"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, userID *string) models.Event
	GetRecentEvents(limit int) []models.Event
}

// EventService publishes telemetry events to the stream hub, which also keeps
// the recent history.
type EventService struct {
	hub *stream.Hub
}

// NewEventService creates a new EventService.
func NewEventService(hub *stream.Hub) *EventService {
	return &EventService{hub: hub}
}

// CreateEvent publishes a new event.
func (s *EventService) CreateEvent(eventType, level, message string, userID *string) models.Event {
	event := models.Event{
		Type:    eventType,
		Level:   level,
		Message: message,
	}
	if userID != nil {
		event.UserID = *userID
	}
	return s.hub.Publish(event)
}

// GetRecentEvents returns the most recent events, newest first.
func (s *EventService) GetRecentEvents(limit int) []models.Event {
	return s.hub.Recent(limit)
}
