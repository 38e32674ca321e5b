package models

import "time"

// Event represents a telemetry event streamed to dashboards.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "specimen.logged", "system.scan"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	UserID    string    `json:"userId,omitempty"`
	Mock      bool      `json:"mock,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
