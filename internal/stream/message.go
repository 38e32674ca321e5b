package stream

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEventMessage wraps a telemetry event for a websocket client.
func NewEventMessage(payload interface{}) Message {
	return Message{Action: "event", Payload: payload}
}

// NewErrorMessage builds an error reply.
func NewErrorMessage(msg string) Message {
	return Message{Action: "error", Payload: map[string]string{"message": msg}}
}
