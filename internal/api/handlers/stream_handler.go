package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/rockhound-be/internal/stream"
	"github.com/rs/zerolog/log"
)

// DefaultHeartbeat is the SSE keep-alive period used when none is configured.
const DefaultHeartbeat = 15 * time.Second

// StreamHandler serves live telemetry as Server-Sent Events and over websockets.
type StreamHandler struct {
	hub       *stream.Hub
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// NewStreamHandler creates a new StreamHandler. Websocket upgrades are only
// accepted from allowedOrigins; requests without an Origin header pass.
func NewStreamHandler(hub *stream.Hub, heartbeat time.Duration, allowedOrigins []string) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &StreamHandler{
		hub:       hub,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// SSE streams hub events until the client disconnects. ?type= filters by
// event type prefix.
func (h *StreamHandler) SSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := h.hub.Subscribe(r.URL.Query().Get("type"), 32)
	defer h.hub.Unsubscribe(client)

	fmt.Fprint(w, "retry: 3000\n: connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-client.Send:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to encode stream event")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// WebSocket upgrades the connection and mirrors hub events to it.
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	c := stream.NewWSConn(h.hub, conn, r.URL.Query().Get("type"))
	go c.WritePump()
	go c.ReadPump()
}
