package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/rs/zerolog/log"
)

// Mirror receives a copy of every published event, e.g. a message broker.
type Mirror interface {
	Mirror(evt models.Event) error
}

// Client is one live subscriber (an SSE response or a WebSocket connection).
type Client struct {
	// Send delivers events to the subscriber. It is closed when the hub drops the client.
	Send chan models.Event

	// Filter is an event type prefix; empty receives everything.
	Filter string
}

func (c *Client) wants(evt models.Event) bool {
	return c.Filter == "" || strings.HasPrefix(evt.Type, c.Filter)
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound events for global broadcast.
	broadcast chan models.Event

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	done    chan struct{}
	stopped sync.Once

	mu      sync.RWMutex
	recent  []models.Event // ring of the latest events, oldest first
	keep    int
	mirrors []Mirror
}

// NewHub creates a new Hub that remembers the last keep events.
func NewHub(keep int, mirrors ...Mirror) *Hub {
	return &Hub{
		broadcast:  make(chan models.Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		keep:       keep,
		mirrors:    mirrors,
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Int("total_clients", len(h.clients)).Msg("Stream client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Debug().Int("total_clients", len(h.clients)).Msg("Stream client disconnected")
			}
		case evt := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(evt) {
					continue
				}
				select {
				case client.Send <- evt:
				default:
					// Slow consumer; drop it rather than stall everyone else.
					close(client.Send)
					delete(h.clients, client)
					log.Warn().Msg("Dropped slow stream client")
				}
			}
		}
	}
}

// Stop terminates Run and closes every client's Send channel.
func (h *Hub) Stop() {
	h.stopped.Do(func() { close(h.done) })
}

// Subscribe registers a new client. The caller must Unsubscribe when done.
func (h *Hub) Subscribe(filter string, buffer int) *Client {
	c := &Client{Send: make(chan models.Event, buffer), Filter: filter}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
	return c
}

// Unsubscribe removes a client registered with Subscribe.
func (h *Hub) Unsubscribe(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish stamps evt, records it, mirrors it and fans it out to subscribers.
func (h *Hub) Publish(evt models.Event) models.Event {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	if evt.Level == "" {
		evt.Level = "info"
	}

	h.mu.Lock()
	h.recent = append(h.recent, evt)
	if over := len(h.recent) - h.keep; over > 0 {
		h.recent = append(h.recent[:0:0], h.recent[over:]...)
	}
	h.mu.Unlock()

	for _, m := range h.mirrors {
		if err := m.Mirror(evt); err != nil {
			log.Warn().Err(err).Str("type", evt.Type).Msg("Failed to mirror event")
		}
	}

	select {
	case h.broadcast <- evt:
	case <-h.done:
	}
	return evt
}

// Recent returns up to limit of the latest events, newest first.
func (h *Hub) Recent(limit int) []models.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.recent) {
		limit = len(h.recent)
	}
	out := make([]models.Event, 0, limit)
	for i := len(h.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.recent[i])
	}
	return out
}
