package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/rockhound-be/internal/stream"
	"github.com/stretchr/testify/assert"
)

func TestNewStreamHandler_DefaultHeartbeat(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		h := NewStreamHandler(stream.NewHub(1), d, nil)
		assert.Equal(t, DefaultHeartbeat, h.heartbeat)
	}
}

func TestSSE_ZeroHeartbeatServes(t *testing.T) {
	hub := stream.NewHub(1)
	go hub.Run()
	defer hub.Stop()

	h := NewStreamHandler(hub, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.SSE(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), ": connected"))
}
