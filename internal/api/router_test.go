package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/rockhound-be/internal/ai"
	"github.com/isdelr/rockhound-be/internal/auth"
	"github.com/isdelr/rockhound-be/internal/cache"
	"github.com/isdelr/rockhound-be/internal/config"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/repository"
	"github.com/isdelr/rockhound-be/internal/services"
	"github.com/isdelr/rockhound-be/internal/stream"
	"github.com/isdelr/rockhound-be/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAI struct{ err error }

func (f fakeAI) IdentifySpecimen(_ context.Context, image []byte, mimeType string) (models.Identification, error) {
	if f.err != nil {
		return models.Identification{}, f.err
	}
	return models.Identification{Name: "Quartz", Type: "mineral", RarityScore: 20, Rarity: "Common", Confidence: 0.9, Composition: []string{mimeType}}, nil
}

func (f fakeAI) Speak(context.Context, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte{0, 0, 1, 1}, nil
}

func (f fakeAI) DescribeFusion(context.Context, models.Rock, models.Rock, []string) (ai.FusionText, error) {
	return ai.FusionText{Name: "Fusionite", Description: "New."}, nil
}

func (f fakeAI) Illustrate(context.Context, string) ([]byte, string, error) {
	return nil, "", ai.ErrUnavailable
}

func (f fakeAI) SuggestBounty(_ context.Context, date string) (models.Bounty, error) {
	return models.Bounty{Date: date, Mineral: "Garnet", Hint: "Schist.", Source: "ai"}, nil
}

type testServer struct {
	handler http.Handler
	users   *services.UserService
	hub     *stream.Hub
}

func newTestServer(t *testing.T, aiClient fakeAI, rl config.RateLimitConfig) *testServer {
	t.Helper()

	cfg := &config.Config{
		Env:            "test",
		AllowedOrigins: []string{"http://localhost:5173"},
		RateLimit:      rl,
		Stream:         config.StreamConfig{Heartbeat: 20 * time.Millisecond},
		StatsCacheTTL:  time.Minute,
	}

	hub := stream.NewHub(50)
	go hub.Run()
	t.Cleanup(hub.Stop)

	store := repository.NewSQLiteStore(testutil.OpenInMemoryDB(t))
	c := cache.NewMemory(time.Minute)
	events := services.NewEventService(hub)
	users := services.NewUserService(store, events, c)
	rocks := services.NewRockService(store, events, c)

	handler := NewRouter(Dependencies{
		Config: cfg,
		Tokens: auth.NewManager("test-secret", time.Hour),
		Hub:    hub,
		Users:  users,
		Rocks:  rocks,
		Lab:    services.NewLabService(rocks, aiClient),
		AI:     services.NewAIService(aiClient, events),
		Bounty: services.NewBountyService(aiClient, c, events),
		Admin:  services.NewAdminService(store, c, cfg.StatsCacheTTL, nil, events),
	})
	return &testServer{handler: handler, users: users, hub: hub}
}

func defaultLimits() config.RateLimitConfig {
	return config.RateLimitConfig{RPS: 1000, Burst: 1000}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, name string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.Contains(t, rec.Header().Get("Set-Cookie"), auth.CookieName+"=")

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := rec.Result().Cookies()[0]
	assert.True(t, cookie.HttpOnly)

	// The cookie alone authenticates.
	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.AddCookie(cookie)
	prof := httptest.NewRecorder()
	s.handler.ServeHTTP(prof, req)
	require.Equal(t, http.StatusOK, prof.Code)
	p := decode[models.Profile](t, prof)
	assert.Equal(t, "alice", p.User.Username)
	assert.Equal(t, 1, p.Level)

	rec = s.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())
	for _, path := range []string{"/api/user/profile", "/api/rocks", "/api/admin/stats", "/api/stream", "/api/bounty"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRockLifecycle(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/rocks", alice, map[string]interface{}{
		"name": "Amethyst", "type": "mineral", "rarityScore": 70, "composition": []string{"SiO2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[services.SpecimenResult](t, rec)
	assert.Equal(t, 80, created.XPAwarded)
	assert.Equal(t, "Rare", created.Rock.Rarity)

	rec = s.do(t, http.MethodPost, "/api/rocks", alice, map[string]interface{}{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/rocks", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Rock](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/rocks?limit=5&offset=0", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/rocks/"+created.Rock.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/rocks/does-not-exist", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/rocks/"+created.Rock.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/achievements", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]models.Achievement](t, rec))
}

func TestLabFuse(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())
	tok := s.register(t, "carol")

	var ids []string
	for _, name := range []string{"Basalt", "Granite"} {
		rec := s.do(t, http.MethodPost, "/api/rocks", tok, map[string]interface{}{"name": name, "rarityScore": 50})
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[services.SpecimenResult](t, rec).Rock.ID)
	}

	rec := s.do(t, http.MethodPost, "/api/lab/fuse", tok, map[string]string{"rockA": ids[0], "rockB": ids[1]})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[services.SpecimenResult](t, rec)
	assert.Equal(t, "Fusionite", res.Rock.Name)
	assert.Equal(t, 60, res.Rock.RarityScore)

	rec = s.do(t, http.MethodPost, "/api/lab/fuse", tok, map[string]string{"rockA": ids[0], "rockB": ids[0]})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())
	user := s.register(t, "dave")

	rec := s.do(t, http.MethodGet, "/api/admin/stats", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, err := s.users.EnsureAdmin(context.Background(), config.AdminConfig{Email: "admin@rockhound.com", Username: "admin", Password: "admin"})
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@rockhound.com", "password": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	admin := decode[struct {
		Token string `json:"token"`
	}](t, rec).Token

	rec = s.do(t, http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.AdminStats](t, rec)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalAdmins)
	assert.Len(t, stats.DailyScans, 7)

	rec = s.do(t, http.MethodGet, "/api/admin/events?limit=1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Event](t, rec), 1)
}

func TestIdentifyAndSpeech(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())
	tok := s.register(t, "erin")

	png := []byte("\x89PNG\r\n\x1a\nfakeimage")
	rec := s.do(t, http.MethodPost, "/api/identify", tok, map[string]string{
		"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := decode[models.Identification](t, rec)
	assert.Equal(t, "Quartz", id.Name)
	assert.Equal(t, []string{"image/png"}, id.Composition, "mime type taken from the data URL")

	rec = s.do(t, http.MethodPost, "/api/identify", tok, map[string]string{"image": "%%%"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Multipart upload
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "rock.png")
	require.NoError(t, err)
	fw.Write(png)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/identify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	mrec := httptest.NewRecorder()
	s.handler.ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code, mrec.Body.String())
	assert.Equal(t, []string{"image/png"}, decode[models.Identification](t, mrec).Composition)

	rec = s.do(t, http.MethodPost, "/api/speech", tok, map[string]string{"text": "Hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", rec.Body.String()[:4])

	rec = s.do(t, http.MethodGet, "/api/bounty", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Garnet", decode[models.Bounty](t, rec).Mineral)
}

func TestAIErrorsMapToStatus(t *testing.T) {
	cases := map[error]int{
		ai.ErrUnavailable:   http.StatusServiceUnavailable,
		ai.ErrRateLimited:   http.StatusTooManyRequests,
		ai.ErrEmptyResponse: http.StatusBadGateway,
	}
	for aiErr, status := range cases {
		s := newTestServer(t, fakeAI{err: aiErr}, defaultLimits())
		tok := s.register(t, "frank")
		rec := s.do(t, http.MethodPost, "/api/speech", tok, map[string]string{"text": "Hello"})
		assert.Equal(t, status, rec.Code, aiErr.Error())
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, fakeAI{}, config.RateLimitConfig{RPS: 0.001, Burst: 2})
	payload := map[string]string{"email": "x@example.com", "password": "whatever"}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/login", "", payload).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/login", "", payload).Code)
	rec := s.do(t, http.MethodPost, "/auth/login", "", payload)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	s := newTestServer(t, fakeAI{}, config.RateLimitConfig{RPS: 0.001, Burst: 1})
	payload := map[string]string{"email": "x@example.com", "password": "whatever"}

	limited := 0
	for i := 0; i < 5; i++ {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 4, limited, "rotating forwarded headers must not reset the bucket")
}

func TestSSEStream(t *testing.T) {
	s := newTestServer(t, fakeAI{}, defaultLimits())
	tok := s.register(t, "grace")

	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream?type=specimen.", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	// Wait for the connection preamble so the subscription is registered.
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ": connected") {
			break
		}
	}

	rec := s.do(t, http.MethodPost, "/api/rocks", tok, map[string]interface{}{"name": "Jasper", "rarityScore": 10})
	require.Equal(t, http.StatusCreated, rec.Code)

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: ") && eventLine != "":
			dataLine = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, "specimen.logged", eventLine)
	var evt models.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &evt))
	assert.Contains(t, evt.Message, "Jasper")
}
