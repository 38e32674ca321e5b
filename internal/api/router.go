package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/rockhound-be/internal/api/handlers"
	"github.com/isdelr/rockhound-be/internal/auth"
	"github.com/isdelr/rockhound-be/internal/config"
	"github.com/isdelr/rockhound-be/internal/logger"
	"github.com/isdelr/rockhound-be/internal/services"
	"github.com/isdelr/rockhound-be/internal/stream"
	"github.com/rs/zerolog/log"
)

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	Config *config.Config
	Tokens *auth.Manager
	Hub    *stream.Hub

	Users  services.UserServiceProvider
	Rocks  services.RockServiceProvider
	Lab    services.LabServiceProvider
	AI     services.AIServiceProvider
	Bounty services.BountyServiceProvider
	Admin  services.AdminServiceProvider

	// Ping checks the backing store for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()
	cfg := deps.Config

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limiter := NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens, cfg.IsProduction())
	userHandler := handlers.NewUserHandler(deps.Users)
	rockHandler := handlers.NewRockHandler(deps.Rocks)
	labHandler := handlers.NewLabHandler(deps.Lab)
	aiHandler := handlers.NewAIHandler(deps.AI, deps.Bounty)
	adminHandler := handlers.NewAdminHandler(deps.Admin)
	streamHandler := handlers.NewStreamHandler(deps.Hub, cfg.Stream.Heartbeat, cfg.AllowedOrigins)

	r.Get("/healthz", healthHandler(deps.Ping))

	r.Route("/auth", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.Tokens.Middleware)

		r.Get("/user/profile", userHandler.GetProfile)
		r.Get("/user/achievements", userHandler.GetAchievements)

		r.Route("/rocks", func(r chi.Router) {
			r.Get("/", rockHandler.GetAll)
			r.Post("/", rockHandler.Create)
			r.Delete("/{id}", rockHandler.Delete)
		})

		// Calls that reach the AI service
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Get("/bounty", aiHandler.Bounty)
			r.Post("/identify", aiHandler.Identify)
			r.Post("/speech", aiHandler.Speech)
			r.Post("/lab/fuse", labHandler.Fuse)
		})

		r.Get("/stream", streamHandler.SSE)
		r.Get("/ws", streamHandler.WebSocket)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/stats", adminHandler.GetStats)
			r.Get("/events", adminHandler.GetRecentEvents)
		})
	})

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				log.Error().Err(err).Msg("Health check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	}
}
