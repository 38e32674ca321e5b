package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/rockhound-be/internal/ai"
	"github.com/isdelr/rockhound-be/internal/api"
	"github.com/isdelr/rockhound-be/internal/auth"
	"github.com/isdelr/rockhound-be/internal/cache"
	"github.com/isdelr/rockhound-be/internal/config"
	"github.com/isdelr/rockhound-be/internal/database"
	"github.com/isdelr/rockhound-be/internal/logger"
	"github.com/isdelr/rockhound-be/internal/messaging"
	"github.com/isdelr/rockhound-be/internal/monitoring"
	"github.com/isdelr/rockhound-be/internal/repository"
	"github.com/isdelr/rockhound-be/internal/services"
	"github.com/isdelr/rockhound-be/internal/stream"
	"github.com/rs/zerolog/log"
)

// recentEvents is how many events the hub keeps for the admin feed.
const recentEvents = 200

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.IsProduction())
	log.Info().Str("config", cfg.String()).Msg("Configuration loaded")

	ctx := context.Background()

	// Set up persistence
	store, ping, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to initialize store")
	}
	defer closeStore()

	// Set up cache
	var statsCache cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "rockhound:")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rc.Close()
		statsCache = rc
	} else {
		statsCache = cache.NewMemory(10 * time.Minute)
	}

	// Set up the event hub, mirrored to NATS when configured
	var mirrors []stream.Mirror
	if cfg.NatsURL != "" {
		pub, err := messaging.Connect(cfg.NatsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize NATS publisher")
		}
		defer pub.Close()
		mirrors = append(mirrors, pub)
	}
	hub := stream.NewHub(recentEvents, mirrors...)
	go hub.Run()

	// Set up AI client
	aiClient, err := ai.New(ctx, cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AI client")
	}
	if !aiClient.Enabled() {
		log.Warn().Msg("GEMINI_API_KEY not set, AI features are disabled")
	}

	// Set up services
	sampler := monitoring.NewSystemSampler()
	eventService := services.NewEventService(hub)
	userService := services.NewUserService(store, eventService, statsCache)
	rockService := services.NewRockService(store, eventService, statsCache)
	labService := services.NewLabService(rockService, aiClient)
	aiService := services.NewAIService(aiClient, eventService)
	bountyService := services.NewBountyService(aiClient, statsCache, eventService)
	adminService := services.NewAdminService(store, statsCache, cfg.StatsCacheTTL, sampler, eventService)

	if _, err := userService.EnsureAdmin(ctx, cfg.Admin); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed admin account")
	}

	// Set up and run the mock telemetry generator
	telemetry := monitoring.NewTelemetryGenerator(hub, sampler, cfg.Stream.Interval)
	go telemetry.Run()

	// Set up and run the background scheduler
	scheduler, err := monitoring.NewScheduler(cfg.BountyCron, bountyService)
	if err != nil {
		log.Fatal().Err(err).Str("spec", cfg.BountyCron).Msg("Failed to initialize scheduler")
	}
	go scheduler.Run()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Config: cfg,
		Tokens: auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Hub:    hub,
		Users:  userService,
		Rocks:  rockService,
		Lab:    labService,
		AI:     aiService,
		Bounty: bountyService,
		Admin:  adminService,
		Ping:   ping,
	})

	// No WriteTimeout: the stream endpoints hold connections open.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	telemetry.Stop()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Closing the hub ends open stream handlers so Shutdown does not wait on them.
	hub.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}

// openStore connects the configured backend and returns the store, a health
// check and a cleanup function.
func openStore(ctx context.Context, cfg *config.Config) (*repository.Store, func(context.Context) error, func(), error) {
	switch cfg.Store.Driver {
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db := client.Database(cfg.Store.MongoDatabase)
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, fmt.Errorf("failed to create MongoDB indexes: %w", err)
		}
		ping := func(ctx context.Context) error { return client.Ping(ctx, nil) }
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
			}
		}
		return repository.NewMongoStore(db), ping, closeFn, nil

	case "sqlite", "":
		db, err := database.New(cfg.Store.DatabasePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}
		return repository.NewSQLiteStore(db), db.PingContext, closeFn, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
