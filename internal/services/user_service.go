package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/isdelr/rockhound-be/internal/cache"
	"github.com/isdelr/rockhound-be/internal/config"
	"github.com/isdelr/rockhound-be/internal/gamification"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	maxUsernameLen = 32
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, username, email, password string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetProfile(ctx context.Context, id string) (models.Profile, error)
	GetAchievements(ctx context.Context, id string) ([]models.Achievement, error)
	EnsureAdmin(ctx context.Context, admin config.AdminConfig) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	users  repository.UserRepository
	rocks  repository.RockRepository
	events EventServiceProvider
	cache  cache.Cache
	cost   int
}

// NewUserService creates a new UserService.
func NewUserService(store *repository.Store, events EventServiceProvider, c cache.Cache) *UserService {
	return &UserService{
		users:  store.Users,
		rocks:  store.Rocks,
		events: events,
		cache:  c,
		cost:   bcrypt.DefaultCost,
	}
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
		}
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func validateRegistration(username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return fmt.Errorf("%w: username must be at most %d characters", ErrValidation, maxUsernameLen)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("%w: email address is malformed", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	return nil
}

// CreateUser registers a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateRegistration(username, email, password); err != nil {
		return models.User{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.User{}, fmt.Errorf("username or email: %w", ErrConflict)
		}
		return models.User{}, err
	}

	if err := cache.Invalidate(ctx, s.cache, StatsCacheKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate stats cache")
	}
	s.events.CreateEvent("user.registered", "info", fmt.Sprintf("New prospector %s joined the expedition.", user.Username), &user.ID)

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// GetProfile returns the user with level progress, specimen count and achievements.
func (s *UserService) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.Profile{}, err
	}
	summary, err := s.rocks.Summary(ctx, id)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to summarize collection: %w", err)
	}

	profile := models.Profile{
		User:          user,
		SpecimenCount: summary.Count,
		Achievements:  gamification.EvaluateAchievements(summary),
	}
	gamification.ApplyProfile(&profile)
	return profile, nil
}

// GetAchievements returns every achievement with its unlocked state.
func (s *UserService) GetAchievements(ctx context.Context, id string) ([]models.Achievement, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}
	summary, err := s.rocks.Summary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize collection: %w", err)
	}
	return gamification.EvaluateAchievements(summary), nil
}

// EnsureAdmin creates the configured admin account unless a user with that
// email already exists. The existing or new user is returned.
func (s *UserService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		existing.PasswordHash = ""
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.User{}, err
	}

	// The default admin password is shorter than the registration minimum.
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(admin.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.users.Create(ctx, models.User{
		ID:           uuid.New().String(),
		Username:     admin.Username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to seed admin: %w", err)
	}
	log.Info().Str("email", email).Msg("Seeded admin account")
	user.PasswordHash = ""
	return user, nil
}
