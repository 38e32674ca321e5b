package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/isdelr/rockhound-be/internal/cache"
	"github.com/isdelr/rockhound-be/internal/gamification"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxNameLen      = 100
	maxImageURLLen  = 5 << 20
)

// RockInput is a specimen as submitted by a client, usually an identification.
type RockInput struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	RarityScore int      `json:"rarityScore"`
	Composition []string `json:"composition"`
	Hardness    float64  `json:"hardness"`
	Confidence  float64  `json:"confidence"`
	ImageURL    string   `json:"imageUrl"`
}

// SpecimenResult reports a logged specimen and the owner's progress after it.
type SpecimenResult struct {
	Rock      models.Rock `json:"rock"`
	XPAwarded int         `json:"xpAwarded"`
	XP        int         `json:"xp"`
	Level     int         `json:"level"`
	LeveledUp bool        `json:"leveledUp"`
}

// RockServiceProvider defines the interface for specimen services.
type RockServiceProvider interface {
	GetRocks(ctx context.Context, userID string, limit, offset int) ([]models.Rock, error)
	CreateRock(ctx context.Context, userID string, input RockInput) (SpecimenResult, error)
	DeleteRock(ctx context.Context, userID, rockID string) error
}

// RockService provides business logic for a user's specimen collection.
type RockService struct {
	users  repository.UserRepository
	rocks  repository.RockRepository
	events EventServiceProvider
	cache  cache.Cache
	now    func() time.Time
}

// NewRockService creates a new RockService.
func NewRockService(store *repository.Store, events EventServiceProvider, c cache.Cache) *RockService {
	return &RockService{
		users:  store.Users,
		rocks:  store.Rocks,
		events: events,
		cache:  c,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetRocks lists the user's specimens, newest first.
func (s *RockService) GetRocks(ctx context.Context, userID string, limit, offset int) ([]models.Rock, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)
	return s.rocks.ListByUser(ctx, userID, limit, offset)
}

// CreateRock validates and logs a scanned specimen for the user.
func (s *RockService) CreateRock(ctx context.Context, userID string, input RockInput) (SpecimenResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return SpecimenResult{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(input.Name) > maxNameLen {
		return SpecimenResult{}, fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLen)
	}
	if len(input.ImageURL) > maxImageURLLen {
		return SpecimenResult{}, fmt.Errorf("%w: image is too large", ErrValidation)
	}

	rock := models.Rock{
		Name:        input.Name,
		Type:        strings.ToLower(strings.TrimSpace(input.Type)),
		Description: strings.TrimSpace(input.Description),
		RarityScore: input.RarityScore,
		Composition: cleanComposition(input.Composition),
		Hardness:    clampFloat(input.Hardness, 0, 10),
		Confidence:  clampFloat(input.Confidence, 0, 1),
		ImageURL:    input.ImageURL,
		Origin:      models.OriginScan,
	}
	if rock.Type == "" {
		rock.Type = "unknown"
	}
	return s.logSpecimen(ctx, userID, rock)
}

// logSpecimen persists rock for userID and awards its XP. Rarity tier and XP
// are always derived here, never taken from the caller.
func (s *RockService) logSpecimen(ctx context.Context, userID string, rock models.Rock) (SpecimenResult, error) {
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SpecimenResult{}, fmt.Errorf("user with ID %s: %w", userID, ErrNotFound)
		}
		return SpecimenResult{}, err
	}

	rock.ID = uuid.New().String()
	rock.UserID = userID
	rock.RarityScore = gamification.ClampRarity(rock.RarityScore)
	rock.Rarity = gamification.RarityTier(rock.RarityScore)
	rock.XPAwarded = gamification.XPForRarity(rock.RarityScore)
	rock.CreatedAt = s.now()
	if rock.Composition == nil {
		rock.Composition = []string{}
	}

	rock, err = s.rocks.Create(ctx, rock)
	if err != nil {
		return SpecimenResult{}, fmt.Errorf("failed to save specimen: %w", err)
	}

	updated, err := s.users.AddXP(ctx, userID, rock.XPAwarded)
	if err != nil {
		// A specimen must not exist without its XP.
		if delErr := s.rocks.Delete(context.WithoutCancel(ctx), rock.ID); delErr != nil {
			log.Error().Err(delErr).Str("rock_id", rock.ID).Msg("Failed to roll back specimen after XP error")
		}
		return SpecimenResult{}, fmt.Errorf("failed to award xp: %w", err)
	}

	s.invalidateStats(ctx)

	result := SpecimenResult{
		Rock:      rock,
		XPAwarded: rock.XPAwarded,
		XP:        updated.XP,
		Level:     gamification.LevelForXP(updated.XP),
	}
	result.LeveledUp = result.Level > gamification.LevelForXP(owner.XP)

	eventType := "specimen.logged"
	if rock.Origin == models.OriginLab {
		eventType = "lab.fusion"
	}
	s.events.CreateEvent(eventType, "info",
		fmt.Sprintf("%s logged %s (%s, +%d XP).", owner.Username, rock.Name, rock.Rarity, rock.XPAwarded), &userID)
	if result.LeveledUp {
		s.events.CreateEvent("user.level_up", "info",
			fmt.Sprintf("%s reached level %d.", owner.Username, result.Level), &userID)
	}
	return result, nil
}

// DeleteRock removes one of the user's specimens. Earned XP is kept.
func (s *RockService) DeleteRock(ctx context.Context, userID, rockID string) error {
	rock, err := s.ownedRock(ctx, userID, rockID)
	if err != nil {
		return err
	}

	if err := s.rocks.Delete(ctx, rockID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("specimen %s: %w", rockID, ErrNotFound)
		}
		return err
	}
	s.invalidateStats(ctx)
	s.events.CreateEvent("specimen.removed", "info", fmt.Sprintf("%s was released back into the wild.", rock.Name), &userID)
	return nil
}

// ownedRock loads a specimen and checks that userID owns it.
func (s *RockService) ownedRock(ctx context.Context, userID, rockID string) (models.Rock, error) {
	rock, err := s.rocks.GetByID(ctx, rockID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Rock{}, fmt.Errorf("specimen %s: %w", rockID, ErrNotFound)
		}
		return models.Rock{}, err
	}
	if rock.UserID != userID {
		return models.Rock{}, fmt.Errorf("specimen %s: %w", rockID, ErrForbidden)
	}
	return rock, nil
}

func (s *RockService) invalidateStats(ctx context.Context) {
	if err := cache.Invalidate(ctx, s.cache, StatsCacheKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate stats cache")
	}
}

func cleanComposition(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
