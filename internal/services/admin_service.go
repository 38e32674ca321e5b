package services

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/rockhound-be/internal/cache"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/repository"
	"github.com/rs/zerolog/log"
)

// StatsCacheKey is the cache entry holding the admin dashboard payload.
const StatsCacheKey = "admin:stats"

const (
	statsDays        = 7
	topMineralsLimit = 5
)

// SystemSampler takes a snapshot of the host running the API.
type SystemSampler interface {
	Sample(ctx context.Context) (*models.SystemSnapshot, error)
}

// AdminServiceProvider defines the interface for admin dashboard services.
type AdminServiceProvider interface {
	GetStats(ctx context.Context) (models.AdminStats, error)
	GetRecentEvents(limit int) []models.Event
}

// AdminService aggregates dashboard statistics behind a TTL cache.
type AdminService struct {
	users   repository.UserRepository
	rocks   repository.RockRepository
	cache   cache.Cache
	ttl     time.Duration
	sampler SystemSampler
	events  EventServiceProvider
	now     func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(store *repository.Store, c cache.Cache, ttl time.Duration, sampler SystemSampler, events EventServiceProvider) *AdminService {
	return &AdminService{
		users:   store.Users,
		rocks:   store.Rocks,
		cache:   c,
		ttl:     ttl,
		sampler: sampler,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetStats returns the dashboard statistics, computing them at most once per TTL.
func (s *AdminService) GetStats(ctx context.Context) (models.AdminStats, error) {
	stats, hit, err := cache.GetOrLoad(ctx, s.cache, StatsCacheKey, s.ttl, s.computeStats)
	if err != nil {
		return models.AdminStats{}, err
	}
	log.Debug().Bool("cache_hit", hit).Msg("Admin stats served")
	return stats, nil
}

// GetRecentEvents returns the latest telemetry events, newest first.
func (s *AdminService) GetRecentEvents(limit int) []models.Event {
	return s.events.GetRecentEvents(limit)
}

func (s *AdminService) computeStats(ctx context.Context) (models.AdminStats, error) {
	var (
		stats models.AdminStats
		err   error
	)
	stats.GeneratedAt = s.now()

	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return models.AdminStats{}, fmt.Errorf("count users: %w", err)
	}
	if stats.TotalAdmins, err = s.users.CountByRole(ctx, models.RoleAdmin); err != nil {
		return models.AdminStats{}, fmt.Errorf("count admins: %w", err)
	}
	if stats.TotalSpecimens, err = s.rocks.Count(ctx); err != nil {
		return models.AdminStats{}, fmt.Errorf("count specimens: %w", err)
	}

	today := stats.GeneratedAt.Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(statsDays - 1))
	daily, err := s.rocks.DailyCounts(ctx, since)
	if err != nil {
		return models.AdminStats{}, fmt.Errorf("daily counts: %w", err)
	}
	stats.DailyScans = fillDays(daily, since, statsDays)

	if stats.Rarity, err = s.rocks.RarityDistribution(ctx); err != nil {
		return models.AdminStats{}, fmt.Errorf("rarity distribution: %w", err)
	}
	if stats.TopMinerals, err = s.rocks.TopNames(ctx, topMineralsLimit); err != nil {
		return models.AdminStats{}, fmt.Errorf("top minerals: %w", err)
	}

	if s.sampler != nil {
		snap, err := s.sampler.Sample(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to sample host metrics")
		} else {
			stats.System = snap
		}
	}
	return stats, nil
}

// fillDays returns one bucket per day starting at since, with zero counts for
// days that have no specimens.
func fillDays(counts []models.DailyCount, since time.Time, days int) []models.DailyCount {
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Date] = c.Count
	}
	out := make([]models.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		key := repository.DayKey(since.AddDate(0, 0, i))
		out = append(out, models.DailyCount{Date: key, Count: byDay[key]})
	}
	return out
}
