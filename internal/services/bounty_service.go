package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/isdelr/rockhound-be/internal/cache"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	bountyTTL = 26 * time.Hour

	// bountyLoadTimeout bounds a shared first-of-day generation, which
	// outlives the request that started it.
	bountyLoadTimeout = 3 * time.Minute
)

// BountySuggester produces the bounty of a given day.
type BountySuggester interface {
	SuggestBounty(ctx context.Context, date string) (models.Bounty, error)
}

// BountyServiceProvider defines the interface for the daily bounty.
type BountyServiceProvider interface {
	Today(ctx context.Context) (models.Bounty, error)
	Rotate(ctx context.Context) (models.Bounty, error)
}

// BountyService picks one target mineral per UTC day.
type BountyService struct {
	suggester BountySuggester
	cache     cache.Cache
	events    EventServiceProvider
	now       func() time.Time
	flight    singleflight.Group
}

// NewBountyService creates a new BountyService.
func NewBountyService(suggester BountySuggester, c cache.Cache, events EventServiceProvider) *BountyService {
	return &BountyService{
		suggester: suggester,
		cache:     c,
		events:    events,
		now:       time.Now,
	}
}

func bountyKey(date string) string {
	return "bounty:" + date
}

// Today returns the current day's bounty, generating it on first use.
// Concurrent first requests share one generation.
func (s *BountyService) Today(ctx context.Context) (models.Bounty, error) {
	date := repository.DayKey(s.now())
	v, err, _ := s.flight.Do(date, func() (interface{}, error) {
		// One caller disconnecting must not cut the load short for the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bountyLoadTimeout)
		defer cancel()
		b, _, err := cache.GetOrLoad(loadCtx, s.cache, bountyKey(date), bountyTTL, func(ctx context.Context) (models.Bounty, error) {
			return s.generate(ctx, date), nil
		})
		return b, err
	})
	if err != nil {
		return models.Bounty{}, err
	}
	return v.(models.Bounty), nil
}

// Rotate regenerates the current day's bounty and announces it.
func (s *BountyService) Rotate(ctx context.Context) (models.Bounty, error) {
	date := repository.DayKey(s.now())
	b := s.generate(ctx, date)

	data, err := json.Marshal(b)
	if err != nil {
		return models.Bounty{}, fmt.Errorf("encode bounty: %w", err)
	}
	if err := s.cache.Set(ctx, bountyKey(date), data, bountyTTL); err != nil {
		return models.Bounty{}, fmt.Errorf("store bounty: %w", err)
	}

	s.events.CreateEvent("bounty.rotated", "info", fmt.Sprintf("Today's bounty: %s.", b.Mineral), nil)
	return b, nil
}

// generate asks the AI for a bounty and falls back to a deterministic pick.
func (s *BountyService) generate(ctx context.Context, date string) models.Bounty {
	if s.suggester != nil {
		b, err := s.suggester.SuggestBounty(ctx, date)
		if err == nil {
			return b
		}
		log.Warn().Err(err).Str("date", date).Msg("AI bounty unavailable, using fallback")
	}
	return FallbackBounty(date)
}

var fallbackBounties = []struct{ mineral, hint string }{
	{"Quartz", "Look for glassy, six-sided crystals in granite and river gravel."},
	{"Feldspar", "Pink or white blocky crystals are common in granite outcrops."},
	{"Mica", "Check for thin, flaky sheets that glitter in schist."},
	{"Calcite", "A drop of vinegar makes it fizz. Try limestone quarries."},
	{"Pyrite", "Fool's gold forms brassy cubes in shale and coal seams."},
	{"Garnet", "Deep red dodecahedra hide in metamorphic schist."},
	{"Hematite", "Streaks reddish-brown on unglazed porcelain."},
	{"Magnetite", "Bring a magnet to black sand beaches."},
	{"Obsidian", "Volcanic glass with razor-sharp conchoidal fractures."},
	{"Malachite", "Banded green crusts near copper deposits."},
	{"Fluorite", "Cubic crystals that glow under UV light."},
	{"Gypsum", "Soft enough to scratch with a fingernail. Search evaporite beds."},
	{"Jasper", "Opaque red chalcedony tumbles along river banks."},
	{"Amethyst", "Purple quartz lines the inside of volcanic geodes."},
	{"Galena", "Heavy silver-grey cubes, often with sphalerite."},
	{"Olivine", "Green grains in basalt flows and on some volcanic beaches."},
	{"Tourmaline", "Striated prisms in pegmatite veins."},
	{"Basalt", "Dark, fine-grained lava rock. Look for vesicles."},
	{"Sandstone", "Gritty layers that show ancient dunes and riverbeds."},
	{"Marble", "Recrystallized limestone that sparkles when broken."},
}

// FallbackBounty deterministically picks the bounty for date without the AI.
func FallbackBounty(date string) models.Bounty {
	h := fnv.New32a()
	h.Write([]byte(date))
	pick := fallbackBounties[h.Sum32()%uint32(len(fallbackBounties))]
	return models.Bounty{Date: date, Mineral: pick.mineral, Hint: pick.hint, Source: "fallback"}
}
