package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/isdelr/rockhound-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the recurring jobs of the service.
type Scheduler struct {
	cron      *cron.Cron
	bountySvc services.BountyServiceProvider
	done      chan bool
	stopOnce  sync.Once
}

// NewScheduler creates a scheduler that rotates the daily bounty on spec
// (standard five-field cron syntax, UTC).
func NewScheduler(spec string, bountySvc services.BountyServiceProvider) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		bountySvc: bountySvc,
		done:      make(chan bool),
	}
	if _, err := s.cron.AddFunc(spec, s.rotateBounty); err != nil {
		return nil, fmt.Errorf("invalid bounty schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run rotates the bounty once, then runs the cron jobs until Stop.
func (s *Scheduler) Run() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler...")

	// Run once immediately on start
	s.rotateBounty()

	s.cron.Start()
	<-s.done
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopping background scheduler.")
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// NextRun returns when the bounty rotates next.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now().UTC())
}

func (s *Scheduler) rotateBounty() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	b, err := s.bountySvc.Rotate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to rotate bounty")
		return
	}
	log.Info().Str("mineral", b.Mineral).Str("source", b.Source).Msg("Scheduler: bounty rotated")
}
