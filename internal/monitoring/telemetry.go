package monitoring

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	highCPUThreshold = 90.0
	alertCooldown    = 15 * time.Minute
	sampleEvery      = 5 // ticks between host samples

	// DefaultInterval is used when a non-positive interval is given.
	DefaultInterval = 3 * time.Second
)

// Publisher accepts telemetry events, e.g. the stream hub.
type Publisher interface {
	Publish(evt models.Event) models.Event
}

// TelemetryGenerator periodically emits mock field telemetry for the
// dashboards and raises an alert when the host CPU runs hot.
type TelemetryGenerator struct {
	publisher    Publisher
	sampler      services.SystemSampler
	interval     time.Duration
	rng          *rand.Rand
	ticker       *time.Ticker
	done         chan bool
	stopOnce     sync.Once
	ticks        int
	lastCPUAlert time.Time
}

// NewTelemetryGenerator creates a new TelemetryGenerator. sampler may be nil.
func NewTelemetryGenerator(publisher Publisher, sampler services.SystemSampler, interval time.Duration) *TelemetryGenerator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TelemetryGenerator{
		publisher: publisher,
		sampler:   sampler,
		interval:  interval,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		done:      make(chan bool),
	}
}

// Run starts the periodic updates.
func (g *TelemetryGenerator) Run() {
	log.Info().Dur("interval", g.interval).Msg("Starting telemetry generator...")
	g.ticker = time.NewTicker(g.interval)
	defer g.ticker.Stop()

	for {
		select {
		case <-g.done:
			log.Info().Msg("Stopping telemetry generator.")
			return
		case <-g.ticker.C:
			g.tick()
		}
	}
}

// Stop halts the periodic updates.
func (g *TelemetryGenerator) Stop() {
	g.stopOnce.Do(func() { close(g.done) })
}

func (g *TelemetryGenerator) tick() {
	g.publisher.Publish(MockEvent(g.rng))

	g.ticks++
	if g.sampler != nil && g.ticks%sampleEvery == 0 {
		g.checkAndAlertForHighCPU()
	}
}

func (g *TelemetryGenerator) checkAndAlertForHighCPU() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := g.sampler.Sample(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Telemetry: could not sample host")
		return
	}
	if snap.CPUPercent <= highCPUThreshold {
		return
	}
	// If an alert was sent recently, do nothing.
	if !g.lastCPUAlert.IsZero() && time.Since(g.lastCPUAlert) < alertCooldown {
		return
	}

	g.publisher.Publish(models.Event{
		Type:    "system.alert.cpu",
		Level:   "warn",
		Message: fmt.Sprintf("High CPU usage (%.1f%%) detected on the API host.", snap.CPUPercent),
	})
	g.lastCPUAlert = time.Now()
}

var (
	sectors  = []string{"A-7", "B-2", "C-9", "D-4", "K-1", "X-3"}
	crews    = []string{"Basalt", "Cinder", "Flint", "Geode", "Jasper", "Onyx"}
	minerals = []string{"quartz", "garnet", "beryl", "opal", "tourmaline", "malachite", "fluorite"}
)

var mockTemplates = []struct {
	typ    string
	render func(r *rand.Rand) string
}{
	{"seismic.reading", func(r *rand.Rand) string {
		return fmt.Sprintf("Seismograph %s registered a magnitude %.1f tremor.", pick(r, sectors), 1+r.Float64()*4)
	}},
	{"satellite.sync", func(r *rand.Rand) string {
		return fmt.Sprintf("Orbital scan of sector %s complete, %d anomalies flagged.", pick(r, sectors), r.IntN(12))
	}},
	{"scanner.calibration", func(r *rand.Rand) string {
		return fmt.Sprintf("Field scanner %s recalibrated (drift %.2f%%).", pick(r, sectors), r.Float64()*3)
	}},
	{"expedition.report", func(r *rand.Rand) string {
		return fmt.Sprintf("Expedition team %s uncovered a %s vein.", pick(r, crews), pick(r, minerals))
	}},
	{"vault.audit", func(r *rand.Rand) string {
		return fmt.Sprintf("Vault integrity check passed for %d specimens.", 100+r.IntN(9000))
	}},
}

func pick(r *rand.Rand, list []string) string {
	return list[r.IntN(len(list))]
}

// MockEvent builds one random decorative telemetry event.
func MockEvent(r *rand.Rand) models.Event {
	t := mockTemplates[r.IntN(len(mockTemplates))]
	level := "info"
	if r.IntN(10) == 0 {
		level = "warn"
	}
	return models.Event{
		Type:    t.typ,
		Level:   level,
		Message: t.render(r),
		Mock:    true,
	}
}
