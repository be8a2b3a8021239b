package simulation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"github.com/couchcryptid/water-reuse-sim/internal/observability"
	"github.com/jonboulle/clockwork"
)

// State is the driver's position in its step cycle.
type State string

const (
	StateIdle     State = "idle"
	StateStepping State = "stepping"
	StateStepped  State = "stepped"
	StateComplete State = "complete"
)

// recentAlertCount is how many alerts a Status carries.
const recentAlertCount = 3

// Config controls the length and pacing of a run.
type Config struct {
	Steps           int
	Interval        time.Duration // pause between steps; 0 runs back to back
	RepairThreshold float64       // reroute amounts above this reset the zone to normal
	Schedule        []domain.ScheduledLeak
}

// Engine bundles the per-step collaborators. Perturber and Injector may be nil.
type Engine struct {
	Detector  *domain.Detector
	Router    *domain.Router
	Recorder  *domain.Recorder
	Perturber Perturber
	Injector  *LeakInjector
}

// StepReport describes everything that happened during one step.
type StepReport struct {
	Step           int                    `json:"step"`
	Injected       []domain.ScheduledLeak `json:"injected,omitempty"`
	Leaks          []domain.LeakEvent     `json:"leaks,omitempty"`
	Diversions     []domain.Diversion     `json:"diversions,omitempty"`
	Alerts         []domain.LeakAlert     `json:"alerts,omitempty"`
	Repaired       []domain.ZoneID        `json:"repaired,omitempty"`
	ReservoirLevel float64                `json:"reservoir_level"`
}

// Driver owns the world and advances it one step at a time.
type Driver struct {
	mu     sync.RWMutex
	world  *domain.World
	engine Engine
	cfg    Config
	state  State
	step   int

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Driver that takes ownership of world.
func New(world *domain.World, engine Engine, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{
		world:   world,
		engine:  engine,
		cfg:     cfg,
		state:   StateIdle,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one step has completed.
func (d *Driver) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("simulation has not completed a step yet")
	}
	return nil
}

// State returns the current driver state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// World returns a deep copy of the current world.
func (d *Driver) World() *domain.World {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.world.Clone()
}

// Run steps until the configured count is reached or ctx is cancelled,
// pausing Interval between steps.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("simulation started", "steps", d.cfg.Steps, "interval", d.cfg.Interval)
	d.metrics.SimulationRunning.Set(1)
	defer d.metrics.SimulationRunning.Set(0)

	for {
		if ctx.Err() != nil {
			d.logger.Info("simulation stopping", "reason", ctx.Err())
			return nil
		}
		if _, ok := d.Step(ctx); !ok || d.State() == StateComplete {
			break
		}
		if !d.wait(ctx) {
			d.logger.Info("simulation stopping", "reason", ctx.Err())
			return nil
		}
	}

	d.logSummary()
	return nil
}

func (d *Driver) logSummary() {
	s := d.Summary()
	attrs := []any{
		"steps", s.Steps,
		"total_reused", s.TotalReused,
		"reservoir_level", s.ReservoirLevel,
		"alerts", s.AlertCount,
	}
	if s.AlertCount > 0 {
		attrs = append(attrs, "first_alert", s.FirstAlert, "last_alert", s.LastAlert)
	}
	d.logger.Info("simulation complete", attrs...)
}

// Step runs one detect-reroute-record cycle. It returns false without doing
// anything once the run is complete.
func (d *Driver) Step(ctx context.Context) (StepReport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateComplete {
		return StepReport{}, false
	}

	start := time.Now()
	d.state = StateStepping
	d.step++
	report := StepReport{Step: d.step}

	if d.engine.Perturber != nil {
		d.engine.Perturber.Perturb(d.world)
	}
	report.Injected = d.inject()

	report.Leaks = d.engine.Detector.Detect(d.world)
	for _, leak := range report.Leaks {
		d.handleLeak(ctx, leak, &report)
	}

	report.ReservoirLevel = d.world.Reservoir.Level
	d.observeWorld()
	d.metrics.StepsCompleted.Inc()
	d.metrics.StepDuration.Observe(time.Since(start).Seconds())
	d.ready.Store(true)

	d.state = StateStepped
	if d.step >= d.cfg.Steps {
		d.state = StateComplete
	}

	d.logStatus(report)
	return report, true
}

// inject applies the scheduled leaks for the current step.
func (d *Driver) inject() []domain.ScheduledLeak {
	if d.engine.Injector == nil {
		return nil
	}
	var injected []domain.ScheduledLeak
	for _, s := range d.cfg.Schedule {
		if s.Step != d.step {
			continue
		}
		if !d.engine.Injector.Inject(d.world, s.Zone, s.Severity) {
			d.logger.Warn("leak injection skipped", "zone", s.Zone, "severity", s.Severity, "step", d.step)
			continue
		}
		d.logger.Warn("simulated leak injected", "zone", s.Zone, "severity", s.Severity, "step", d.step)
		injected = append(injected, s)
	}
	return injected
}

// handleLeak reroutes, records, and applies the repair heuristic for one leak.
// The repair depends only on the nominal reroute amount, not on whether the
// readings have recovered.
func (d *Driver) handleLeak(ctx context.Context, leak domain.LeakEvent, report *StepReport) {
	d.logger.Warn("leak detected",
		"zone", leak.Zone,
		"severity", leak.Severity,
		"flow", leak.Flow,
		"pressure", leak.Pressure,
	)
	d.metrics.LeaksDetected.WithLabelValues(string(leak.Zone), string(leak.Severity)).Inc()

	div := d.engine.Router.Reroute(d.world, leak.Zone, leak.Severity)
	d.metrics.RerouteVolume.Add(div.Amount)
	for _, a := range div.Allocations {
		d.logger.Debug("water allocated", "destination", a.Destination, "volume", a.Volume)
	}
	d.logger.Info("water rerouted",
		"zone", div.Zone,
		"amount", div.Amount,
		"allocated", div.Allocated(),
		"saved", div.Saved,
		"reservoir_level", d.world.Reservoir.Level,
	)

	alert := d.engine.Recorder.Record(ctx, d.world, leak)
	d.metrics.AlertsRecorded.Inc()

	report.Diversions = append(report.Diversions, div)
	report.Alerts = append(report.Alerts, alert)

	if div.Amount > d.cfg.RepairThreshold {
		if z := d.world.Zone(leak.Zone); z != nil {
			z.Status = domain.StatusNormal
			report.Repaired = append(report.Repaired, leak.Zone)
			d.metrics.Repairs.WithLabelValues(string(leak.Zone)).Inc()
			d.logger.Info("zone repaired", "zone", leak.Zone)
		}
	}
}

func (d *Driver) observeWorld() {
	d.metrics.ReservoirLevel.Set(d.world.Reservoir.Level)
	for _, z := range d.world.Zones {
		d.metrics.ZoneFlow.WithLabelValues(string(z.ID)).Set(z.Flow)
		d.metrics.ZonePressure.WithLabelValues(string(z.ID)).Set(z.Pressure)
	}
	for _, dest := range d.world.Destinations {
		d.metrics.DestinationSupply.WithLabelValues(dest.ID).Set(dest.Supplied)
	}
}

func (d *Driver) logStatus(report StepReport) {
	for _, z := range d.world.Zones {
		d.logger.Debug("zone status",
			"zone", z.ID,
			"flow", z.Flow,
			"pressure", z.Pressure,
			"status", z.Status,
		)
	}
	d.logger.Info("step complete",
		"step", report.Step,
		"leaks", len(report.Leaks),
		"reservoir_level", report.ReservoirLevel,
		"alerts_total", d.world.AlertCount(),
	)
}

// wait pauses for the configured interval. Returns false if ctx was cancelled.
func (d *Driver) wait(ctx context.Context) bool {
	if d.cfg.Interval <= 0 {
		return true
	}
	timer := d.clock.NewTimer(d.cfg.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
