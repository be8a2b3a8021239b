package simulation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"github.com/couchcryptid/water-reuse-sim/internal/observability"
	"github.com/couchcryptid/water-reuse-sim/internal/simulation"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type countingTransport struct {
	dispatched int
}

func (c *countingTransport) Dispatch(_ context.Context, _ domain.LeakAlert, _ []string) {
	c.dispatched++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeAlertClock(t *testing.T) *clockwork.FakeClock {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC))
	domain.SetClock(fc)
	t.Cleanup(func() { domain.SetClock(nil) })
	return fc
}

func newDriver(t *testing.T, topo domain.Topology, cfg simulation.Config, transport domain.AlertTransport) (*simulation.Driver, *observability.Metrics) {
	t.Helper()
	require.NoError(t, topo.Validate())
	metrics := observability.NewMetricsForTesting()
	engine := simulation.Engine{
		Detector: domain.NewDetector(domain.DefaultDetectorConfig()),
		Router:   domain.NewRouter(topo.RouterConfig()),
		Recorder: domain.NewRecorder(domain.DefaultRecipients, transport),
		Injector: simulation.NewLeakInjector(topo.InjectionFactors),
	}
	d := simulation.New(domain.NewWorld(topo), engine, cfg, clockwork.NewFakeClock(), discardLogger(), metrics)
	return d, metrics
}

func defaultConfig() simulation.Config {
	return simulation.Config{
		Steps:           8,
		RepairThreshold: 20,
		Schedule:        []domain.ScheduledLeak{{Step: 3, Zone: domain.ZoneResidential, Severity: domain.SeverityMedium}},
	}
}

// --- tests ---

func TestDriver_Run_DemoScenario(t *testing.T) {
	freezeAlertClock(t)
	tr := &countingTransport{}
	d, metrics := newDriver(t, domain.DefaultTopology(), defaultConfig(), tr)

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, simulation.StateComplete, d.State())
	w := d.World()
	residential := w.Zone(domain.ZoneResidential)
	assert.Equal(t, domain.StatusNormal, residential.Status)
	assert.InDelta(t, 64.0, residential.Flow, 1e-9)

	s := d.Summary()
	assert.Equal(t, 8, s.Steps)
	assert.Equal(t, 1, s.AlertCount)
	assert.InDelta(t, 30.0, s.TotalReused, 1e-9)
	assert.InDelta(t, 89.0, s.ReservoirLevel, 1e-9)
	assert.Equal(t, s.FirstAlert, s.LastAlert)

	assert.Equal(t, 1, tr.dispatched)
	assert.InDelta(t, 8.0, testutil.ToFloat64(metrics.StepsCompleted), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.AlertsRecorded), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.LeaksDetected.WithLabelValues("residential", "medium")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Repairs.WithLabelValues("residential")), 1e-9)
	assert.InDelta(t, 89.0, testutil.ToFloat64(metrics.ReservoirLevel), 1e-9)
	assert.Zero(t, testutil.ToFloat64(metrics.SimulationRunning))
}

func TestDriver_Step_ReportsInjectionAndDiversion(t *testing.T) {
	fc := freezeAlertClock(t)
	cfg := defaultConfig()
	cfg.Schedule[0].Step = 1
	d, _ := newDriver(t, domain.DefaultTopology(), cfg, nil)

	report, ok := d.Step(context.Background())
	require.True(t, ok)

	want := simulation.StepReport{
		Step:     1,
		Injected: []domain.ScheduledLeak{{Step: 1, Zone: domain.ZoneResidential, Severity: domain.SeverityMedium}},
		Leaks:    []domain.LeakEvent{{Zone: domain.ZoneResidential, Severity: domain.SeverityMedium, Flow: 85, Pressure: 18}},
		Diversions: []domain.Diversion{{
			Zone:     domain.ZoneResidential,
			Severity: domain.SeverityMedium,
			Amount:   30,
			Allocations: []domain.Allocation{
				{Destination: "toilet_flushing", Volume: 6},
				{Destination: "garden_irrigation", Volume: 9},
				{Destination: "car_wash", Volume: 3},
				{Destination: "cooling_system", Volume: 12},
			},
			FlowReduced: 21,
			Saved:       9,
		}},
		Alerts: []domain.LeakAlert{{
			Timestamp: fc.Now(),
			Zone:      domain.ZoneResidential,
			Severity:  domain.SeverityMedium,
			Flow:      85,
			Pressure:  18,
			Status:    domain.AlertStatusNew,
		}},
		Repaired:       []domain.ZoneID{domain.ZoneResidential},
		ReservoirLevel: 89,
	}
	approx := cmp.Comparer(func(a, b float64) bool { return a-b < 1e-9 && b-a < 1e-9 })
	if diff := cmp.Diff(want, report, approx); diff != "" {
		t.Fatalf("step report mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_RepairHeuristic(t *testing.T) {
	tests := []struct {
		name       string
		smallVol   float64
		wantStatus domain.ZoneStatus
	}{
		{"amount above threshold repairs", 25, domain.StatusNormal},
		{"amount at or below threshold leaves zone leaking", 15, domain.StatusLeaking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freezeAlertClock(t)
			topo := domain.DefaultTopology()
			topo.RerouteVolumes[domain.SeveritySmall] = tt.smallVol
			cfg := simulation.Config{
				Steps:           1,
				RepairThreshold: 20,
				Schedule:        []domain.ScheduledLeak{{Step: 1, Zone: domain.ZoneResidential, Severity: domain.SeveritySmall}},
			}
			d, _ := newDriver(t, topo, cfg, nil)

			report, ok := d.Step(context.Background())
			require.True(t, ok)
			require.Len(t, report.Leaks, 1)
			assert.Equal(t, domain.SeveritySmall, report.Leaks[0].Severity)
			assert.Equal(t, tt.wantStatus, d.World().Zone(domain.ZoneResidential).Status)
		})
	}
}

func TestDriver_StateTransitions(t *testing.T) {
	d, _ := newDriver(t, domain.DefaultTopology(), simulation.Config{Steps: 2, RepairThreshold: 20}, nil)
	assert.Equal(t, simulation.StateIdle, d.State())
	require.Error(t, d.CheckReadiness(context.Background()))

	_, ok := d.Step(context.Background())
	require.True(t, ok)
	assert.Equal(t, simulation.StateStepped, d.State())
	require.NoError(t, d.CheckReadiness(context.Background()))

	_, ok = d.Step(context.Background())
	require.True(t, ok)
	assert.Equal(t, simulation.StateComplete, d.State())

	_, ok = d.Step(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 2, d.Summary().Steps)
}

func TestDriver_AlertLogOnlyGrows(t *testing.T) {
	fc := freezeAlertClock(t)
	topo := domain.DefaultTopology()
	topo.RerouteVolumes[domain.SeverityLarge] = 5
	cfg := simulation.Config{
		Steps:           6,
		RepairThreshold: 20,
		Schedule:        []domain.ScheduledLeak{{Step: 1, Zone: domain.ZoneIndustrial, Severity: domain.SeverityLarge}},
	}
	d, _ := newDriver(t, topo, cfg, nil)

	prev := 0
	for {
		_, ok := d.Step(context.Background())
		if !ok {
			break
		}
		n := d.Summary().AlertCount
		assert.GreaterOrEqual(t, n, prev)
		prev = n
		fc.Advance(time.Minute)
	}

	alerts := d.World().Alerts()
	require.Len(t, alerts, 6)
	for i := 1; i < len(alerts); i++ {
		assert.True(t, alerts[i].Timestamp.After(alerts[i-1].Timestamp))
	}
}

func TestDriver_Run_ContextCancellation(t *testing.T) {
	d, metrics := newDriver(t, domain.DefaultTopology(), defaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, simulation.StateIdle, d.State())
	assert.Zero(t, testutil.ToFloat64(metrics.StepsCompleted))
}

func TestDriver_Run_PacesStepsOnClock(t *testing.T) {
	topo := domain.DefaultTopology()
	metrics := observability.NewMetricsForTesting()
	fc := clockwork.NewFakeClock()
	engine := simulation.Engine{
		Detector: domain.NewDetector(domain.DefaultDetectorConfig()),
		Router:   domain.NewRouter(topo.RouterConfig()),
		Recorder: domain.NewRecorder(nil, nil),
	}
	cfg := simulation.Config{Steps: 3, Interval: 2 * time.Second, RepairThreshold: 20}
	d := simulation.New(domain.NewWorld(topo), engine, cfg, fc, discardLogger(), metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	for range 2 {
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		fc.Advance(2 * time.Second)
	}

	require.NoError(t, <-errCh)
	assert.Equal(t, simulation.StateComplete, d.State())
	assert.Equal(t, 3, d.Summary().Steps)
}

func TestDriver_Snapshot_KeepsLastThreeAlerts(t *testing.T) {
	freezeAlertClock(t)
	topo := domain.DefaultTopology()
	topo.RerouteVolumes[domain.SeverityLarge] = 1
	cfg := simulation.Config{
		Steps:           5,
		RepairThreshold: 20,
		Schedule:        []domain.ScheduledLeak{{Step: 1, Zone: domain.ZonePark, Severity: domain.SeverityLarge}},
	}
	d, _ := newDriver(t, topo, cfg, nil)
	require.NoError(t, d.Run(context.Background()))

	s := d.Snapshot()

	assert.Equal(t, 5, s.Step)
	assert.Equal(t, simulation.StateComplete, s.State)
	assert.Equal(t, 5, s.AlertCount)
	assert.Len(t, s.RecentAlerts, 3)
	require.Len(t, s.Zones, 4)
	require.Len(t, s.Destinations, 4)
	assert.InDelta(t, 10.0, s.Destinations[0].Utilization, 1e-9)
}

func TestDriver_NoPerturberKeepsBaselineQuiet(t *testing.T) {
	d, _ := newDriver(t, domain.DefaultTopology(), simulation.Config{Steps: 4, RepairThreshold: 20}, nil)
	require.NoError(t, d.Run(context.Background()))

	assert.Zero(t, d.Summary().AlertCount)
	assert.Equal(t, domain.NewWorld(domain.DefaultTopology()).Zones, d.World().Zones)
}

func TestDriver_RunReport_CollectsEveryStep(t *testing.T) {
	fc := freezeAlertClock(t)
	d, _ := newDriver(t, domain.DefaultTopology(), defaultConfig(), nil)

	r := d.RunReport(context.Background())

	require.Len(t, r.Steps, 8)
	for i, s := range r.Steps {
		assert.Equal(t, i+1, s.Step)
	}
	assert.Len(t, r.Steps[2].Diversions, 1)
	assert.Equal(t, d.Summary(), r.Summary)
	assert.InDelta(t, 80.0, r.StartReservoirLevel, 1e-9)
	assert.Equal(t, 8, r.Final.Step)
	assert.Len(t, r.Final.Destinations, 4)
	require.Len(t, r.Alerts, 1)
	assert.Equal(t, fc.Now(), r.Alerts[0].Timestamp)
	assert.Equal(t, simulation.StateComplete, d.State())

	again := d.RunReport(context.Background())
	assert.Empty(t, again.Steps)
}

func TestDriver_RunReport_StopsOnCancel(t *testing.T) {
	d, _ := newDriver(t, domain.DefaultTopology(), defaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := d.RunReport(ctx)

	assert.Empty(t, r.Steps)
	assert.Equal(t, simulation.StateIdle, d.State())
}

func runSummaryLine(t *testing.T, cfg simulation.Config) map[string]any {
	t.Helper()
	freezeAlertClock(t)
	topo := domain.DefaultTopology()
	var buf bytes.Buffer
	engine := simulation.Engine{
		Detector: domain.NewDetector(domain.DefaultDetectorConfig()),
		Router:   domain.NewRouter(topo.RouterConfig()),
		Recorder: domain.NewRecorder(domain.DefaultRecipients, nil),
		Injector: simulation.NewLeakInjector(topo.InjectionFactors),
	}
	d := simulation.New(domain.NewWorld(topo), engine, cfg, clockwork.NewFakeClock(),
		slog.New(slog.NewJSONHandler(&buf, nil)), observability.NewMetricsForTesting())
	require.NoError(t, d.Run(context.Background()))

	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "simulation complete" {
			return entry
		}
	}
	t.Fatal("no simulation complete log line")
	return nil
}

func TestDriver_Run_SummaryOmitsAlertWindowWithoutAlerts(t *testing.T) {
	entry := runSummaryLine(t, simulation.Config{Steps: 2, RepairThreshold: 20})

	assert.InDelta(t, 0.0, entry["alerts"], 1e-9)
	assert.NotContains(t, entry, "first_alert")
	assert.NotContains(t, entry, "last_alert")
}

func TestDriver_Run_SummaryIncludesAlertWindow(t *testing.T) {
	entry := runSummaryLine(t, defaultConfig())

	assert.InDelta(t, 1.0, entry["alerts"], 1e-9)
	assert.Equal(t, "2025-06-01T08:00:00Z", entry["first_alert"])
	assert.Equal(t, "2025-06-01T08:00:00Z", entry["last_alert"])
}
