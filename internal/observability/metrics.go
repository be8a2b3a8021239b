package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the simulation.
type Metrics struct {
	StepsCompleted    prometheus.Counter
	SimulationRunning prometheus.Gauge
	StepDuration      prometheus.Histogram

	// Leak handling.
	LeaksDetected  *prometheus.CounterVec // labels: zone, severity
	RerouteVolume  prometheus.Counter
	AlertsRecorded prometheus.Counter
	Repairs        *prometheus.CounterVec // labels: zone

	// Network state, refreshed after every step.
	ReservoirLevel    prometheus.Gauge
	ZoneFlow          *prometheus.GaugeVec // labels: zone
	ZonePressure      *prometheus.GaugeVec // labels: zone
	DestinationSupply *prometheus.GaugeVec // labels: destination

	// Alert transport.
	AlertDispatchErrors *prometheus.CounterVec // labels: transport={kafka,webhook}
}

// NewMetrics creates and registers all simulation metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.StepsCompleted,
		m.SimulationRunning,
		m.StepDuration,
		m.LeaksDetected,
		m.RerouteVolume,
		m.AlertsRecorded,
		m.Repairs,
		m.ReservoirLevel,
		m.ZoneFlow,
		m.ZonePressure,
		m.DestinationSupply,
		m.AlertDispatchErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StepsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "water_sim",
			Name:      "steps_completed_total",
			Help:      "Total simulation steps completed.",
		}),
		SimulationRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "water_sim",
			Name:      "simulation_running",
			Help:      "1 while the simulation is stepping, 0 otherwise.",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "water_sim",
			Name:      "step_duration_seconds",
			Help:      "Duration of one detect-reroute-record step, excluding pacing.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		LeaksDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water_sim",
			Name:      "leaks_detected_total",
			Help:      "Leaks detected by zone and severity.",
		}, []string{"zone", "severity"}),
		RerouteVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "water_sim",
			Name:      "reroute_volume_liters_total",
			Help:      "Nominal volume rerouted away from leaking zones.",
		}),
		AlertsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "water_sim",
			Name:      "alerts_recorded_total",
			Help:      "Total leak alerts appended to the alert log.",
		}),
		Repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water_sim",
			Name:      "repairs_total",
			Help:      "Simulated repairs by zone.",
		}, []string{"zone"}),
		ReservoirLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "water_sim",
			Name:      "reservoir_level_percent",
			Help:      "Storage reservoir level as a percentage of capacity.",
		}),
		ZoneFlow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "water_sim",
			Name:      "zone_flow_liters_per_minute",
			Help:      "Current flow rate by zone.",
		}, []string{"zone"}),
		ZonePressure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "water_sim",
			Name:      "zone_pressure_psi",
			Help:      "Current pressure by zone.",
		}, []string{"zone"}),
		DestinationSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "water_sim",
			Name:      "destination_supplied_liters",
			Help:      "Cumulative volume supplied to each reuse destination.",
		}, []string{"destination"}),
		AlertDispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water_sim",
			Name:      "alert_dispatch_errors_total",
			Help:      "Alert deliveries that failed, by transport.",
		}, []string{"transport"}),
	}
}
