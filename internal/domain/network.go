package domain

import "time"

// ZoneID identifies a monitored segment of the distribution network.
type ZoneID string

// Zones of the default network, in enumeration order.
const (
	ZoneResidential ZoneID = "residential"
	ZoneCommercial  ZoneID = "commercial"
	ZoneIndustrial  ZoneID = "industrial"
	ZonePark        ZoneID = "park"
)

// Severity classifies a detected leak by how far flow has risen above baseline.
type Severity string

const (
	SeveritySmall  Severity = "small"
	SeverityMedium Severity = "medium"
	SeverityLarge  Severity = "large"
)

// Severities lists every tier from least to most severe.
var Severities = []Severity{SeveritySmall, SeverityMedium, SeverityLarge}

// ParseSeverity accepts the exact lowercase tier names.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeveritySmall, SeverityMedium, SeverityLarge:
		return Severity(s), true
	}
	return "", false
}

// ZoneStatus is the operational state of a zone.
type ZoneStatus string

const (
	StatusNormal  ZoneStatus = "normal"
	StatusLeaking ZoneStatus = "leaking"
)

// AlertStatus is the lifecycle state of a LeakAlert. Alerts are always created as new.
type AlertStatus string

const AlertStatusNew AlertStatus = "new"

// Zone holds the current readings for one network segment alongside its
// fixed baseline reference values.
type Zone struct {
	ID               ZoneID     `json:"id"`
	Flow             float64    `json:"flow"`     // L/min
	Pressure         float64    `json:"pressure"` // psi
	Status           ZoneStatus `json:"status"`
	BaselineFlow     float64    `json:"baseline_flow"`
	BaselinePressure float64    `json:"baseline_pressure"`
}

// Floors are the lower bounds every zone reading is clamped to.
type Floors struct {
	Flow     float64 `json:"flow" yaml:"flow"`
	Pressure float64 `json:"pressure" yaml:"pressure"`
}

// Apply clamps the zone's readings to the floors.
func (f Floors) Apply(z *Zone) {
	z.Flow = max(f.Flow, z.Flow)
	z.Pressure = max(f.Pressure, z.Pressure)
}

// Reservoir is the shared storage tank fed by recovered water.
type Reservoir struct {
	Level float64 `json:"level"` // percent full, 0-100
}

// Fill adds volume (in percentage points) to the reservoir, saturating at [0, 100].
func (r *Reservoir) Fill(v float64) {
	r.Level = min(100, max(0, r.Level+v))
}

// Destination is a downstream consumer of rerouted water.
type Destination struct {
	ID       string  `json:"id"`
	Demand   float64 `json:"demand"`   // L/min
	Supplied float64 `json:"supplied"` // cumulative, never decreases
}

// Utilization returns supplied volume as a percentage of demand, or 0 when demand is 0.
func (d Destination) Utilization() float64 {
	if d.Demand <= 0 {
		return 0
	}
	return d.Supplied / d.Demand * 100
}

// LeakEvent is a detection result handed from the Detector to the Router and
// Recorder within a single step.
type LeakEvent struct {
	Zone     ZoneID   `json:"zone"`
	Severity Severity `json:"severity"`
	Flow     float64  `json:"flow"`
	Pressure float64  `json:"pressure"`
}

// ScheduledLeak injects a simulated leak into a zone at a given step (1-based).
type ScheduledLeak struct {
	Step     int      `json:"step"`
	Zone     ZoneID   `json:"zone"`
	Severity Severity `json:"severity"`
}

// LeakAlert is the immutable record of a detected leak.
type LeakAlert struct {
	Timestamp time.Time   `json:"timestamp"`
	Zone      ZoneID      `json:"zone"`
	Severity  Severity    `json:"severity"`
	Flow      float64     `json:"flow"`
	Pressure  float64     `json:"pressure"`
	Status    AlertStatus `json:"status"`
}

// World is the complete simulation state. It is owned by a single writer;
// components receive it per call and must not keep a reference.
type World struct {
	Zones        []Zone
	Reservoir    Reservoir
	Destinations []Destination
	Floors       Floors

	alerts []LeakAlert
}

// NewWorld builds the initial state for a topology. Zones start in normal
// status at their initial readings (baseline when unset).
func NewWorld(t Topology) *World {
	w := &World{
		Zones:        make([]Zone, 0, len(t.Zones)),
		Reservoir:    Reservoir{Level: t.ReservoirLevel},
		Destinations: make([]Destination, 0, len(t.Destinations)),
		Floors:       t.Floors,
	}
	for _, spec := range t.Zones {
		z := Zone{
			ID:               spec.ID,
			Flow:             spec.InitialFlow,
			Pressure:         spec.InitialPressure,
			Status:           StatusNormal,
			BaselineFlow:     spec.BaselineFlow,
			BaselinePressure: spec.BaselinePressure,
		}
		if z.Flow == 0 {
			z.Flow = spec.BaselineFlow
		}
		if z.Pressure == 0 {
			z.Pressure = spec.BaselinePressure
		}
		w.Floors.Apply(&z)
		w.Zones = append(w.Zones, z)
	}
	for _, spec := range t.Destinations {
		w.Destinations = append(w.Destinations, Destination{ID: spec.ID, Demand: spec.Demand})
	}
	w.Reservoir.Fill(0)
	return w
}

// Zone returns a pointer to the zone with the given ID, or nil.
func (w *World) Zone(id ZoneID) *Zone {
	for i := range w.Zones {
		if w.Zones[i].ID == id {
			return &w.Zones[i]
		}
	}
	return nil
}

// TotalDemand sums demand across all destinations.
func (w *World) TotalDemand() float64 {
	var total float64
	for _, d := range w.Destinations {
		total += d.Demand
	}
	return total
}

// TotalSupplied sums the cumulative volume delivered to all destinations.
func (w *World) TotalSupplied() float64 {
	var total float64
	for _, d := range w.Destinations {
		total += d.Supplied
	}
	return total
}

// Alerts returns a copy of the alert log in the order alerts were recorded.
func (w *World) Alerts() []LeakAlert {
	out := make([]LeakAlert, len(w.alerts))
	copy(out, w.alerts)
	return out
}

// AlertCount returns the length of the alert log.
func (w *World) AlertCount() int {
	return len(w.alerts)
}

// Clone returns a deep copy that shares no slices with w.
func (w *World) Clone() *World {
	c := &World{
		Zones:        append([]Zone(nil), w.Zones...),
		Reservoir:    w.Reservoir,
		Destinations: append([]Destination(nil), w.Destinations...),
		Floors:       w.Floors,
		alerts:       w.Alerts(),
	}
	return c
}

func (w *World) appendAlert(a LeakAlert) {
	w.alerts = append(w.alerts, a)
}
