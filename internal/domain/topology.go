package domain

import (
	"errors"
	"fmt"
)

// ZoneSpec describes a monitored zone. Initial readings of zero start the
// zone at its baseline.
type ZoneSpec struct {
	ID               ZoneID  `yaml:"id"`
	BaselineFlow     float64 `yaml:"baseline_flow"`
	BaselinePressure float64 `yaml:"baseline_pressure"`
	InitialFlow      float64 `yaml:"initial_flow"`
	InitialPressure  float64 `yaml:"initial_pressure"`
}

// DestinationSpec describes a reuse destination.
type DestinationSpec struct {
	ID     string  `yaml:"id"`
	Demand float64 `yaml:"demand"`
}

// InjectionFactor is the multiplier a simulated leak applies to a zone's readings.
type InjectionFactor struct {
	Flow     float64 `yaml:"flow"`
	Pressure float64 `yaml:"pressure"`
}

// NoiseBounds caps the per-step ambient drift, applied as a uniform draw in [-bound, bound].
type NoiseBounds struct {
	Flow     float64 `yaml:"flow"`
	Pressure float64 `yaml:"pressure"`
}

// Topology is the full static description of a network and its tuning tables.
type Topology struct {
	Zones             []ZoneSpec                   `yaml:"zones"`
	Destinations      []DestinationSpec            `yaml:"destinations"`
	ReservoirLevel    float64                      `yaml:"reservoir_level"`
	Floors            Floors                       `yaml:"floors"`
	RerouteVolumes    map[Severity]float64         `yaml:"reroute_volumes"`
	InjectionFactors  map[Severity]InjectionFactor `yaml:"injection_factors"`
	DiversionFraction float64                      `yaml:"diversion_fraction"`
	SavedFraction     float64                      `yaml:"saved_fraction"`
	Noise             NoiseBounds                  `yaml:"noise"`
}

// DefaultTopology returns the four-zone municipal network.
func DefaultTopology() Topology {
	return Topology{
		Zones: []ZoneSpec{
			{ID: ZoneResidential, BaselineFlow: 50, BaselinePressure: 30},
			{ID: ZoneCommercial, BaselineFlow: 80, BaselinePressure: 35},
			{ID: ZoneIndustrial, BaselineFlow: 120, BaselinePressure: 40},
			{ID: ZonePark, BaselineFlow: 20, BaselinePressure: 25},
		},
		Destinations: []DestinationSpec{
			{ID: "toilet_flushing", Demand: 10},
			{ID: "garden_irrigation", Demand: 15},
			{ID: "car_wash", Demand: 5},
			{ID: "cooling_system", Demand: 20},
		},
		ReservoirLevel: 80,
		Floors:         Floors{Flow: 10, Pressure: 15},
		RerouteVolumes: map[Severity]float64{
			SeveritySmall:  15,
			SeverityMedium: 30,
			SeverityLarge:  50,
		},
		InjectionFactors: map[Severity]InjectionFactor{
			SeveritySmall:  {Flow: 1.4, Pressure: 0.75},
			SeverityMedium: {Flow: 1.7, Pressure: 0.6},
			SeverityLarge:  {Flow: 2.2, Pressure: 0.4},
		},
		DiversionFraction: 0.7,
		SavedFraction:     0.3,
		Noise:             NoiseBounds{Flow: 5, Pressure: 2},
	}
}

// RouterConfig extracts the routing tables from the topology.
func (t Topology) RouterConfig() RouterConfig {
	return RouterConfig{
		RerouteVolumes:    t.RerouteVolumes,
		DiversionFraction: t.DiversionFraction,
		SavedFraction:     t.SavedFraction,
	}
}

// Validate reports the first structural problem with the topology.
// Zero baselines are rejected here so the detector never divides by zero.
func (t Topology) Validate() error {
	if len(t.Zones) == 0 {
		return errors.New("topology: at least one zone is required")
	}
	seenZones := make(map[ZoneID]bool, len(t.Zones))
	for _, z := range t.Zones {
		if z.ID == "" {
			return errors.New("topology: zone id is required")
		}
		if seenZones[z.ID] {
			return fmt.Errorf("topology: duplicate zone %q", z.ID)
		}
		seenZones[z.ID] = true
		if z.BaselineFlow <= 0 || z.BaselinePressure <= 0 {
			return fmt.Errorf("topology: zone %q baselines must be positive", z.ID)
		}
		if z.InitialFlow < 0 || z.InitialPressure < 0 {
			return fmt.Errorf("topology: zone %q initial readings must not be negative", z.ID)
		}
	}

	seenDest := make(map[string]bool, len(t.Destinations))
	for _, d := range t.Destinations {
		if d.ID == "" {
			return errors.New("topology: destination id is required")
		}
		if seenDest[d.ID] {
			return fmt.Errorf("topology: duplicate destination %q", d.ID)
		}
		seenDest[d.ID] = true
		if d.Demand < 0 {
			return fmt.Errorf("topology: destination %q demand must not be negative", d.ID)
		}
	}

	if t.ReservoirLevel < 0 || t.ReservoirLevel > 100 {
		return fmt.Errorf("topology: reservoir level %.1f outside [0, 100]", t.ReservoirLevel)
	}
	if t.Floors.Flow < 0 || t.Floors.Pressure < 0 {
		return errors.New("topology: floors must not be negative")
	}
	for _, s := range Severities {
		v, ok := t.RerouteVolumes[s]
		if !ok || v < 0 {
			return fmt.Errorf("topology: reroute volume for %q missing or negative", s)
		}
		f, ok := t.InjectionFactors[s]
		if !ok || f.Flow <= 0 || f.Pressure <= 0 {
			return fmt.Errorf("topology: injection factor for %q missing or non-positive", s)
		}
	}
	if t.DiversionFraction < 0 || t.DiversionFraction > 1 {
		return errors.New("topology: diversion fraction must be within [0, 1]")
	}
	if t.SavedFraction < 0 || t.SavedFraction > 1 {
		return errors.New("topology: saved fraction must be within [0, 1]")
	}
	if t.Noise.Flow < 0 || t.Noise.Pressure < 0 {
		return errors.New("topology: noise bounds must not be negative")
	}
	return nil
}
