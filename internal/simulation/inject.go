package simulation

import "github.com/couchcryptid/water-reuse-sim/internal/domain"

// LeakInjector simulates a leak by scaling a zone's readings. It is a demo and
// test hook; detection never depends on it.
type LeakInjector struct {
	factors map[domain.Severity]domain.InjectionFactor
}

// NewLeakInjector creates an injector using the per-severity multipliers.
func NewLeakInjector(factors map[domain.Severity]domain.InjectionFactor) *LeakInjector {
	return &LeakInjector{factors: factors}
}

// Inject raises flow, lowers pressure, and marks the zone leaking. It reports
// false when the zone or severity is unknown.
func (i *LeakInjector) Inject(w *domain.World, zone domain.ZoneID, severity domain.Severity) bool {
	f, ok := i.factors[severity]
	if !ok {
		return false
	}
	z := w.Zone(zone)
	if z == nil {
		return false
	}
	z.Flow *= f.Flow
	z.Pressure *= f.Pressure
	w.Floors.Apply(z)
	z.Status = domain.StatusLeaking
	return true
}
