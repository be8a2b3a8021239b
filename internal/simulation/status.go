package simulation

import (
	"context"
	"time"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
)

// Summary is the end-of-run performance report.
type Summary struct {
	Steps          int       `json:"steps"`
	TotalReused    float64   `json:"total_reused"`
	ReservoirLevel float64   `json:"reservoir_level"`
	AlertCount     int       `json:"alert_count"`
	FirstAlert     time.Time `json:"first_alert,omitzero"`
	LastAlert      time.Time `json:"last_alert,omitzero"`
}

// DestinationStatus is a destination with its utilization precomputed.
type DestinationStatus struct {
	ID          string  `json:"id"`
	Demand      float64 `json:"demand"`
	Supplied    float64 `json:"supplied"`
	Utilization float64 `json:"utilization"`
}

// Status is a read-only view of the network for presentation.
type Status struct {
	Step         int                 `json:"step"`
	State        State               `json:"state"`
	Zones        []domain.Zone       `json:"zones"`
	Reservoir    domain.Reservoir    `json:"reservoir"`
	Destinations []DestinationStatus `json:"destinations"`
	AlertCount   int                 `json:"alert_count"`
	RecentAlerts []domain.LeakAlert  `json:"recent_alerts"`
}

// Summary reports totals for the run so far.
func (d *Driver) Summary() Summary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Summary{
		Steps:          d.step,
		TotalReused:    d.world.TotalSupplied(),
		ReservoirLevel: d.world.Reservoir.Level,
		AlertCount:     d.world.AlertCount(),
	}
	if alerts := d.world.Alerts(); len(alerts) > 0 {
		s.FirstAlert = alerts[0].Timestamp
		s.LastAlert = alerts[len(alerts)-1].Timestamp
	}
	return s
}

// Snapshot returns the current network status with the most recent alerts.
func (d *Driver) Snapshot() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w := d.world.Clone()
	alerts := w.Alerts()
	recent := alerts[max(0, len(alerts)-recentAlertCount):]

	dests := make([]DestinationStatus, 0, len(w.Destinations))
	for _, dest := range w.Destinations {
		dests = append(dests, DestinationStatus{
			ID:          dest.ID,
			Demand:      dest.Demand,
			Supplied:    dest.Supplied,
			Utilization: dest.Utilization(),
		})
	}

	return Status{
		Step:         d.step,
		State:        d.state,
		Zones:        w.Zones,
		Reservoir:    w.Reservoir,
		Destinations: dests,
		AlertCount:   len(alerts),
		RecentAlerts: recent,
	}
}

// Report is the full record of a completed run: the reservoir level before
// the first reported step, every step, the summary, the final network status,
// and the alert log in recording order.
type Report struct {
	Seed                uint64             `json:"seed"`
	StartReservoirLevel float64            `json:"start_reservoir_level"`
	Steps               []StepReport       `json:"steps"`
	Summary             Summary            `json:"summary"`
	Final               Status             `json:"final"`
	Alerts              []domain.LeakAlert `json:"alerts"`
}

// RunReport steps to completion without pausing and returns everything that
// happened. It stops early if ctx is cancelled.
func (d *Driver) RunReport(ctx context.Context) Report {
	r := Report{StartReservoirLevel: d.World().Reservoir.Level}
	for ctx.Err() == nil {
		step, ok := d.Step(ctx)
		if !ok {
			break
		}
		r.Steps = append(r.Steps, step)
	}
	r.Summary = d.Summary()
	r.Final = d.Snapshot()
	r.Alerts = d.World().Alerts()
	return r
}
