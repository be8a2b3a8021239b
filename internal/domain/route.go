package domain

// RouterConfig holds the severity-to-volume table and the split between
// water removed from the leak path and water saved to storage.
type RouterConfig struct {
	RerouteVolumes    map[Severity]float64
	DiversionFraction float64
	SavedFraction     float64
}

// Allocation is the volume a single destination received from one reroute.
type Allocation struct {
	Destination string  `json:"destination"`
	Volume      float64 `json:"volume"`
}

// Diversion describes the outcome of one reroute.
type Diversion struct {
	Zone        ZoneID       `json:"zone"`
	Severity    Severity     `json:"severity"`
	Amount      float64      `json:"amount"` // nominal volume for the severity
	Allocations []Allocation `json:"allocations,omitempty"`
	FlowReduced float64      `json:"flow_reduced"`
	Saved       float64      `json:"saved"`
}

// Allocated sums the volume actually absorbed by destinations.
func (d Diversion) Allocated() float64 {
	var total float64
	for _, a := range d.Allocations {
		total += a.Volume
	}
	return total
}

// Router diverts recovered water from a leaking zone.
type Router struct {
	cfg RouterConfig
}

// NewRouter creates a Router with the given tables.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// Reroute distributes the severity's nominal volume across destinations in
// proportion to demand, lowers the zone's flow, and tops up the reservoir.
//
// Each share is capped at the destination's demand and the excess is dropped,
// not redistributed. With no demand (or no volume for the severity) nothing is
// mutated. The returned Amount is always the nominal volume.
func (r *Router) Reroute(w *World, zone ZoneID, severity Severity) Diversion {
	amount := r.cfg.RerouteVolumes[severity]
	d := Diversion{Zone: zone, Severity: severity, Amount: amount}

	total := w.TotalDemand()
	if amount <= 0 || total <= 0 {
		return d
	}

	d.Allocations = make([]Allocation, 0, len(w.Destinations))
	for i := range w.Destinations {
		dest := &w.Destinations[i]
		alloc := min(dest.Demand, amount*dest.Demand/total)
		dest.Supplied += alloc
		d.Allocations = append(d.Allocations, Allocation{Destination: dest.ID, Volume: alloc})
	}

	if z := w.Zone(zone); z != nil {
		before := z.Flow
		z.Flow -= amount * r.cfg.DiversionFraction
		w.Floors.Apply(z)
		d.FlowReduced = before - z.Flow
	}

	d.Saved = amount * r.cfg.SavedFraction
	w.Reservoir.Fill(d.Saved)
	return d
}
