// Package domain models a small municipal water-distribution network and the
// decision logic that runs against it each simulation step.
//
// # Network Model
//
// A [World] holds one [Zone] per monitored segment of the network, a single
// storage [Reservoir], and the downstream reuse [Destination] list. Zones and
// destinations are ordered; that order is the enumeration order used by every
// component and never changes during a run. The default network is:
//
//	Zone          Baseline flow   Baseline pressure
//	residential   50 L/min        30 psi
//	commercial    80 L/min        35 psi
//	industrial    120 L/min       40 psi
//	park          20 L/min        25 psi
//
//	Destination         Demand
//	toilet_flushing     10 L/min
//	garden_irrigation   15 L/min
//	car_wash             5 L/min
//	cooling_system      20 L/min
//
// Flow and pressure never drop below the configured floors (10 L/min, 15 psi).
// The reservoir level is a percentage kept within [0, 100].
//
// # Leak Detection
//
// A zone is flagged when both readings drift from baseline at once:
//
//	flow / baseline_flow         > 1 + flow_threshold      (default 0.3)
//	pressure / baseline_pressure < 1 - pressure_threshold  (default 0.2)
//
// A flow spike alone or a pressure drop alone is not a leak. Severity is a pure
// function of the flow ratio:
//
//	ratio > 1.8         large
//	1.5 < ratio <= 1.8  medium
//	otherwise           small
//
// Zones with a non-positive baseline are never reported; [Topology.Validate]
// rejects such networks before a run starts.
//
// # Rerouting
//
// Each severity maps to a nominal reroute volume (15, 30, 50). The volume is
// shared across destinations in proportion to demand, each share capped at the
// destination's own demand:
//
//	allocation_i = min(demand_i, amount * demand_i / total_demand)
//
// Volume a capped destination cannot absorb is not handed to the others. 70% of
// the nominal amount is removed from the leaking zone's flow and 30% is added
// to the reservoir. When total demand is zero the reroute is a no-op.
//
// # Alerts
//
// Every detected leak produces an immutable [LeakAlert] appended to the world's
// alert log. The log only grows. Delivery to recipients is delegated to an
// [AlertTransport] and is fire-and-forget.
package domain
