package domain

// Severity thresholds on the flow ratio. A ratio equal to a threshold falls
// into the lower tier.
const (
	largeFlowRatio  = 1.8
	mediumFlowRatio = 1.5
)

// DetectorConfig holds the fractional drift that must be exceeded before a
// zone is considered anomalous.
type DetectorConfig struct {
	FlowThreshold     float64
	PressureThreshold float64
}

// DefaultDetectorConfig returns the standard 30% flow / 20% pressure thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{FlowThreshold: 0.3, PressureThreshold: 0.2}
}

// Detector classifies zones as normal or leaking.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a Detector with the given thresholds.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns one LeakEvent per anomalous zone, in zone order.
// It never mutates the world.
func (d *Detector) Detect(w *World) []LeakEvent {
	var leaks []LeakEvent
	for _, z := range w.Zones {
		if z.BaselineFlow <= 0 || z.BaselinePressure <= 0 {
			continue
		}
		flowRatio := z.Flow / z.BaselineFlow
		pressureRatio := z.Pressure / z.BaselinePressure

		if flowRatio > 1+d.cfg.FlowThreshold && pressureRatio < 1-d.cfg.PressureThreshold {
			leaks = append(leaks, LeakEvent{
				Zone:     z.ID,
				Severity: ClassifySeverity(flowRatio),
				Flow:     z.Flow,
				Pressure: z.Pressure,
			})
		}
	}
	return leaks
}

// ClassifySeverity maps a flow ratio to a severity tier.
func ClassifySeverity(flowRatio float64) Severity {
	switch {
	case flowRatio > largeFlowRatio:
		return SeverityLarge
	case flowRatio > mediumFlowRatio:
		return SeverityMedium
	default:
		return SeveritySmall
	}
}
