package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func worldWithReadings(t *testing.T, zone ZoneID, flow, pressure float64) *World {
	t.Helper()
	w := NewWorld(DefaultTopology())
	z := w.Zone(zone)
	require.NotNil(t, z)
	z.Flow = flow
	z.Pressure = pressure
	return w
}

func TestDetect_BaselineWorldHasNoLeaks(t *testing.T) {
	w := NewWorld(DefaultTopology())
	assert.Empty(t, NewDetector(DefaultDetectorConfig()).Detect(w))
}

func TestDetect_RequiresBothConditions(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())

	tests := []struct {
		name     string
		flow     float64
		pressure float64
		leak     bool
	}{
		{"flow spike only", 100, 30, false},
		{"pressure drop only", 50, 16, false},
		{"both drift", 70, 20, true},
		{"flow ratio exactly 1.3", 65, 20, false},
		{"pressure ratio exactly 0.8", 70, 24, false},
		{"just past both thresholds", 65.01, 23.99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := worldWithReadings(t, ZoneResidential, tt.flow, tt.pressure)
			leaks := d.Detect(w)
			if tt.leak {
				require.Len(t, leaks, 1)
				assert.Equal(t, ZoneResidential, leaks[0].Zone)
			} else {
				assert.Empty(t, leaks)
			}
		})
	}
}

func TestDetect_ScenarioA_RatioAtMediumBoundaryIsSmall(t *testing.T) {
	w := worldWithReadings(t, ZoneResidential, 75, 22)

	leaks := NewDetector(DefaultDetectorConfig()).Detect(w)

	require.Len(t, leaks, 1)
	assert.Equal(t, LeakEvent{Zone: ZoneResidential, Severity: SeveritySmall, Flow: 75, Pressure: 22}, leaks[0])
}

func TestDetect_OutputFollowsZoneOrder(t *testing.T) {
	w := NewWorld(DefaultTopology())
	for _, id := range []ZoneID{ZonePark, ZoneResidential, ZoneIndustrial} {
		z := w.Zone(id)
		z.Flow = z.BaselineFlow * 2
		z.Pressure = z.BaselinePressure * 0.5
	}

	leaks := NewDetector(DefaultDetectorConfig()).Detect(w)

	require.Len(t, leaks, 3)
	assert.Equal(t, ZoneResidential, leaks[0].Zone)
	assert.Equal(t, ZoneIndustrial, leaks[1].Zone)
	assert.Equal(t, ZonePark, leaks[2].Zone)
}

func TestDetect_CustomThresholds(t *testing.T) {
	w := worldWithReadings(t, ZoneCommercial, 90, 33)

	assert.Empty(t, NewDetector(DefaultDetectorConfig()).Detect(w))

	loose := NewDetector(DetectorConfig{FlowThreshold: 0.1, PressureThreshold: 0.05})
	leaks := loose.Detect(w)
	require.Len(t, leaks, 1)
	assert.Equal(t, ZoneCommercial, leaks[0].Zone)
}

func TestDetect_ZeroBaselineIsNeverALeak(t *testing.T) {
	w := &World{Zones: []Zone{
		{ID: "ghost", Flow: 100, Pressure: 1, BaselineFlow: 0, BaselinePressure: 30},
		{ID: "drained", Flow: 100, Pressure: 1, BaselineFlow: 50, BaselinePressure: 0},
	}}
	assert.Empty(t, NewDetector(DefaultDetectorConfig()).Detect(w))
}

func TestDetect_Idempotent(t *testing.T) {
	w := worldWithReadings(t, ZoneIndustrial, 230, 15)
	before := w.Clone()
	d := NewDetector(DefaultDetectorConfig())

	first := d.Detect(w)
	second := d.Detect(w)

	assert.Equal(t, first, second)
	assert.Equal(t, before.Zones, w.Zones)
	assert.Equal(t, before.Reservoir, w.Reservoir)
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		ratio float64
		want  Severity
	}{
		{1.31, SeveritySmall},
		{1.5, SeveritySmall},
		{1.51, SeverityMedium},
		{1.8, SeverityMedium},
		{1.81, SeverityLarge},
		{3, SeverityLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifySeverity(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestDetect_RatioExactlyLargeBoundaryIsMedium(t *testing.T) {
	w := worldWithReadings(t, ZoneResidential, 90, 20)

	leaks := NewDetector(DefaultDetectorConfig()).Detect(w)

	require.Len(t, leaks, 1)
	assert.Equal(t, SeverityMedium, leaks[0].Severity)
}
