package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"github.com/couchcryptid/water-reuse-sim/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReport() simulation.Report {
	ts := time.Date(2025, time.March, 22, 9, 0, 0, 0, time.UTC)
	alert := domain.LeakAlert{Timestamp: ts, Zone: domain.ZoneResidential, Severity: domain.SeverityMedium, Flow: 85, Pressure: 18, Status: domain.AlertStatusNew}
	div := domain.Diversion{
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
	}
	return simulation.Report{
		StartReservoirLevel: 80,
		Steps: []simulation.StepReport{
			{Step: 1, ReservoirLevel: 80},
			{
				Step:           2,
				Leaks:          []domain.LeakEvent{{Zone: domain.ZoneResidential, Severity: domain.SeverityMedium, Flow: 85, Pressure: 18}},
				Diversions:     []domain.Diversion{div},
				Alerts:         []domain.LeakAlert{alert},
				ReservoirLevel: 89,
			},
		},
		Summary: simulation.Summary{Steps: 2, TotalReused: 30, ReservoirLevel: 89, AlertCount: 1, FirstAlert: ts, LastAlert: ts},
		Final: simulation.Status{
			Step:      2,
			Reservoir: domain.Reservoir{Level: 89},
			Destinations: []simulation.DestinationStatus{
				{ID: "toilet_flushing", Demand: 10, Supplied: 6},
				{ID: "garden_irrigation", Demand: 15, Supplied: 9},
				{ID: "car_wash", Demand: 5, Supplied: 3},
				{ID: "cooling_system", Demand: 20, Supplied: 12},
			},
			AlertCount: 1,
		},
		Alerts: []domain.LeakAlert{alert},
	}
}

func failedPhases(r simulation.Report) []string {
	var names []string
	for _, p := range validate(r, 0.3) {
		if !p.passed() {
			names = append(names, p.name)
		}
	}
	return names
}

func TestValidate_CleanReportPasses(t *testing.T) {
	assert.Empty(t, failedPhases(validReport()))
}

func TestValidate_DetectsViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *simulation.Report)
		phase  string
	}{
		{
			name:   "allocation above demand",
			mutate: func(r *simulation.Report) { r.Final.Destinations[2].Demand = 1 },
			phase:  "Allocation bounds",
		},
		{
			name:   "allocations above amount",
			mutate: func(r *simulation.Report) { r.Steps[1].Diversions[0].Amount = 10 },
			phase:  "Allocation bounds",
		},
		{
			name:   "reservoir over full",
			mutate: func(r *simulation.Report) { r.Steps[1].ReservoirLevel = 101; r.Final.Reservoir.Level = 101 },
			phase:  "Reservoir accounting",
		},
		{
			name:   "reservoir drains",
			mutate: func(r *simulation.Report) { r.Steps[0].ReservoirLevel = 75 },
			phase:  "Reservoir accounting",
		},
		{
			name:   "saved share drift",
			mutate: func(r *simulation.Report) { r.Steps[1].Diversions[0].Saved = 8 },
			phase:  "Reservoir accounting",
		},
		{
			name:   "level does not match savings",
			mutate: func(r *simulation.Report) { r.Steps[1].ReservoirLevel = 88; r.Final.Reservoir.Level = 88 },
			phase:  "Reservoir accounting",
		},
		{
			name:   "start level missing",
			mutate: func(r *simulation.Report) { r.StartReservoirLevel = 0 },
			phase:  "Reservoir accounting",
		},
		{
			name: "alert out of order",
			mutate: func(r *simulation.Report) {
				late := r.Alerts[0]
				early := late
				early.Timestamp = late.Timestamp.Add(-time.Minute)
				r.Alerts = append(r.Alerts, early)
			},
			phase: "Alert log ordering",
		},
		{
			name:   "step numbering gap",
			mutate: func(r *simulation.Report) { r.Steps[1].Step = 3 },
			phase:  "Step sequence",
		},
		{
			name:   "summary total drift",
			mutate: func(r *simulation.Report) { r.Summary.TotalReused = 31 },
			phase:  "Summary consistency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.mutate(&r)
			assert.Contains(t, failedPhases(r), tt.phase)
		})
	}
}

func TestValidate_ReservoirCapsAtFull(t *testing.T) {
	r := validReport()
	r.StartReservoirLevel = 95
	r.Steps[0].ReservoirLevel = 95
	r.Steps[1].ReservoirLevel = 100
	r.Final.Reservoir.Level = 100
	r.Summary.ReservoirLevel = 100

	assert.Empty(t, failedPhases(r))
}

func TestValidate_NoSavingsWithoutAllocations(t *testing.T) {
	r := validReport()
	r.Steps[1].Diversions[0].Allocations = nil
	r.Steps[1].Diversions[0].Saved = 0
	r.Steps[1].ReservoirLevel = 80
	r.Final.Reservoir.Level = 80
	for i := range r.Final.Destinations {
		r.Final.Destinations[i].Supplied = 0
	}
	r.Summary.TotalReused = 0

	assert.Empty(t, failedPhases(r))
}

func TestRun_ReportFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, mustJSON(t, validReport()), 0o600))
	assert.Equal(t, 0, run(good, 0.3))

	assert.Equal(t, 1, run(filepath.Join(dir, "missing.json"), 0.3))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
