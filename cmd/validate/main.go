// Command validate checks a scenario report produced by cmd/scenario against
// the network's conservation and ordering rules: allocations never exceed the
// rerouted amount or a destination's demand, the reservoir level matches the
// water saved by each reroute, and the alert log only grows in time order.
//
// Usage:
//
//	go run ./cmd/validate -report data/scenarios/demo.json -saved-fraction 0.3
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"github.com/couchcryptid/water-reuse-sim/internal/simulation"
)

const epsilon = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	reportPath := flag.String("report", "", "path to a scenario JSON report")
	savedFraction := flag.Float64("saved-fraction", 0.3, "share of each reroute amount saved to the reservoir")
	flag.Parse()

	if *reportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*reportPath, *savedFraction))
}

func run(path string, savedFraction float64) int {
	fmt.Println("=== Water Reuse Report Validation ===")
	fmt.Println()

	report, err := loadReport(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load report: %v\n", err)
		return 1
	}

	phases := validate(report, savedFraction)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Steps: %d, alerts: %d, destinations: %d\n",
		len(report.Steps), len(report.Alerts), len(report.Final.Destinations))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadReport(path string) (simulation.Report, error) {
	var r simulation.Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, err
	}
	return r, nil
}

func validate(r simulation.Report, savedFraction float64) []*phase {
	return []*phase{
		validateStepSequence(r),
		validateAllocations(r),
		validateReservoir(r, savedFraction),
		validateAlertLog(r),
		validateSummary(r),
	}
}

// ── Step sequence ──

func validateStepSequence(r simulation.Report) *phase {
	p := &phase{name: "Step sequence"}
	for i, s := range r.Steps {
		if s.Step != i+1 {
			p.errorf("step %d: reported as step %d", i+1, s.Step)
		}
		if len(s.Diversions) != len(s.Leaks) || len(s.Alerts) != len(s.Leaks) {
			p.errorf("step %d: %d leaks but %d diversions and %d alerts",
				s.Step, len(s.Leaks), len(s.Diversions), len(s.Alerts))
		}
		for j, l := range s.Leaks {
			if j < len(s.Alerts) && s.Alerts[j].Zone != l.Zone {
				p.errorf("step %d: alert %d zone %q does not match leak zone %q", s.Step, j, s.Alerts[j].Zone, l.Zone)
			}
		}
	}
	return p
}

// ── Allocations ──

func validateAllocations(r simulation.Report) *phase {
	p := &phase{name: "Allocation bounds"}

	demand := make(map[string]float64, len(r.Final.Destinations))
	for _, d := range r.Final.Destinations {
		demand[d.ID] = d.Demand
	}

	supplied := map[string]float64{}
	for _, s := range r.Steps {
		for _, div := range s.Diversions {
			checkDiversion(p, s.Step, div, demand)
			for _, a := range div.Allocations {
				supplied[a.Destination] += a.Volume
			}
		}
	}

	for _, d := range r.Final.Destinations {
		if !floatEq(supplied[d.ID], d.Supplied) {
			p.errorf("destination %s: final supplied %.4f, allocations sum to %.4f", d.ID, d.Supplied, supplied[d.ID])
		}
	}
	return p
}

func checkDiversion(p *phase, step int, div domain.Diversion, demand map[string]float64) {
	if div.Allocated() > div.Amount+epsilon {
		p.errorf("step %d: %s allocated %.4f exceeds amount %.4f", step, div.Zone, div.Allocated(), div.Amount)
	}
	if div.FlowReduced < -epsilon {
		p.errorf("step %d: %s flow increased by reroute", step, div.Zone)
	}
	for _, a := range div.Allocations {
		want, ok := demand[a.Destination]
		if !ok {
			p.errorf("step %d: allocation to unknown destination %q", step, a.Destination)
			continue
		}
		if a.Volume < -epsilon || a.Volume > want+epsilon {
			p.errorf("step %d: %s received %.4f, demand %.4f", step, a.Destination, a.Volume, want)
		}
	}
}

// ── Reservoir ──

// validateReservoir replays the reservoir level from the starting level: each
// reroute that reached a destination saves savedFraction of its amount, and
// the level after a step is the previous level plus those savings, capped at 100.
func validateReservoir(r simulation.Report, savedFraction float64) *phase {
	p := &phase{name: "Reservoir accounting"}
	prev := r.StartReservoirLevel
	for _, s := range r.Steps {
		var saved float64
		for _, div := range s.Diversions {
			want := 0.0
			if len(div.Allocations) > 0 {
				want = div.Amount * savedFraction
			}
			if !floatEq(div.Saved, want) {
				p.errorf("step %d: %s saved %.4f, want %.4f", s.Step, div.Zone, div.Saved, want)
			}
			saved += div.Saved
		}

		if s.ReservoirLevel < 0 || s.ReservoirLevel > 100 {
			p.errorf("step %d: reservoir level %.4f outside [0, 100]", s.Step, s.ReservoirLevel)
		}
		if want := min(100, prev+saved); !floatEq(s.ReservoirLevel, want) {
			p.errorf("step %d: reservoir level %.4f, want %.4f", s.Step, s.ReservoirLevel, want)
		}
		prev = s.ReservoirLevel
	}
	if len(r.Steps) > 0 && !floatEq(r.Final.Reservoir.Level, r.Steps[len(r.Steps)-1].ReservoirLevel) {
		p.errorf("final reservoir level %.4f differs from last step", r.Final.Reservoir.Level)
	}
	return p
}

// ── Alert log ──

func validateAlertLog(r simulation.Report) *phase {
	p := &phase{name: "Alert log ordering"}

	var stepAlerts []domain.LeakAlert
	for _, s := range r.Steps {
		stepAlerts = append(stepAlerts, s.Alerts...)
	}
	if len(stepAlerts) != len(r.Alerts) {
		p.errorf("alert log has %d entries, steps recorded %d", len(r.Alerts), len(stepAlerts))
	}

	for i, a := range r.Alerts {
		if a.Status != domain.AlertStatusNew {
			p.errorf("alert %d: status %q, want %q", i, a.Status, domain.AlertStatusNew)
		}
		if _, ok := domain.ParseSeverity(string(a.Severity)); !ok {
			p.errorf("alert %d: unknown severity %q", i, a.Severity)
		}
		if i > 0 && a.Timestamp.Before(r.Alerts[i-1].Timestamp) {
			p.errorf("alert %d: timestamp %s precedes alert %d", i, a.Timestamp, i-1)
		}
		if i < len(stepAlerts) && !a.Timestamp.Equal(stepAlerts[i].Timestamp) {
			p.errorf("alert %d: log entry does not match step record", i)
		}
	}
	return p
}

// ── Summary ──

func validateSummary(r simulation.Report) *phase {
	p := &phase{name: "Summary consistency"}
	s := r.Summary
	if s.Steps != len(r.Steps) {
		p.errorf("summary steps %d, report has %d", s.Steps, len(r.Steps))
	}
	if s.AlertCount != len(r.Alerts) {
		p.errorf("summary alert count %d, log has %d", s.AlertCount, len(r.Alerts))
	}
	var total float64
	for _, d := range r.Final.Destinations {
		total += d.Supplied
	}
	if !floatEq(s.TotalReused, total) {
		p.errorf("summary total reused %.4f, destinations sum to %.4f", s.TotalReused, total)
	}
	if len(r.Alerts) > 0 {
		if !s.FirstAlert.Equal(r.Alerts[0].Timestamp) || !s.LastAlert.Equal(r.Alerts[len(r.Alerts)-1].Timestamp) {
			p.errorf("summary alert window does not match the alert log")
		}
	}
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
