package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/water-reuse-sim/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Simulation settings.
	Steps           int
	StepInterval    time.Duration
	Seed            uint64
	LeakSchedule    []domain.ScheduledLeak
	TopologyFile    string
	Topology        domain.Topology
	AlertRecipients []string

	// Detection and repair tuning.
	FlowThreshold     float64
	PressureThreshold float64
	RepairThreshold   float64

	// Kafka alert transport.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string

	// Webhook alert transport.
	WebhookURL     string
	WebhookTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	steps, err := strconv.Atoi(sharedcfg.EnvOrDefault("SIM_STEPS", "8"))
	if err != nil || steps <= 0 {
		return nil, errors.New("invalid SIM_STEPS: must be a positive integer")
	}

	stepInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("SIM_STEP_INTERVAL", "2s"))
	if err != nil || stepInterval < 0 {
		return nil, errors.New("invalid SIM_STEP_INTERVAL")
	}

	seed, err := parseSeed()
	if err != nil {
		return nil, err
	}

	flowThreshold, err := parseFloat("FLOW_THRESHOLD", "0.3")
	if err != nil {
		return nil, err
	}
	pressureThreshold, err := parseFloat("PRESSURE_THRESHOLD", "0.2")
	if err != nil {
		return nil, err
	}
	repairThreshold, err := parseFloat("REPAIR_THRESHOLD", "20")
	if err != nil {
		return nil, err
	}
	if flowThreshold < 0 {
		return nil, errors.New("invalid FLOW_THRESHOLD: must not be negative")
	}
	if pressureThreshold < 0 || pressureThreshold >= 1 {
		return nil, errors.New("invalid PRESSURE_THRESHOLD: must be within [0, 1)")
	}
	if repairThreshold < 0 {
		return nil, errors.New("invalid REPAIR_THRESHOLD: must not be negative")
	}

	topologyFile := os.Getenv("TOPOLOGY_FILE")
	topology := domain.DefaultTopology()
	if topologyFile != "" {
		topology, err = LoadTopology(topologyFile)
		if err != nil {
			return nil, err
		}
	}
	if err := topology.Validate(); err != nil {
		return nil, fmt.Errorf("invalid TOPOLOGY_FILE: %w", err)
	}

	// An explicitly empty LEAK_SCHEDULE disables injection.
	rawSchedule := "3:residential:medium"
	if v, ok := os.LookupEnv("LEAK_SCHEDULE"); ok {
		rawSchedule = v
	}
	schedule, err := ParseSchedule(rawSchedule)
	if err != nil {
		return nil, err
	}
	if err := checkScheduleZones(schedule, topology); err != nil {
		return nil, err
	}

	webhookTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("ALERT_WEBHOOK_TIMEOUT", "5s"))
	if err != nil || webhookTimeout <= 0 {
		return nil, errors.New("invalid ALERT_WEBHOOK_TIMEOUT")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Steps:           steps,
		StepInterval:    stepInterval,
		Seed:            seed,
		LeakSchedule:    schedule,
		TopologyFile:    topologyFile,
		Topology:        topology,
		AlertRecipients: splitList(sharedcfg.EnvOrDefault("ALERT_RECIPIENTS", strings.Join(domain.DefaultRecipients, ","))),

		FlowThreshold:     flowThreshold,
		PressureThreshold: pressureThreshold,
		RepairThreshold:   repairThreshold,

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "leak-alerts"),

		WebhookURL:     os.Getenv("ALERT_WEBHOOK_URL"),
		WebhookTimeout: webhookTimeout,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required")
	}

	return cfg, nil
}

// DetectorConfig returns the detection thresholds.
func (c *Config) DetectorConfig() domain.DetectorConfig {
	return domain.DetectorConfig{
		FlowThreshold:     c.FlowThreshold,
		PressureThreshold: c.PressureThreshold,
	}
}

// ParseSchedule parses a comma-separated list of "step:zone:severity" entries.
// An empty string yields no scheduled leaks.
func ParseSchedule(s string) ([]domain.ScheduledLeak, error) {
	var out []domain.ScheduledLeak
	for _, entry := range splitList(s) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid LEAK_SCHEDULE entry %q: want step:zone:severity", entry)
		}
		step, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid LEAK_SCHEDULE entry %q: step must be a positive integer", entry)
		}
		severity, ok := domain.ParseSeverity(strings.TrimSpace(parts[2]))
		if !ok {
			return nil, fmt.Errorf("invalid LEAK_SCHEDULE entry %q: unknown severity", entry)
		}
		out = append(out, domain.ScheduledLeak{
			Step:     step,
			Zone:     domain.ZoneID(strings.TrimSpace(parts[1])),
			Severity: severity,
		})
	}
	return out, nil
}

func checkScheduleZones(schedule []domain.ScheduledLeak, t domain.Topology) error {
	known := make(map[domain.ZoneID]bool, len(t.Zones))
	for _, z := range t.Zones {
		known[z.ID] = true
	}
	for _, s := range schedule {
		if !known[s.Zone] {
			return fmt.Errorf("invalid LEAK_SCHEDULE: unknown zone %q", s.Zone)
		}
	}
	return nil
}

func parseSeed() (uint64, error) {
	s := os.Getenv("SIM_SEED")
	if s == "" {
		return uint64(time.Now().UnixNano()), nil
	}
	seed, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("invalid SIM_SEED: must be an unsigned integer")
	}
	return seed, nil
}

func parseFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
