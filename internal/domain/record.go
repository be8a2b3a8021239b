package domain

import (
	"context"
	"log/slog"
)

// DefaultRecipients are the authorities notified of every leak.
var DefaultRecipients = []string{"water_department@city.gov", "maintenance_team@city.gov"}

// AlertTransport delivers an alert to its recipients. Delivery is
// fire-and-forget: implementations handle and report their own failures.
type AlertTransport interface {
	Dispatch(ctx context.Context, alert LeakAlert, recipients []string)
}

// Recorder turns leak events into alerts and appends them to the world's log.
type Recorder struct {
	recipients []string
	transport  AlertTransport
}

// NewRecorder creates a Recorder. A nil transport records without dispatching.
func NewRecorder(recipients []string, transport AlertTransport) *Recorder {
	return &Recorder{
		recipients: append([]string(nil), recipients...),
		transport:  transport,
	}
}

// Recipients returns a copy of the recipient list.
func (r *Recorder) Recipients() []string {
	return append([]string(nil), r.recipients...)
}

// Record builds a new alert for the event, appends it to the alert log, and
// hands it to the transport.
func (r *Recorder) Record(ctx context.Context, w *World, ev LeakEvent) LeakAlert {
	alert := LeakAlert{
		Timestamp: clock.Now(),
		Zone:      ev.Zone,
		Severity:  ev.Severity,
		Flow:      ev.Flow,
		Pressure:  ev.Pressure,
		Status:    AlertStatusNew,
	}
	w.appendAlert(alert)

	if r.transport != nil {
		r.transport.Dispatch(ctx, alert, r.Recipients())
	}
	return alert
}

// MultiTransport fans an alert out to every transport in order.
type MultiTransport []AlertTransport

func (m MultiTransport) Dispatch(ctx context.Context, alert LeakAlert, recipients []string) {
	for _, t := range m {
		t.Dispatch(ctx, alert, recipients)
	}
}

// LogTransport writes one structured log line per recipient.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a transport that only logs.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Dispatch(_ context.Context, alert LeakAlert, recipients []string) {
	for _, to := range recipients {
		t.logger.Info("leak alert sent",
			"recipient", to,
			"zone", alert.Zone,
			"severity", alert.Severity,
			"flow", alert.Flow,
			"pressure", alert.Pressure,
			"timestamp", alert.Timestamp,
		)
	}
}
