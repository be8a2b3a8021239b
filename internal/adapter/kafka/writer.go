package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/water-reuse-sim/internal/config"
	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"github.com/couchcryptid/water-reuse-sim/internal/observability"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const transportName = "kafka"

// AlertWriter publishes leak alerts to a Kafka topic.
// It implements domain.AlertTransport.
type AlertWriter struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// alertPayload is the JSON value written for each alert.
type alertPayload struct {
	domain.LeakAlert
	Recipients []string `json:"recipients"`
}

// NewAlertWriter creates an asynchronous Kafka producer for the configured alert topic.
// Messages are keyed by zone so alerts for one zone stay ordered within a partition.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *AlertWriter {
	aw := &AlertWriter{logger: logger, metrics: metrics}
	aw.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   aw.onCompletion,
	}
	return aw
}

// Dispatch queues the alert for delivery. Failures are logged and counted, never returned.
func (w *AlertWriter) Dispatch(ctx context.Context, alert domain.LeakAlert, recipients []string) {
	msg, err := serializeToMessage(alert, recipients)
	if err != nil {
		w.fail(err, alert)
		return
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		w.fail(err, alert)
	}
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

func (w *AlertWriter) onCompletion(msgs []kafkago.Message, err error) {
	if err == nil {
		return
	}
	w.logger.Error("kafka alert delivery failed", "error", err, "messages", len(msgs))
	w.metrics.AlertDispatchErrors.WithLabelValues(transportName).Add(float64(len(msgs)))
}

func (w *AlertWriter) fail(err error, alert domain.LeakAlert) {
	w.logger.Error("kafka alert dispatch failed", "error", err, "zone", alert.Zone, "severity", alert.Severity)
	w.metrics.AlertDispatchErrors.WithLabelValues(transportName).Inc()
}

// serializeToMessage marshals a LeakAlert and its recipients into a Kafka message.
// Each message gets a fresh event_id header so consumers can drop redelivered copies.
func serializeToMessage(alert domain.LeakAlert, recipients []string) (kafkago.Message, error) {
	data, err := json.Marshal(alertPayload{LeakAlert: alert, Recipients: recipients})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize leak alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.Zone),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "zone", Value: []byte(alert.Zone)},
			{Key: "severity", Value: []byte(alert.Severity)},
			{Key: "recorded_at", Value: []byte(alert.Timestamp.Format(time.RFC3339))},
			{Key: "event_id", Value: []byte(uuid.NewString())},
		},
	}, nil
}
