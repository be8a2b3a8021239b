package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/water-reuse-sim/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/water-reuse-sim/internal/adapter/kafka"
	"github.com/couchcryptid/water-reuse-sim/internal/adapter/webhook"
	"github.com/couchcryptid/water-reuse-sim/internal/config"
	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"github.com/couchcryptid/water-reuse-sim/internal/observability"
	"github.com/couchcryptid/water-reuse-sim/internal/simulation"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Alert transports: logging always, Kafka and webhook when configured.
	transports := domain.MultiTransport{domain.NewLogTransport(logger)}
	var alertWriter *kafkaadapter.AlertWriter
	var webhookClient *webhook.Client
	if cfg.KafkaEnabled {
		alertWriter = kafkaadapter.NewAlertWriter(cfg, logger, metrics)
		transports = append(transports, alertWriter)
		logger.Info("kafka alert transport enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	}
	if cfg.WebhookURL != "" {
		webhookClient = webhook.NewClient(cfg.WebhookURL, cfg.WebhookTimeout, logger, metrics)
		transports = append(transports, webhookClient)
		logger.Info("webhook alert transport enabled", "timeout", cfg.WebhookTimeout)
	}

	engine := simulation.Engine{
		Detector:  domain.NewDetector(cfg.DetectorConfig()),
		Router:    domain.NewRouter(cfg.Topology.RouterConfig()),
		Recorder:  domain.NewRecorder(cfg.AlertRecipients, transports),
		Perturber: simulation.NewNoisePerturber(cfg.Topology.Noise, cfg.Seed),
		Injector:  simulation.NewLeakInjector(cfg.Topology.InjectionFactors),
	}
	driver := simulation.New(
		domain.NewWorld(cfg.Topology),
		engine,
		simulation.Config{
			Steps:           cfg.Steps,
			Interval:        cfg.StepInterval,
			RepairThreshold: cfg.RepairThreshold,
			Schedule:        cfg.LeakSchedule,
		},
		clockwork.NewRealClock(),
		logger,
		metrics,
	)
	logger.Info("network initialized",
		"zones", len(cfg.Topology.Zones),
		"destinations", len(cfg.Topology.Destinations),
		"seed", cfg.Seed,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, driver, driver, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Run the simulation. The process keeps serving /status after the last
	// step until it is signalled.
	g.Go(func() error {
		return driver.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if alertWriter != nil {
			if err := alertWriter.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		if webhookClient != nil {
			if err := webhookClient.Close(shutdownCtx); err != nil {
				logger.Error("webhook client close error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
