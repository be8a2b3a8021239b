package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"github.com/couchcryptid/water-reuse-sim/internal/observability"
)

const (
	transportName = "webhook"
	queueSize     = 64
)

var (
	errQueueFull = errors.New("webhook queue full")
	errClosed    = errors.New("webhook client closed")
)

// Client implements domain.AlertTransport by POSTing each alert as JSON to a URL.
// Deliveries run on a single background worker in dispatch order.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu     sync.Mutex
	closed bool
	queue  chan delivery
	done   chan struct{}
}

type delivery struct {
	ctx        context.Context
	alert      domain.LeakAlert
	recipients []string
}

// payload is the JSON body of each webhook request.
type payload struct {
	Alert      domain.LeakAlert `json:"alert"`
	Recipients []string         `json:"recipients"`
}

// NewClient creates a webhook client with a per-request timeout and starts its
// delivery worker. Call Close to drain pending alerts and stop the worker.
func NewClient(url string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
		queue:   make(chan delivery, queueSize),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

// Dispatch queues the alert for delivery and returns immediately. Alerts that
// cannot be queued are logged and counted, never returned.
func (c *Client) Dispatch(ctx context.Context, alert domain.LeakAlert, recipients []string) {
	d := delivery{
		ctx:        context.WithoutCancel(ctx),
		alert:      alert,
		recipients: append([]string(nil), recipients...),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.fail(errClosed, alert)
		return
	}
	select {
	case c.queue <- d:
	default:
		c.fail(errQueueFull, alert)
	}
}

// Close stops accepting alerts and waits for queued deliveries to finish or
// for ctx to expire.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain webhook queue: %w", ctx.Err())
	}
}

func (c *Client) run() {
	defer close(c.done)
	for d := range c.queue {
		if err := c.post(d.ctx, d.alert, d.recipients); err != nil {
			c.fail(err, d.alert)
			continue
		}
		c.logger.Debug("webhook alert delivered", "zone", d.alert.Zone, "recipients", len(d.recipients))
	}
}

func (c *Client) fail(err error, alert domain.LeakAlert) {
	c.logger.Error("webhook alert dispatch failed", "error", err, "zone", alert.Zone, "severity", alert.Severity)
	c.metrics.AlertDispatchErrors.WithLabelValues(transportName).Inc()
}

func (c *Client) post(ctx context.Context, alert domain.LeakAlert, recipients []string) error {
	body, err := json.Marshal(payload{Alert: alert, Recipients: recipients})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status %d: %s", resp.StatusCode, b)
	}
	return nil
}
