// Package influxdb ships line-transition telemetry to InfluxDB.
//
// Writes go through the non-blocking write API: points are batched in memory
// and flushed on the configured interval, so the event loop never waits on
// the network. Write failures surface on an error channel and are logged,
// never propagated to callers.
package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/varbridge/gpioctrl/internal/infrastructure/config"
)

// Logger is the minimal logging interface the client uses.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Client writes telemetry points to an InfluxDB bucket.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.TelemetryConfig

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect creates a client and verifies the server is reachable.
//
// Parameters:
//   - ctx: bounds the initial ping
//   - cfg: telemetry section of the daemon config
func Connect(ctx context.Context, cfg config.TelemetryConfig) (*Client, error) {
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval * 1000))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: server not ready")
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
		logger:   noopLogger{},
	}
	go c.drainErrors()

	return c, nil
}

// SetLogger sets a logger for asynchronous write failures.
// Safe to call while the error drain is running.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger.
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// drainErrors logs asynchronous write failures. The channel closes when the
// write API shuts down.
func (c *Client) drainErrors() {
	for err := range c.writeAPI.Errors() {
		c.getLogger().Warn("telemetry write failed", "error", err)
	}
}

// WriteTransition queues one line transition point. Non-blocking.
func (c *Client) WriteTransition(at time.Time, chip string, line int, varName string, value uint32, source string) {
	p := influxdb2.NewPoint(
		"gpio_transition",
		map[string]string{
			"chip":   chip,
			"line":   fmt.Sprintf("%d", line),
			"var":    varName,
			"source": source,
		},
		map[string]any{
			"value": int64(value),
		},
		at,
	)
	c.writeAPI.WritePoint(p)
}

// HealthCheck verifies the server is still reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb health check: server not ready")
	}
	return nil
}

// Close flushes pending points and releases the client.
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}
