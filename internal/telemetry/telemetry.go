// Package telemetry counts gateway events on OpenTelemetry counters.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/suspectuso/gpt-gateway"

// Counters increments named counters, creating them on first use
type Counters struct {
	meter metric.Meter
	log   *slog.Logger

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
}

// New creates counters backed by the given meter provider
func New(provider metric.MeterProvider, log *slog.Logger) *Counters {
	return &Counters{
		meter:    provider.Meter(meterName),
		log:      log,
		counters: make(map[string]metric.Int64Counter),
	}
}

// Incr adds one to the counter. Failures are logged, never returned.
func (c *Counters) Incr(ctx context.Context, name string) {
	counter, err := c.counter(name)
	if err != nil {
		c.log.Warn("create counter", "name", name, "error", err)
		return
	}
	counter.Add(ctx, 1)
}

func (c *Counters) counter(name string) (metric.Int64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[name]; ok {
		return counter, nil
	}

	counter, err := c.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	c.counters[name] = counter
	return counter, nil
}

// Setup installs a global meter provider exporting to endpoint over OTLP/HTTP.
//
// Metrics are opt-in: with an empty endpoint Setup returns a no-op shutdown
// function and the global provider stays a no-op. The shutdown function
// flushes pending metrics and should be deferred by the caller.
func Setup(ctx context.Context, endpoint, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
