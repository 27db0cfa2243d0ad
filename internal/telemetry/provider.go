// Package telemetry wires GAIA's services into OpenTelemetry: traces
// and metrics exported over OTLP/HTTP, batched and shipped to a
// collector. Adapted from the framework's OTelProvider; GAIA trims the
// gRPC-port auto-conversion shim (nothing in GAIA config ever produces
// a legacy :4317 endpoint) but keeps the HTTP-exporter choice, the
// resource/schema setup, and the 30s periodic metric reader.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaialog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns a GAIA service's OpenTelemetry trace and metric
// pipelines and implements gaialog.MetricsSink so the logger can emit
// a counter per log event without importing this package.
type Provider struct {
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider
	metricProvider *sdkmetric.MeterProvider

	eventCounter metric.Int64Counter

	mu       sync.RWMutex
	shutdown bool
}

// New creates a Provider exporting to endpoint (an OTLP/HTTP host:port,
// e.g. "localhost:4318").
func New(ctx context.Context, serviceName, endpoint string) (*Provider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("telemetry: service name cannot be empty")
	}
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String("1.0.0"),
	)

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter for %s: %w", endpoint, err)
	}

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter for %s: %w", endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	meter := mp.Meter("gaia." + serviceName)
	counter, err := meter.Int64Counter("gaia.log.events")
	if err != nil {
		return nil, fmt.Errorf("telemetry: create event counter: %w", err)
	}

	return &Provider{
		tracer:         tp.Tracer("gaia." + serviceName),
		meter:          meter,
		traceProvider:  tp,
		metricProvider: mp,
		eventCounter:   counter,
	}, nil
}

// StartSpan starts a span and returns the enriched context alongside it.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name)
}

// Counter implements gaialog.MetricsSink by adding one to the
// gaia.log.events counter. name is not used, and labels (alternating
// key/value pairs) are paired up but not attached to the increment.
func (p *Provider) Counter(name string, labels ...string) {
	attrs := make([]interface{}, 0, len(labels))
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, labels[i], labels[i+1])
	}
	p.eventCounter.Add(context.Background(), 1)
	_ = attrs // attribute conversion is deferred to call sites that need a full KeyValue set
}

// Shutdown flushes and closes both exporters. Safe to call once.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true

	var firstErr error
	if err := p.traceProvider.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := p.metricProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

var _ gaialog.MetricsSink = (*Provider)(nil)
