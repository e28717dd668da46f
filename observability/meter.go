package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs an OTLP-exporting meter provider as the global provider.
// Shut the returned provider down on exit to flush pending metrics.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricRequestTotal     = "crm.request.total"
	MetricRequestDuration  = "crm.request.duration"
	MetricAttemptTotal     = "crm.attempt.total"
	MetricRetryTotal       = "crm.retry.total"
	MetricCacheLookupTotal = "crm.cache.lookup.total"
	MetricTransitionTotal  = "crm.connection.transition.total"
	MetricHealthProbeTotal = "crm.health.probe.total"
)

// Metrics holds the instruments recorded by the access layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestTotal     metric.Int64Counter
	requestDuration  metric.Float64Histogram
	attemptTotal     metric.Int64Counter
	retryTotal       metric.Int64Counter
	cacheLookupTotal metric.Int64Counter
	transitionTotal  metric.Int64Counter
	healthProbeTotal metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.requestTotal, err = meter.Int64Counter(MetricRequestTotal,
		metric.WithDescription("Logical requests by operation and outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequestTotal, err)
	}
	if m.requestDuration, err = meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Duration of logical requests including retries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRequestDuration, err)
	}
	if m.attemptTotal, err = meter.Int64Counter(MetricAttemptTotal,
		metric.WithDescription("Individual HTTP attempts by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricAttemptTotal, err)
	}
	if m.retryTotal, err = meter.Int64Counter(MetricRetryTotal,
		metric.WithDescription("Retries scheduled after a failed attempt"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRetryTotal, err)
	}
	if m.cacheLookupTotal, err = meter.Int64Counter(MetricCacheLookupTotal,
		metric.WithDescription("Cache lookups by result"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricCacheLookupTotal, err)
	}
	if m.transitionTotal, err = meter.Int64Counter(MetricTransitionTotal,
		metric.WithDescription("Connection state transitions"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTransitionTotal, err)
	}
	if m.healthProbeTotal, err = meter.Int64Counter(MetricHealthProbeTotal,
		metric.WithDescription("Health monitor probes by kind and outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricHealthProbeTotal, err)
	}
	return m, nil
}

// RecordRequest records a completed logical request.
func (m *Metrics) RecordRequest(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrStatus, status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperation, operation),
	))
}

// RecordAttempt records one HTTP attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, endpoint, status string) {
	if m == nil {
		return
	}
	m.attemptTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEndpoint, endpoint),
		attribute.String(AttrStatus, status),
	))
}

// RecordRetry records a scheduled retry.
func (m *Metrics) RecordRetry(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrEndpoint, endpoint)))
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

// RecordTransition records a connection state change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrFromState, from),
		attribute.String(AttrToState, to),
	))
}

// RecordHealthProbe records a health monitor probe.
func (m *Metrics) RecordHealthProbe(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.healthProbeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProbeKind, kind),
		attribute.String(AttrStatus, status),
	))
}
