package observability

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	return m, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetricsRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "jobs.list", "ok", 20*time.Millisecond)
	m.RecordAttempt(ctx, "/jobs", "error")
	m.RecordAttempt(ctx, "/jobs", "ok")
	m.RecordRetry(ctx, "/jobs")
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)
	m.RecordTransition(ctx, "disconnected", "connecting")
	m.RecordHealthProbe(ctx, "liveness", "ok")

	tests := []struct {
		name string
		want int64
	}{
		{MetricRequestTotal, 1},
		{MetricAttemptTotal, 2},
		{MetricRetryTotal, 1},
		{MetricCacheLookupTotal, 3},
		{MetricTransitionTotal, 1},
		{MetricHealthProbeTotal, 1},
	}
	// Collect once per metric is fine: ManualReader uses cumulative temporality.
	for _, tc := range tests {
		if got := sumOf(t, reader, tc.name); got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRequest(ctx, "op", "ok", time.Second)
	m.RecordAttempt(ctx, "/x", "ok")
	m.RecordRetry(ctx, "/x")
	m.RecordCacheLookup(ctx, true)
	m.RecordTransition(ctx, "a", "b")
	m.RecordHealthProbe(ctx, "k", "ok")
}

func TestDefaultConfigs(t *testing.T) {
	tc := DefaultTracerConfig("crmctl")
	if tc.ServiceName != "crmctl" || tc.Endpoint != "localhost:4318" || tc.SampleRate != 1.0 || !tc.Insecure {
		t.Errorf("unexpected tracer defaults %+v", tc)
	}
	mc := DefaultMeterConfig("crmctl")
	if mc.ServiceName != "crmctl" || mc.Interval != 15*time.Second {
		t.Errorf("unexpected meter defaults %+v", mc)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
	}
	for _, tc := range tests {
		if got := sampler(tc.rate).Description(); got != tc.want {
			t.Errorf("sampler(%v) = %s, want %s", tc.rate, got, tc.want)
		}
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), SpanRequest)
	EndSpan(span, fmt.Errorf("boom"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestInjectHeaders(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	}()

	ctx, span := StartSpan(context.Background(), SpanRequest)
	defer span.End()

	h := http.Header{}
	InjectHeaders(ctx, propagation.HeaderCarrier(h))
	if h.Get("traceparent") == "" {
		t.Error("expected traceparent header")
	}
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("crmctl")
	sh.AddComponent(Health{Name: "connection", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", sh.Status)
	}
	sh.AddComponent(Health{Name: "backend", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "cache", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected down not overridden by degraded, got %s", sh.Status)
	}
	if len(sh.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(sh.Components))
	}
	if sh.Healthy() {
		t.Error("expected unhealthy service")
	}
	if c, ok := sh.Component("backend"); !ok || c.Status != HealthStatusDown {
		t.Errorf("Component(backend) = %+v, %v", c, ok)
	}
	if _, ok := sh.Component("missing"); ok {
		t.Error("expected missing component")
	}
	if sh.CheckedAt.IsZero() {
		t.Error("expected CheckedAt to be set")
	}
}

func TestServiceHealth_Healthy(t *testing.T) {
	sh := NewServiceHealth("crmctl")
	sh.AddComponent(Health{Name: "crm-backend", Status: HealthStatusUp})
	if !sh.Healthy() {
		t.Errorf("expected healthy, got %s", sh.Status)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("crmctl", "dev", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "crmctl" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name attribute")
	}
}
