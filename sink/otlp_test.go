package sink

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectGauges(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var out []metricdata.Metrics
	for _, scope := range rm.ScopeMetrics {
		out = append(out, scope.Metrics...)
	}
	return out
}

func TestOTLPRecorderRecordsGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := newOTLPRecorder(provider)
	ctx := context.Background()

	tags := []Tag{
		{Key: "scenario", Value: "checkout"},
		{Key: "step", Value: "login"},
	}
	if err := recorder.RecordGauge(ctx, "ok.latency.mean", 5.25, tags, "ms"); err != nil {
		t.Fatalf("RecordGauge() error = %v", err)
	}

	metrics := collectGauges(t, reader)
	if len(metrics) != 1 {
		t.Fatalf("got %d metrics, want 1", len(metrics))
	}
	m := metrics[0]
	if m.Name != "ok.latency.mean" {
		t.Errorf("metric name = %q", m.Name)
	}
	if m.Unit != "ms" {
		t.Errorf("metric unit = %q, want ms", m.Unit)
	}

	gauge, ok := m.Data.(metricdata.Gauge[float64])
	if !ok {
		t.Fatalf("metric data type = %T, want Gauge[float64]", m.Data)
	}
	if len(gauge.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1", len(gauge.DataPoints))
	}
	dp := gauge.DataPoints[0]
	if dp.Value != 5.25 {
		t.Errorf("value = %v, want 5.25", dp.Value)
	}
	if v, ok := dp.Attributes.Value(attribute.Key("scenario")); !ok || v.AsString() != "checkout" {
		t.Errorf("scenario attribute = %v", v)
	}
	if v, ok := dp.Attributes.Value(attribute.Key("step")); !ok || v.AsString() != "login" {
		t.Errorf("step attribute = %v", v)
	}
}

func TestOTLPRecorderDistinguishesTagSets(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := newOTLPRecorder(provider)
	ctx := context.Background()

	if err := recorder.RecordGauge(ctx, "cart.size", 3, []Tag{{Key: "scenario", Value: "checkout"}}, ""); err != nil {
		t.Fatalf("RecordGauge() error = %v", err)
	}
	if err := recorder.RecordGauge(ctx, "cart.size", 9, []Tag{{Key: "scenario", Value: "browse"}}, ""); err != nil {
		t.Fatalf("RecordGauge() error = %v", err)
	}

	metrics := collectGauges(t, reader)
	if len(metrics) != 1 {
		t.Fatalf("got %d metrics, want 1 instrument", len(metrics))
	}
	gauge, ok := metrics[0].Data.(metricdata.Gauge[float64])
	if !ok {
		t.Fatalf("metric data type = %T", metrics[0].Data)
	}
	if len(gauge.DataPoints) != 2 {
		t.Fatalf("got %d data points, want 2 series split by scenario tag", len(gauge.DataPoints))
	}
}

func TestOTLPRecorderReusesInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := newOTLPRecorder(provider)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := recorder.RecordGauge(ctx, "ok.request.count", float64(i), nil, ""); err != nil {
			t.Fatalf("RecordGauge() error = %v", err)
		}
	}
	if len(recorder.gauges) != 1 {
		t.Errorf("instrument cache size = %d, want 1", len(recorder.gauges))
	}
}

func TestOTLPRecorderFlushAndShutdown(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := newOTLPRecorder(provider)
	ctx := context.Background()

	if err := recorder.Flush(ctx); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := recorder.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
