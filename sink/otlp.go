package sink

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const meterScope = "github.com/renholt/otelsink"

// OTLPRecorder exports gauge samples through the OpenTelemetry SDK over OTLP.
// It is the default Recorder built by Init.
type OTLPRecorder struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	mu     sync.Mutex
	gauges map[string]metric.Float64Gauge
}

// NewOTLPRecorder builds an exporter and meter provider from cfg.
func NewOTLPRecorder(ctx context.Context, cfg Config) (*OTLPRecorder, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.ExportInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.ExportInterval))
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	return newOTLPRecorder(provider), nil
}

func newOTLPRecorder(provider *sdkmetric.MeterProvider) *OTLPRecorder {
	return &OTLPRecorder{
		provider: provider,
		meter:    provider.Meter(meterScope),
		gauges:   map[string]metric.Float64Gauge{},
	}
}

// RecordGauge records one sample, creating the instrument on first use.
func (r *OTLPRecorder) RecordGauge(ctx context.Context, name string, value float64, tags []Tag, unit string) error {
	gauge, err := r.gauge(name, unit)
	if err != nil {
		return err
	}
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for _, tag := range tags {
		attrs = append(attrs, attribute.String(tag.Key, tag.Value))
	}
	gauge.Record(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

// Flush forces an export of everything recorded so far.
func (r *OTLPRecorder) Flush(ctx context.Context) error {
	return r.provider.ForceFlush(ctx)
}

// Shutdown flushes and releases the exporter.
func (r *OTLPRecorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func (r *OTLPRecorder) gauge(name, unit string) (metric.Float64Gauge, error) {
	key := name + "\x00" + unit
	r.mu.Lock()
	defer r.mu.Unlock()
	if gauge, ok := r.gauges[key]; ok {
		return gauge, nil
	}

	opts := []metric.Float64GaugeOption{}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	gauge, err := r.meter.Float64Gauge(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("gauge %s: %w", name, err)
	}
	r.gauges[key] = gauge
	return gauge, nil
}

func newExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", cfg.Protocol)
	}
}
