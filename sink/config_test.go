package sink

import (
	"testing"
	"time"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"host port", "collector:4317", "collector:4317", false},
		{"localhost default", "localhost:4317", "localhost:4317", false},
		{"http url", "http://collector:4318", "collector:4318", false},
		{"https url", "https://otel.example.com:443", "otel.example.com:443", false},
		{"grpc scheme", "grpc://collector:4317", "collector:4317", false},
		{"unparseable", "http://[::1", "", true},
		{"unsupported scheme", "ftp://collector:21", "", true},
		{"scheme without host", "http://", "", true},
		{"trailing path", "collector:4317/v1/metrics", "", true},
		{"embedded space", "not a host", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeEndpoint(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")

	cfg, err := Config{}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults() error = %v", err)
	}
	if cfg.Protocol != ProtocolGRPC {
		t.Errorf("protocol = %q, want grpc", cfg.Protocol)
	}
	if cfg.Endpoint != DefaultGRPCEndpoint {
		t.Errorf("endpoint = %q, want %q", cfg.Endpoint, DefaultGRPCEndpoint)
	}
	if cfg.ServiceName != defaultServiceName {
		t.Errorf("service name = %q, want %q", cfg.ServiceName, defaultServiceName)
	}

	httpCfg, err := Config{Protocol: "HTTP"}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults() error = %v", err)
	}
	if httpCfg.Endpoint != DefaultHTTPEndpoint {
		t.Errorf("http endpoint = %q, want %q", httpCfg.Endpoint, DefaultHTTPEndpoint)
	}
}

func TestConfigEndpointEnvFallback(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector.internal:4318")

	cfg, err := Config{}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults() error = %v", err)
	}
	if cfg.Endpoint != "collector.internal:4318" {
		t.Errorf("endpoint = %q, want collector.internal:4318", cfg.Endpoint)
	}

	// An explicit endpoint wins over the environment.
	cfg, err = Config{Endpoint: "other:4317"}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults() error = %v", err)
	}
	if cfg.Endpoint != "other:4317" {
		t.Errorf("endpoint = %q, want other:4317", cfg.Endpoint)
	}
}

func TestConfigServiceNameEnvFallback(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "perf-reporter")

	cfg, err := Config{}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults() error = %v", err)
	}
	if cfg.ServiceName != "perf-reporter" {
		t.Errorf("service name = %q, want perf-reporter", cfg.ServiceName)
	}
}

func TestConfigRejectsNegativeExportInterval(t *testing.T) {
	if _, err := (Config{ExportInterval: -time.Second}).withDefaults(); err == nil {
		t.Fatal("expected error for negative export_interval")
	}
}

func TestConfigFromJSON(t *testing.T) {
	hostConfig := []byte(`{
		"runner": {"workers": 20},
		"reporting": {
			"otel": {
				"endpoint": "http://collector:4318",
				"protocol": "http",
				"insecure": true,
				"service_name": "perf",
				"metric_prefix": "loadtest.",
				"export_interval": "15s",
				"headers": {"authorization": "Bearer abc"}
			}
		}
	}`)

	cfg, err := ConfigFromJSON(hostConfig, "reporting.otel")
	if err != nil {
		t.Fatalf("ConfigFromJSON() error = %v", err)
	}
	if cfg.Endpoint != "http://collector:4318" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.Protocol != "http" {
		t.Errorf("protocol = %q", cfg.Protocol)
	}
	if !cfg.Insecure {
		t.Error("insecure = false, want true")
	}
	if cfg.ServiceName != "perf" {
		t.Errorf("service name = %q", cfg.ServiceName)
	}
	if cfg.MetricPrefix != "loadtest." {
		t.Errorf("metric prefix = %q", cfg.MetricPrefix)
	}
	if cfg.ExportInterval != 15*time.Second {
		t.Errorf("export interval = %s", cfg.ExportInterval)
	}
	if cfg.Headers["authorization"] != "Bearer abc" {
		t.Errorf("headers = %v", cfg.Headers)
	}
}

func TestConfigFromJSONMissingSection(t *testing.T) {
	if _, err := ConfigFromJSON([]byte(`{"reporting": {}}`), "reporting.otel"); err == nil {
		t.Fatal("expected error for missing section")
	}
}

func TestConfigFromJSONBadDuration(t *testing.T) {
	data := []byte(`{"export_interval": "soon"}`)
	if _, err := ConfigFromJSON(data, ""); err == nil {
		t.Fatal("expected error for malformed export_interval")
	}
}

func TestConfigFromJSONRootSection(t *testing.T) {
	cfg, err := ConfigFromJSON([]byte(`{"endpoint": "collector:4317"}`), "")
	if err != nil {
		t.Fatalf("ConfigFromJSON() error = %v", err)
	}
	if cfg.Endpoint != "collector:4317" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
}
