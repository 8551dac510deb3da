package sink

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	// DefaultGRPCEndpoint and DefaultHTTPEndpoint point at a collector on the
	// conventional local OTLP ports.
	DefaultGRPCEndpoint = "localhost:4317"
	DefaultHTTPEndpoint = "localhost:4318"

	defaultServiceName = "otelsink"
)

// Config describes how the default OTLP recorder reaches its backend.
// A zero Config targets a local collector over gRPC.
type Config struct {
	// Endpoint is the collector address, host:port or a URL. Falls back to
	// OTEL_EXPORTER_OTLP_ENDPOINT, then to the protocol's local default.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Protocol selects the OTLP transport: "grpc" (default) or "http".
	Protocol string `mapstructure:"protocol" yaml:"protocol"`
	// Insecure disables transport security.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`
	// Headers are added to every export request.
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	// ServiceName is set on the exported resource. Falls back to
	// OTEL_SERVICE_NAME, then to "otelsink".
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	// MetricPrefix is prepended to every emitted metric name. Default empty.
	MetricPrefix string `mapstructure:"metric_prefix" yaml:"metric_prefix"`
	// ExportInterval is the periodic reader interval. Zero keeps the SDK
	// default; the sink force-flushes per batch regardless.
	ExportInterval time.Duration `mapstructure:"export_interval" yaml:"export_interval"`
}

// withDefaults validates the config and fills in defaults. Malformed values
// are an error: the run must fail at startup rather than silently drop
// metrics.
func (c Config) withDefaults() (Config, error) {
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))
	if c.Protocol == "" {
		c.Protocol = ProtocolGRPC
	}
	switch c.Protocol {
	case ProtocolGRPC, ProtocolHTTP:
	default:
		return Config{}, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", c.Protocol)
	}

	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		if c.Protocol == ProtocolHTTP {
			endpoint = DefaultHTTPEndpoint
		} else {
			endpoint = DefaultGRPCEndpoint
		}
	}
	host, err := normalizeEndpoint(endpoint)
	if err != nil {
		return Config{}, err
	}
	c.Endpoint = host

	if c.ServiceName == "" {
		if envName := os.Getenv("OTEL_SERVICE_NAME"); envName != "" {
			c.ServiceName = envName
		} else {
			c.ServiceName = defaultServiceName
		}
	}

	if c.ExportInterval < 0 {
		return Config{}, fmt.Errorf("export_interval must be >= 0, got %s", c.ExportInterval)
	}

	return c, nil
}

// normalizeEndpoint reduces an endpoint string to host:port form, accepting
// plain addresses and http/https/grpc URLs.
func normalizeEndpoint(raw string) (string, error) {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse endpoint %q: %w", raw, err)
		}
		switch u.Scheme {
		case "http", "https", "grpc":
		default:
			return "", fmt.Errorf("endpoint %q: unsupported scheme %q", raw, u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("endpoint %q has no host", raw)
		}
		return u.Host, nil
	}

	u, err := url.Parse("//" + raw)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	if u.Host == "" || u.Host != raw {
		return "", fmt.Errorf("invalid endpoint %q: expected host:port", raw)
	}
	return u.Host, nil
}

// ConfigFromJSON plucks the sink's settings out of a larger host JSON config.
// section is a gjson path ("reporting.otel"); empty means the document root.
// A named section that does not exist is an error so a typo fails the run
// instead of silently exporting to the default endpoint.
func ConfigFromJSON(data []byte, section string) (Config, error) {
	node := gjson.ParseBytes(data)
	if section != "" {
		node = node.Get(section)
		if !node.Exists() {
			return Config{}, fmt.Errorf("config section %q not found", section)
		}
	}
	if !node.IsObject() {
		return Config{}, fmt.Errorf("config section %q is not an object", section)
	}

	var cfg Config
	if v := node.Get("endpoint"); v.Exists() {
		cfg.Endpoint = v.String()
	}
	if v := node.Get("protocol"); v.Exists() {
		cfg.Protocol = v.String()
	}
	if v := node.Get("insecure"); v.Exists() {
		cfg.Insecure = v.Bool()
	}
	if v := node.Get("service_name"); v.Exists() {
		cfg.ServiceName = v.String()
	}
	if v := node.Get("metric_prefix"); v.Exists() {
		cfg.MetricPrefix = v.String()
	}
	if v := node.Get("export_interval"); v.Exists() {
		d, err := time.ParseDuration(v.String())
		if err != nil {
			return Config{}, fmt.Errorf("export_interval: %w", err)
		}
		cfg.ExportInterval = d
	}
	if v := node.Get("headers"); v.Exists() {
		if !v.IsObject() {
			return Config{}, fmt.Errorf("headers must be an object")
		}
		cfg.Headers = map[string]string{}
		v.ForEach(func(key, value gjson.Result) bool {
			cfg.Headers[key.String()] = value.String()
			return true
		})
	}

	return cfg, nil
}
