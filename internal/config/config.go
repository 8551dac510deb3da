package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output selects where the generator sends its emission stream.
type Output string

const (
	OutputOTLP    Output = "otlp"
	OutputJSONL   Output = "jsonl"
	OutputConsole Output = "console"
)

// Config is the generator's effective configuration, merged from the config
// file and CLI flags (flags win).
type Config struct {
	// Exporter settings, passed through to the sink.
	Endpoint     string            `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol     string            `mapstructure:"protocol" yaml:"protocol,omitempty"`
	Insecure     bool              `mapstructure:"insecure" yaml:"insecure,omitempty"`
	Headers      map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	ServiceName  string            `mapstructure:"service_name" yaml:"service_name,omitempty"`
	MetricPrefix string            `mapstructure:"metric_prefix" yaml:"metric_prefix,omitempty"`

	// Run identity tags.
	TestSuite string `mapstructure:"test_suite" yaml:"test_suite"`
	TestName  string `mapstructure:"test_name" yaml:"test_name"`
	SessionID string `mapstructure:"session_id" yaml:"session_id,omitempty"`

	// Replay pacing.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Ticks    int           `mapstructure:"ticks" yaml:"ticks"`
	Seed     int64         `mapstructure:"seed" yaml:"seed"`

	// Output routing.
	Output    Output `mapstructure:"output" yaml:"output"`
	JSONLPath string `mapstructure:"jsonl_path" yaml:"jsonl_path,omitempty"`
	Dashboard bool   `mapstructure:"dashboard" yaml:"dashboard,omitempty"`

	// Synthetic load profile.
	Scenarios []ScenarioProfile `mapstructure:"scenarios" yaml:"scenarios"`
	Metrics   []MetricProfile   `mapstructure:"metrics" yaml:"metrics,omitempty"`

	ConfigFile string `mapstructure:"-" yaml:"-"`
	DumpConfig bool   `mapstructure:"-" yaml:"-"`
}

// ScenarioProfile describes one synthetic scenario.
type ScenarioProfile struct {
	Name       string        `mapstructure:"name" yaml:"name"`
	RPS        int           `mapstructure:"rps" yaml:"rps"`
	Users      int           `mapstructure:"users" yaml:"users,omitempty"`
	Simulation string        `mapstructure:"simulation" yaml:"simulation,omitempty"`
	Steps      []StepProfile `mapstructure:"steps" yaml:"steps"`
}

// StepProfile describes one timed operation inside a scenario.
type StepProfile struct {
	Name          string        `mapstructure:"name" yaml:"name"`
	LatencyMean   time.Duration `mapstructure:"latency_mean" yaml:"latency_mean"`
	LatencyStdDev time.Duration `mapstructure:"latency_stddev" yaml:"latency_stddev,omitempty"`
	FailRate      float64       `mapstructure:"fail_rate" yaml:"fail_rate,omitempty"`
	ResponseBytes int           `mapstructure:"response_bytes" yaml:"response_bytes,omitempty"`
}

// MetricProfile describes one synthetic user-defined counter or gauge.
type MetricProfile struct {
	Name string  `mapstructure:"name" yaml:"name"`
	Kind string  `mapstructure:"kind" yaml:"kind"`
	Unit string  `mapstructure:"unit" yaml:"unit,omitempty"`
	Min  float64 `mapstructure:"min" yaml:"min,omitempty"`
	Max  float64 `mapstructure:"max" yaml:"max,omitempty"`
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Interval <= 0 {
		issues = append(issues, "interval must be > 0")
	}
	if c.Ticks < 1 {
		issues = append(issues, "ticks must be >= 1")
	}

	switch c.Output {
	case OutputOTLP, OutputJSONL, OutputConsole:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'otlp', 'jsonl' or 'console', got %q", c.Output))
	}
	if c.Output == OutputJSONL && strings.TrimSpace(c.JSONLPath) == "" {
		issues = append(issues, "jsonl_path is required when output is 'jsonl'")
	}
	if c.Dashboard && c.Output == OutputConsole {
		issues = append(issues, "dashboard and console output are mutually exclusive")
	}

	if strings.TrimSpace(c.TestSuite) == "" {
		issues = append(issues, "test_suite is required")
	}
	if strings.TrimSpace(c.TestName) == "" {
		issues = append(issues, "test_name is required")
	}

	if len(c.Scenarios) == 0 {
		issues = append(issues, "at least one scenario is required (use --help for usage information)")
	}
	issues = append(issues, validateScenarios(c.Scenarios)...)
	issues = append(issues, validateMetrics(c.Metrics)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateScenarios(scenarios []ScenarioProfile) []string {
	var issues []string
	seenNames := map[string]int{}
	for idx, sc := range scenarios {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: name is required", idx))
		} else {
			key := strings.ToLower(name)
			if prev, ok := seenNames[key]; ok {
				issues = append(issues, fmt.Sprintf("scenarios[%d]: duplicate name also defined at index %d", idx, prev))
			} else {
				seenNames[key] = idx
			}
		}
		if sc.RPS < 1 {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: rps must be >= 1", idx))
		}
		if sc.Users < 0 {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: users must be >= 0", idx))
		}
		if len(sc.Steps) == 0 {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: at least one step is required", idx))
		}
		for stepIdx, step := range sc.Steps {
			if strings.TrimSpace(step.Name) == "" {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: name is required", idx, stepIdx))
			}
			if step.LatencyMean <= 0 {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: latency_mean must be > 0", idx, stepIdx))
			}
			if step.LatencyStdDev < 0 {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: latency_stddev must be >= 0", idx, stepIdx))
			}
			if step.FailRate < 0 || step.FailRate > 1 {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: fail_rate must be between 0 and 1", idx, stepIdx))
			}
			if step.ResponseBytes < 0 {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: response_bytes must be >= 0", idx, stepIdx))
			}
		}
	}
	return issues
}

func validateMetrics(metrics []MetricProfile) []string {
	var issues []string
	for idx, m := range metrics {
		if strings.TrimSpace(m.Name) == "" {
			issues = append(issues, fmt.Sprintf("metrics[%d]: name is required", idx))
		}
		switch strings.ToLower(strings.TrimSpace(m.Kind)) {
		case "counter", "gauge":
		default:
			issues = append(issues, fmt.Sprintf("metrics[%d]: kind must be 'counter' or 'gauge', got %q", idx, m.Kind))
		}
		if m.Max < m.Min {
			issues = append(issues, fmt.Sprintf("metrics[%d]: max must be >= min", idx))
		}
	}
	return issues
}

// Dump writes the effective configuration as YAML, for inspecting what the
// flag/file merge produced.
func (c Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
