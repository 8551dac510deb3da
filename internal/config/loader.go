package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Flags override file settings.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// Scenarios can only come from a config file, so no file means nothing to
	// replay; show usage instead.
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Protocol:   "grpc",
		TestSuite:  "otelsink",
		TestName:   "synthetic",
		Interval:   5 * time.Second,
		Ticks:      12,
		Seed:       1,
		Output:     OutputOTLP,
		ConfigFile: configPath,
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		if val != "" {
			cfg.Protocol = strings.ToLower(strings.TrimSpace(val))
		}
	}

	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		cfg.Insecure = val
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if len(hdrs) > 0 {
			if cfg.Headers == nil {
				cfg.Headers = map[string]string{}
			}
			for k, v := range hdrs {
				cfg.Headers[k] = v
			}
		}
	}

	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("serviceName: %w", err)
		}
		cfg.ServiceName = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "metricprefix", "metric_prefix", "metric-prefix"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metricPrefix: %w", err)
		}
		cfg.MetricPrefix = val
	}

	if raw, ok := lookupSetting(settings, "testsuite", "test_suite", "test-suite"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("testSuite: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			cfg.TestSuite = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "testname", "test_name", "test-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("testName: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			cfg.TestName = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "sessionid", "session_id", "session-id"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("sessionId: %w", err)
		}
		cfg.SessionID = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		if dur > 0 {
			cfg.Interval = dur
		}
	}

	if raw, ok := lookupSetting(settings, "ticks"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("ticks: %w", err)
		}
		cfg.Ticks = val
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if val != "" {
			cfg.Output = Output(strings.ToLower(strings.TrimSpace(val)))
		}
	}

	if raw, ok := lookupSetting(settings, "jsonlpath", "jsonl_path", "jsonl-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("jsonlPath: %w", err)
		}
		cfg.JSONLPath = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "scenarios"); ok {
		scenarios, err := parseScenarios(raw)
		if err != nil {
			return fmt.Errorf("scenarios: %w", err)
		}
		cfg.Scenarios = scenarios
	}

	if raw, ok := lookupSetting(settings, "metrics"); ok {
		metrics, err := parseMetrics(raw)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		cfg.Metrics = metrics
	}

	return nil
}

func parseScenarios(value interface{}) ([]ScenarioProfile, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	scenarios := make([]ScenarioProfile, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		scenario, err := buildScenario(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

func buildScenario(settings map[string]interface{}) (ScenarioProfile, error) {
	var scenario ScenarioProfile
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return ScenarioProfile{}, fmt.Errorf("name: %w", err)
		}
		scenario.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return ScenarioProfile{}, fmt.Errorf("rps: %w", err)
		}
		scenario.RPS = val
	}
	if raw, ok := lookupSetting(settings, "users"); ok {
		val, err := asInt(raw)
		if err != nil {
			return ScenarioProfile{}, fmt.Errorf("users: %w", err)
		}
		scenario.Users = val
	}
	if raw, ok := lookupSetting(settings, "simulation"); ok {
		val, err := asString(raw)
		if err != nil {
			return ScenarioProfile{}, fmt.Errorf("simulation: %w", err)
		}
		scenario.Simulation = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "steps"); ok {
		steps, err := parseSteps(raw)
		if err != nil {
			return ScenarioProfile{}, fmt.Errorf("steps: %w", err)
		}
		scenario.Steps = steps
	}
	return scenario, nil
}

func parseSteps(value interface{}) ([]StepProfile, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	steps := make([]StepProfile, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		step, err := buildStep(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(settings map[string]interface{}) (StepProfile, error) {
	var step StepProfile
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return StepProfile{}, fmt.Errorf("name: %w", err)
		}
		step.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "latencymean", "latency_mean", "latency-mean"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return StepProfile{}, fmt.Errorf("latency_mean: %w", err)
		}
		step.LatencyMean = dur
	}
	if raw, ok := lookupSetting(settings, "latencystddev", "latency_stddev", "latency-stddev"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return StepProfile{}, fmt.Errorf("latency_stddev: %w", err)
		}
		step.LatencyStdDev = dur
	}
	if raw, ok := lookupSetting(settings, "failrate", "fail_rate", "fail-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return StepProfile{}, fmt.Errorf("fail_rate: %w", err)
		}
		step.FailRate = val
	}
	if raw, ok := lookupSetting(settings, "responsebytes", "response_bytes", "response-bytes"); ok {
		val, err := asInt(raw)
		if err != nil {
			return StepProfile{}, fmt.Errorf("response_bytes: %w", err)
		}
		step.ResponseBytes = val
	}
	return step, nil
}

func parseMetrics(value interface{}) ([]MetricProfile, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	metrics := make([]MetricProfile, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		metric, err := buildMetric(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		metrics = append(metrics, metric)
	}
	return metrics, nil
}

func buildMetric(settings map[string]interface{}) (MetricProfile, error) {
	var metric MetricProfile
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return MetricProfile{}, fmt.Errorf("name: %w", err)
		}
		metric.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "kind"); ok {
		val, err := asString(raw)
		if err != nil {
			return MetricProfile{}, fmt.Errorf("kind: %w", err)
		}
		metric.Kind = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "unit"); ok {
		val, err := asString(raw)
		if err != nil {
			return MetricProfile{}, fmt.Errorf("unit: %w", err)
		}
		metric.Unit = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "min"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return MetricProfile{}, fmt.Errorf("min: %w", err)
		}
		metric.Min = val
	}
	if raw, ok := lookupSetting(settings, "max"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return MetricProfile{}, fmt.Errorf("max: %w", err)
		}
		metric.Max = val
	}
	return metric, nil
}
