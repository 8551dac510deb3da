// Package synth produces realistic load-test statistics snapshots from a
// scenario profile, without running any load. A seeded generator keeps runs
// reproducible; latency and payload-size distributions come from HDR
// histograms so percentiles behave like real measurements.
package synth

import (
	"math/rand"
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/renholt/otelsink/internal/config"
	"github.com/renholt/otelsink/stats"
)

const (
	// Per-tick sample cap keeps high-RPS profiles cheap to synthesize.
	maxSamplesPerTick = 10_000

	defaultSimulation = "keep_constant"
)

var defaultFailCodes = []string{"500", "502", "503"}

// Generator accumulates synthetic measurements tick by tick and renders
// cumulative statistics snapshots from them.
type Generator struct {
	rnd       *rand.Rand
	interval  time.Duration
	elapsed   time.Duration
	scenarios []*scenarioState
	metrics   []*metricState
}

type scenarioState struct {
	profile   config.ScenarioProfile
	steps     []*stepState
	ok        *outcomeState
	fail      *outcomeState
	okCodes   map[string]int64
	failCodes map[string]int64
}

type stepState struct {
	profile config.StepProfile
	ok      *outcomeState
	fail    *outcomeState
}

// outcomeState tracks one (step, outcome) measurement stream.
type outcomeState struct {
	latency  *hdrhistogram.Histogram // microseconds
	transfer *hdrhistogram.Histogram // bytes
	count    int64
	bytes    int64
}

type metricState struct {
	profile config.MetricProfile
	value   float64
}

// New builds a generator for the given profile. The same seed, profile and
// interval always produce the same sequence of snapshots.
func New(scenarios []config.ScenarioProfile, metrics []config.MetricProfile, interval time.Duration, seed int64) *Generator {
	g := &Generator{
		rnd:      rand.New(rand.NewSource(seed)),
		interval: interval,
	}
	for _, profile := range scenarios {
		state := &scenarioState{
			profile:   profile,
			ok:        newOutcomeState(),
			fail:      newOutcomeState(),
			okCodes:   map[string]int64{},
			failCodes: map[string]int64{},
		}
		for _, step := range profile.Steps {
			state.steps = append(state.steps, &stepState{
				profile: step,
				ok:      newOutcomeState(),
				fail:    newOutcomeState(),
			})
		}
		g.scenarios = append(g.scenarios, state)
	}
	for _, profile := range metrics {
		g.metrics = append(g.metrics, &metricState{profile: profile, value: profile.Min})
	}
	return g
}

func newOutcomeState() *outcomeState {
	return &outcomeState{
		// Latencies from 1µs to 60s with 3 significant figures.
		latency: hdrhistogram.New(1, 60_000_000, 3),
		// Payloads from 1 byte to 1 GiB.
		transfer: hdrhistogram.New(1, 1<<30, 3),
	}
}

// Tick advances the run by one interval, synthesizing one interval's worth of
// requests per scenario, and returns the cumulative snapshots.
func (g *Generator) Tick() []stats.ScenarioStats {
	g.elapsed += g.interval
	for _, scenario := range g.scenarios {
		samples := int(float64(scenario.profile.RPS) * g.interval.Seconds())
		if samples < 1 {
			samples = 1
		}
		if samples > maxSamplesPerTick {
			samples = maxSamplesPerTick
		}
		for i := 0; i < samples; i++ {
			g.sampleRequest(scenario)
		}
	}
	for _, metric := range g.metrics {
		g.advanceMetric(metric)
	}
	return g.Scenarios()
}

// sampleRequest walks one virtual request through the scenario's steps. A
// failed step aborts the remainder of the request, like a real scenario run.
func (g *Generator) sampleRequest(scenario *scenarioState) {
	for _, step := range g.scenarioSteps(scenario) {
		latencyUS := g.sampleLatency(step.profile)
		transfer := g.sampleTransfer(step.profile)

		if g.rnd.Float64() < step.profile.FailRate {
			step.fail.record(latencyUS, transfer)
			scenario.fail.record(latencyUS, transfer)
			code := defaultFailCodes[g.rnd.Intn(len(defaultFailCodes))]
			scenario.failCodes[code]++
			return
		}
		step.ok.record(latencyUS, transfer)
		scenario.ok.record(latencyUS, transfer)
		scenario.okCodes["200"]++
	}
}

func (g *Generator) scenarioSteps(scenario *scenarioState) []*stepState {
	return scenario.steps
}

func (g *Generator) sampleLatency(step config.StepProfile) int64 {
	mean := float64(step.LatencyMean.Microseconds())
	stddev := float64(step.LatencyStdDev.Microseconds())
	value := g.rnd.NormFloat64()*stddev + mean
	if value < 1 {
		value = 1
	}
	return int64(value)
}

func (g *Generator) sampleTransfer(step config.StepProfile) int64 {
	if step.ResponseBytes <= 0 {
		return 0
	}
	// Uniform jitter of ±25% around the configured size.
	base := float64(step.ResponseBytes)
	value := base * (0.75 + g.rnd.Float64()*0.5)
	if value < 1 {
		value = 1
	}
	return int64(value)
}

func (g *Generator) advanceMetric(metric *metricState) {
	span := metric.profile.Max - metric.profile.Min
	switch metric.profile.Kind {
	case "counter":
		// Counters grow by a random slice of the configured span per tick.
		metric.value += g.rnd.Float64() * maxFloat(span, 1)
	default:
		// Gauges random-walk inside [min, max].
		metric.value += (g.rnd.Float64() - 0.5) * maxFloat(span, 1) / 2
		if metric.value < metric.profile.Min {
			metric.value = metric.profile.Min
		}
		if span > 0 && metric.value > metric.profile.Max {
			metric.value = metric.profile.Max
		}
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Scenarios renders the current cumulative snapshots without advancing time.
func (g *Generator) Scenarios() []stats.ScenarioStats {
	out := make([]stats.ScenarioStats, 0, len(g.scenarios))
	for _, scenario := range g.scenarios {
		out = append(out, g.renderScenario(scenario))
	}
	return out
}

// CurrentMetrics renders the custom metric stats at their current values.
func (g *Generator) CurrentMetrics() []stats.MetricStat {
	out := make([]stats.MetricStat, 0, len(g.metrics))
	for _, metric := range g.metrics {
		kind := stats.MetricKindGauge
		if metric.profile.Kind == "counter" {
			kind = stats.MetricKindCounter
		}
		scenario := ""
		if len(g.scenarios) > 0 {
			scenario = g.scenarios[0].profile.Name
		}
		out = append(out, stats.MetricStat{
			Name:     metric.profile.Name,
			Scenario: scenario,
			Kind:     kind,
			Value:    metric.value,
			Unit:     metric.profile.Unit,
		})
	}
	return out
}

// Node renders the final aggregate for the completion batch.
func (g *Generator) Node() stats.NodeStats {
	return stats.NodeStats{
		Scenarios: g.Scenarios(),
		Metrics:   g.CurrentMetrics(),
		Duration:  g.elapsed,
	}
}

func (g *Generator) renderScenario(scenario *scenarioState) stats.ScenarioStats {
	simulation := scenario.profile.Simulation
	if simulation == "" {
		simulation = defaultSimulation
	}
	users := scenario.profile.Users
	if users == 0 {
		users = scenario.profile.RPS
	}

	out := stats.ScenarioStats{
		Name: scenario.profile.Name,
		LoadSimulation: stats.LoadSimulationStats{
			Name:  simulation,
			Value: int64(users),
		},
		Ok:              scenario.ok.measurement(g.elapsed),
		Fail:            scenario.fail.measurement(g.elapsed),
		OkStatusCodes:   renderStatusCodes(scenario.okCodes),
		FailStatusCodes: renderStatusCodes(scenario.failCodes),
		Duration:        g.elapsed,
	}
	for idx, step := range scenario.steps {
		out.Steps = append(out.Steps, stats.StepStats{
			Name:      step.profile.Name,
			SortIndex: idx + 1,
			Ok:        step.ok.measurement(g.elapsed),
			Fail:      step.fail.measurement(g.elapsed),
		})
	}
	return out
}

func renderStatusCodes(codes map[string]int64) []stats.StatusCodeStats {
	if len(codes) == 0 {
		return nil
	}
	labels := make([]string, 0, len(codes))
	for label := range codes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	out := make([]stats.StatusCodeStats, 0, len(labels))
	for _, label := range labels {
		out = append(out, stats.StatusCodeStats{Code: label, Count: codes[label]})
	}
	return out
}

func (o *outcomeState) record(latencyUS, transfer int64) {
	o.count++
	if latencyUS < o.latency.LowestTrackableValue() {
		latencyUS = o.latency.LowestTrackableValue()
	}
	if latencyUS > o.latency.HighestTrackableValue() {
		latencyUS = o.latency.HighestTrackableValue()
	}
	_ = o.latency.RecordValue(latencyUS)

	if transfer > 0 {
		o.bytes += transfer
		if transfer > o.transfer.HighestTrackableValue() {
			transfer = o.transfer.HighestTrackableValue()
		}
		_ = o.transfer.RecordValue(transfer)
	}
}

func (o *outcomeState) measurement(elapsed time.Duration) stats.MeasurementStats {
	m := stats.MeasurementStats{}
	m.Request.Count = o.count
	if elapsed > 0 && o.count > 0 {
		m.Request.RPS = float64(o.count) / elapsed.Seconds()
	}

	if o.latency.TotalCount() > 0 {
		m.Latency = stats.LatencyStats{
			Min:       microsToMillis(o.latency.Min()),
			Mean:      o.latency.Mean() / 1000,
			Max:       microsToMillis(o.latency.Max()),
			StdDev:    o.latency.StdDev() / 1000,
			Percent50: microsToMillis(o.latency.ValueAtQuantile(50)),
			Percent75: microsToMillis(o.latency.ValueAtQuantile(75)),
			Percent95: microsToMillis(o.latency.ValueAtQuantile(95)),
			Percent99: microsToMillis(o.latency.ValueAtQuantile(99)),
		}
	}

	if o.transfer.TotalCount() > 0 {
		m.DataTransfer = stats.DataTransferStats{
			Min:       o.transfer.Min(),
			Mean:      int64(o.transfer.Mean()),
			Max:       o.transfer.Max(),
			All:       o.bytes,
			Percent50: o.transfer.ValueAtQuantile(50),
			Percent75: o.transfer.ValueAtQuantile(75),
			Percent95: o.transfer.ValueAtQuantile(95),
			Percent99: o.transfer.ValueAtQuantile(99),
		}
	}

	return m
}

func microsToMillis(v int64) float64 {
	return float64(v) / 1000
}
