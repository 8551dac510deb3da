package sink

import (
	"sort"

	"github.com/renholt/otelsink/stats"
)

// GlobalStepName is the synthesized per-scenario rollup step. It carries the
// scenario-level totals so backends get a scenario series next to the
// per-step series.
const GlobalStepName = "global information"

// FlattenScenarios converts scenario snapshots into an ordered record
// sequence. It is pure: no I/O, no validation, identical output for identical
// input. NaN and negative values pass through unchanged.
func FlattenScenarios(scenarios []stats.ScenarioStats, tc TagContext) []Record {
	var out []Record
	for _, sc := range scenarios {
		out = append(out, flattenScenario(sc, tc)...)
	}
	return out
}

// FlattenMetrics converts user-defined counter/gauge stats into records, one
// per stat, named by the stat's own metric name. Both kinds are emitted as
// instantaneous values.
func FlattenMetrics(metrics []stats.MetricStat, tc TagContext) []Record {
	out := make([]Record, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, Record{
			Name:  m.Name,
			Value: m.Value,
			Tags:  tc.tags(Tag{Key: "scenario", Value: m.Scenario}),
			Unit:  m.Unit,
		})
	}
	return out
}

func flattenScenario(sc stats.ScenarioStats, tc TagContext) []Record {
	steps := make([]stats.StepStats, 0, len(sc.Steps)+1)
	steps = append(steps, stats.StepStats{
		Name:      GlobalStepName,
		SortIndex: 0,
		Ok:        sc.Ok,
		Fail:      sc.Fail,
	})
	steps = append(steps, sc.Steps...)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].SortIndex < steps[j].SortIndex
	})

	var out []Record
	for _, step := range steps {
		out = append(out, flattenStep(sc.Name, step, tc)...)
	}

	out = append(out, Record{
		Name:  "simulation.value",
		Value: float64(sc.LoadSimulation.Value),
		Tags:  tc.tags(Tag{Key: "scenario", Value: sc.Name}),
	})

	return append(out, flattenStatusCodes(sc, tc)...)
}

func flattenStep(scenario string, step stats.StepStats, tc TagContext) []Record {
	tags := func() []Tag {
		return tc.tags(
			Tag{Key: "scenario", Value: scenario},
			Tag{Key: "step", Value: step.Name},
		)
	}

	out := []Record{
		{
			Name:  "all.request.count",
			Value: float64(step.Ok.Request.Count + step.Fail.Request.Count),
			Tags:  tags(),
		},
		{
			Name:  "all.datatransfer.all",
			Value: float64(step.Ok.DataTransfer.All + step.Fail.DataTransfer.All),
			Tags:  tags(),
		},
	}
	out = appendOutcome(out, "ok", step.Ok, tags)
	return appendOutcome(out, "fail", step.Fail, tags)
}

func appendOutcome(out []Record, outcome string, m stats.MeasurementStats, tags func() []Tag) []Record {
	out = append(out,
		Record{Name: outcome + ".request.count", Value: float64(m.Request.Count), Tags: tags()},
		Record{Name: outcome + ".request.rps", Value: m.Request.RPS, Tags: tags()},
	)

	latency := []struct {
		suffix string
		value  float64
	}{
		{"min", m.Latency.Min},
		{"mean", m.Latency.Mean},
		{"max", m.Latency.Max},
		{"stddev", m.Latency.StdDev},
		{"percent50", m.Latency.Percent50},
		{"percent75", m.Latency.Percent75},
		{"percent95", m.Latency.Percent95},
		{"percent99", m.Latency.Percent99},
	}
	for _, entry := range latency {
		out = append(out, Record{
			Name:  outcome + ".latency." + entry.suffix,
			Value: entry.value,
			Tags:  tags(),
			Unit:  "ms",
		})
	}

	transfer := []struct {
		suffix string
		value  int64
	}{
		{"min", m.DataTransfer.Min},
		{"mean", m.DataTransfer.Mean},
		{"max", m.DataTransfer.Max},
		{"all", m.DataTransfer.All},
		{"percent50", m.DataTransfer.Percent50},
		{"percent75", m.DataTransfer.Percent75},
		{"percent95", m.DataTransfer.Percent95},
		{"percent99", m.DataTransfer.Percent99},
	}
	for _, entry := range transfer {
		out = append(out, Record{
			Name:  outcome + ".datatransfer." + entry.suffix,
			Value: float64(entry.value),
			Tags:  tags(),
			Unit:  "By",
		})
	}

	return out
}

// flattenStatusCodes merges the ok and fail status-code sets of one scenario.
// A label present in both outcomes is summed into a single record.
func flattenStatusCodes(sc stats.ScenarioStats, tc TagContext) []Record {
	counts := map[string]int64{}
	for _, entry := range sc.OkStatusCodes {
		counts[entry.Code] += entry.Count
	}
	for _, entry := range sc.FailStatusCodes {
		counts[entry.Code] += entry.Count
	}
	if len(counts) == 0 {
		return nil
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]Record, 0, len(codes))
	for _, code := range codes {
		out = append(out, Record{
			Name:  "status_code.count",
			Value: float64(counts[code]),
			Tags: tc.tags(
				Tag{Key: "scenario", Value: sc.Name},
				Tag{Key: "status_code", Value: code},
			),
		})
	}
	return out
}
