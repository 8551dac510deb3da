package sink_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/renholt/otelsink/sink"
	"github.com/renholt/otelsink/stats"
)

func testTagContext(op sink.Operation) sink.TagContext {
	return sink.TagContext{
		TestSuite: "suite-a",
		TestName:  "nightly",
		SessionID: "session-1",
		Operation: op,
	}
}

func sampleScenario() stats.ScenarioStats {
	return stats.ScenarioStats{
		Name: "checkout",
		Steps: []stats.StepStats{
			{
				Name:      "login",
				SortIndex: 1,
				Ok: stats.MeasurementStats{
					Request: stats.RequestStats{Count: 100, RPS: 20},
					Latency: stats.LatencyStats{
						Min: 1, Mean: 5, Max: 50, StdDev: 2,
						Percent50: 4, Percent75: 6, Percent95: 12, Percent99: 30,
					},
					DataTransfer: stats.DataTransferStats{
						Min: 100, Mean: 512, Max: 4096, All: 51200,
						Percent50: 500, Percent75: 700, Percent95: 2000, Percent99: 4000,
					},
				},
				Fail: stats.MeasurementStats{
					Request: stats.RequestStats{Count: 5, RPS: 1},
					DataTransfer: stats.DataTransferStats{
						All: 1024,
					},
				},
			},
		},
		LoadSimulation: stats.LoadSimulationStats{Name: "keep_constant", Value: 50},
		Ok: stats.MeasurementStats{
			Request:      stats.RequestStats{Count: 100, RPS: 20},
			DataTransfer: stats.DataTransferStats{All: 51200},
		},
		Fail: stats.MeasurementStats{
			Request:      stats.RequestStats{Count: 5, RPS: 1},
			DataTransfer: stats.DataTransferStats{All: 1024},
		},
		OkStatusCodes: []stats.StatusCodeStats{
			{Code: "200", Count: 100},
		},
		FailStatusCodes: []stats.StatusCodeStats{
			{Code: "500", Count: 3},
			{Code: "503", Count: 2},
		},
	}
}

func findRecords(records []sink.Record, name string) []sink.Record {
	var out []sink.Record
	for _, r := range records {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

func tagValue(r sink.Record, key string) (string, bool) {
	for _, tag := range r.Tags {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

func TestFlattenScenariosSynthesizesGlobalStep(t *testing.T) {
	scenario := sampleScenario()
	records := sink.FlattenScenarios([]stats.ScenarioStats{scenario}, testTagContext(sink.OperationRunning))

	var globalSteps []sink.Record
	for _, r := range findRecords(records, "ok.request.count") {
		if step, _ := tagValue(r, "step"); step == sink.GlobalStepName {
			globalSteps = append(globalSteps, r)
		}
	}
	if len(globalSteps) != 1 {
		t.Fatalf("expected exactly one %q ok.request.count record, got %d", sink.GlobalStepName, len(globalSteps))
	}
	if got := globalSteps[0].Value; got != float64(scenario.Ok.Request.Count) {
		t.Errorf("global step ok.request.count = %v, want %v", got, scenario.Ok.Request.Count)
	}

	// Sort index 0 puts the rollup first in emission order.
	first := records[0]
	if first.Name != "all.request.count" {
		t.Fatalf("first record = %q, want all.request.count", first.Name)
	}
	if step, _ := tagValue(first, "step"); step != sink.GlobalStepName {
		t.Errorf("first record step tag = %q, want %q", step, sink.GlobalStepName)
	}
}

func TestFlattenScenariosAdditiveInvariant(t *testing.T) {
	records := sink.FlattenScenarios([]stats.ScenarioStats{sampleScenario()}, testTagContext(sink.OperationRunning))

	type stepSums struct {
		all, ok, fail float64
		seen          int
	}
	sums := map[string]*stepSums{}
	for _, r := range records {
		step, ok := tagValue(r, "step")
		if !ok {
			continue
		}
		entry := sums[step]
		if entry == nil {
			entry = &stepSums{}
			sums[step] = entry
		}
		switch r.Name {
		case "all.request.count":
			entry.all = r.Value
			entry.seen++
		case "ok.request.count":
			entry.ok = r.Value
			entry.seen++
		case "fail.request.count":
			entry.fail = r.Value
			entry.seen++
		}
	}

	if len(sums) != 2 {
		t.Fatalf("expected 2 steps (global + login), got %d", len(sums))
	}
	for step, entry := range sums {
		if entry.seen != 3 {
			t.Fatalf("step %q: missing count records", step)
		}
		if entry.all != entry.ok+entry.fail {
			t.Errorf("step %q: all.request.count = %v, want ok+fail = %v", step, entry.all, entry.ok+entry.fail)
		}
	}

	// 100 ok + 5 fail must roll up to 105.
	login := sums["login"]
	if login.all != 105 {
		t.Errorf("login all.request.count = %v, want 105", login.all)
	}
}

func TestFlattenScenariosIdempotent(t *testing.T) {
	scenario := sampleScenario()
	tc := testTagContext(sink.OperationRunning)

	first := sink.FlattenScenarios([]stats.ScenarioStats{scenario}, tc)
	second := sink.FlattenScenarios([]stats.ScenarioStats{scenario}, tc)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("two flatten calls with identical input produced different sequences")
	}
}

func TestFlattenScenariosStepMetricSet(t *testing.T) {
	records := sink.FlattenScenarios([]stats.ScenarioStats{sampleScenario()}, testTagContext(sink.OperationRunning))

	wantPerStep := []string{
		"all.request.count",
		"all.datatransfer.all",
		"ok.request.count",
		"ok.request.rps",
		"ok.latency.min",
		"ok.latency.mean",
		"ok.latency.max",
		"ok.latency.stddev",
		"ok.latency.percent50",
		"ok.latency.percent75",
		"ok.latency.percent95",
		"ok.latency.percent99",
		"ok.datatransfer.min",
		"ok.datatransfer.mean",
		"ok.datatransfer.max",
		"ok.datatransfer.all",
		"ok.datatransfer.percent50",
		"ok.datatransfer.percent75",
		"ok.datatransfer.percent95",
		"ok.datatransfer.percent99",
		"fail.request.count",
		"fail.request.rps",
		"fail.latency.min",
		"fail.latency.mean",
		"fail.latency.max",
		"fail.latency.stddev",
		"fail.latency.percent50",
		"fail.latency.percent75",
		"fail.latency.percent95",
		"fail.latency.percent99",
		"fail.datatransfer.min",
		"fail.datatransfer.mean",
		"fail.datatransfer.max",
		"fail.datatransfer.all",
		"fail.datatransfer.percent50",
		"fail.datatransfer.percent75",
		"fail.datatransfer.percent95",
		"fail.datatransfer.percent99",
	}

	var loginNames []string
	for _, r := range records {
		if step, _ := tagValue(r, "step"); step == "login" {
			loginNames = append(loginNames, r.Name)
		}
	}
	if !reflect.DeepEqual(loginNames, wantPerStep) {
		t.Errorf("login step metric names = %v, want %v", loginNames, wantPerStep)
	}

	for _, r := range records {
		switch {
		case r.Unit == "ms" && !containsSegment(r.Name, "latency"):
			t.Errorf("record %q has unit ms but is not a latency metric", r.Name)
		case r.Unit == "By" && !containsSegment(r.Name, "datatransfer"):
			t.Errorf("record %q has unit By but is not a datatransfer metric", r.Name)
		}
	}
}

func containsSegment(name, segment string) bool {
	for start := 0; start+len(segment) <= len(name); start++ {
		if name[start:start+len(segment)] == segment {
			return true
		}
	}
	return false
}

func TestFlattenScenariosTagContextOnEveryRecord(t *testing.T) {
	tc := testTagContext(sink.OperationComplete)
	records := sink.FlattenScenarios([]stats.ScenarioStats{sampleScenario()}, tc)

	want := map[string]string{
		"test_suite":     tc.TestSuite,
		"test_name":      tc.TestName,
		"session_id":     tc.SessionID,
		"operation_type": string(tc.Operation),
	}
	for _, r := range records {
		for key, value := range want {
			got, ok := tagValue(r, key)
			if !ok {
				t.Fatalf("record %q is missing tag %q", r.Name, key)
			}
			if got != value {
				t.Fatalf("record %q tag %q = %q, want %q", r.Name, key, got, value)
			}
		}
		if _, ok := tagValue(r, "scenario"); !ok {
			t.Fatalf("record %q is missing scenario tag", r.Name)
		}

		seen := map[string]bool{}
		for _, tag := range r.Tags {
			if seen[tag.Key] {
				t.Fatalf("record %q has duplicate tag key %q", r.Name, tag.Key)
			}
			seen[tag.Key] = true
		}
	}
}

func TestFlattenScenariosSimulationValuePerScenario(t *testing.T) {
	records := sink.FlattenScenarios([]stats.ScenarioStats{sampleScenario()}, testTagContext(sink.OperationRunning))

	sim := findRecords(records, "simulation.value")
	if len(sim) != 1 {
		t.Fatalf("expected one simulation.value record per scenario, got %d", len(sim))
	}
	if sim[0].Value != 50 {
		t.Errorf("simulation.value = %v, want 50", sim[0].Value)
	}
	if _, ok := tagValue(sim[0], "step"); ok {
		t.Error("simulation.value must not carry a step tag")
	}
}

func TestFlattenScenariosStatusCodes(t *testing.T) {
	scenario := sampleScenario()
	// Overlapping label across outcomes must collapse into one summed record.
	scenario.OkStatusCodes = append(scenario.OkStatusCodes, stats.StatusCodeStats{Code: "500", Count: 1})

	records := sink.FlattenScenarios([]stats.ScenarioStats{scenario}, testTagContext(sink.OperationRunning))
	codes := findRecords(records, "status_code.count")
	if len(codes) != 3 {
		t.Fatalf("expected 3 distinct status_code.count records, got %d", len(codes))
	}

	want := map[string]float64{"200": 100, "500": 4, "503": 2}
	for _, r := range codes {
		code, ok := tagValue(r, "status_code")
		if !ok {
			t.Fatalf("status_code.count record is missing status_code tag")
		}
		if r.Value != want[code] {
			t.Errorf("status_code.count[%s] = %v, want %v", code, r.Value, want[code])
		}
		if _, ok := tagValue(r, "session_id"); !ok {
			t.Errorf("status_code.count[%s] is missing session_id tag", code)
		}
	}

	// Deterministic order: labels ascending.
	var order []string
	for _, r := range codes {
		code, _ := tagValue(r, "status_code")
		order = append(order, code)
	}
	if !reflect.DeepEqual(order, []string{"200", "500", "503"}) {
		t.Errorf("status code order = %v, want ascending labels", order)
	}
}

func TestFlattenScenariosPassesOddValuesThrough(t *testing.T) {
	scenario := sampleScenario()
	scenario.Steps[0].Ok.Latency.Mean = math.NaN()
	scenario.Steps[0].Fail.Request.Count = -7

	records := sink.FlattenScenarios([]stats.ScenarioStats{scenario}, testTagContext(sink.OperationRunning))

	var sawNaN, sawNegative bool
	for _, r := range records {
		if step, _ := tagValue(r, "step"); step != "login" {
			continue
		}
		if r.Name == "ok.latency.mean" && math.IsNaN(r.Value) {
			sawNaN = true
		}
		if r.Name == "fail.request.count" && r.Value == -7 {
			sawNegative = true
		}
	}
	if !sawNaN {
		t.Error("NaN latency was not passed through unchanged")
	}
	if !sawNegative {
		t.Error("negative count was not passed through unchanged")
	}
}

func TestFlattenMetricsOneRecordPerStat(t *testing.T) {
	metrics := []stats.MetricStat{
		{Name: "cart.size", Scenario: "checkout", Kind: stats.MetricKindGauge, Value: 3, Unit: "items"},
		{Name: "orders.total", Scenario: "checkout", Kind: stats.MetricKindCounter, Value: 120},
	}
	records := sink.FlattenMetrics(metrics, testTagContext(sink.OperationRunning))

	if len(records) != len(metrics) {
		t.Fatalf("got %d records, want %d", len(records), len(metrics))
	}
	for i, m := range metrics {
		if records[i].Name != m.Name {
			t.Errorf("record %d name = %q, want %q (never renamed)", i, records[i].Name, m.Name)
		}
		if records[i].Value != m.Value {
			t.Errorf("record %d value = %v, want %v", i, records[i].Value, m.Value)
		}
		if records[i].Unit != m.Unit {
			t.Errorf("record %d unit = %q, want %q", i, records[i].Unit, m.Unit)
		}
	}
}

func TestFlattenMetricsSameNameDifferentScenarios(t *testing.T) {
	metrics := []stats.MetricStat{
		{Name: "cart.size", Scenario: "checkout", Kind: stats.MetricKindGauge, Value: 3},
		{Name: "cart.size", Scenario: "browse", Kind: stats.MetricKindGauge, Value: 9},
	}
	records := sink.FlattenMetrics(metrics, testTagContext(sink.OperationRunning))

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (never collapsed)", len(records))
	}
	first, _ := tagValue(records[0], "scenario")
	second, _ := tagValue(records[1], "scenario")
	if first == second {
		t.Errorf("both records carry scenario %q; expected distinct scenario tags", first)
	}
}

func TestFlattenMetricsMissingUnit(t *testing.T) {
	records := sink.FlattenMetrics([]stats.MetricStat{
		{Name: "retries", Scenario: "checkout", Kind: stats.MetricKindCounter, Value: 4},
	}, testTagContext(sink.OperationComplete))

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Unit != "" {
		t.Errorf("unit = %q, want empty for a unit-less stat", records[0].Unit)
	}
}
