// Package stats defines the statistics model a load-testing host hands to the sink.
//
// All types are plain value snapshots: the host produces them once per
// reporting tick, the sink reads them and never mutates or retains them.
package stats

import "time"

// TestInfo identifies one test run.
type TestInfo struct {
	TestSuite string `json:"test_suite"`
	TestName  string `json:"test_name"`
	SessionID string `json:"session_id"`
}

// RequestStats aggregates request counts for one outcome.
type RequestStats struct {
	Count int64   `json:"count"`
	RPS   float64 `json:"rps"`
}

// LatencyStats is a latency distribution in milliseconds.
type LatencyStats struct {
	Min       float64 `json:"min"`
	Mean      float64 `json:"mean"`
	Max       float64 `json:"max"`
	StdDev    float64 `json:"std_dev"`
	Percent50 float64 `json:"percent50"`
	Percent75 float64 `json:"percent75"`
	Percent95 float64 `json:"percent95"`
	Percent99 float64 `json:"percent99"`
}

// DataTransferStats is a payload-size distribution in bytes. All is the
// cumulative number of bytes transferred.
type DataTransferStats struct {
	Min       int64 `json:"min"`
	Mean      int64 `json:"mean"`
	Max       int64 `json:"max"`
	All       int64 `json:"all"`
	Percent50 int64 `json:"percent50"`
	Percent75 int64 `json:"percent75"`
	Percent95 int64 `json:"percent95"`
	Percent99 int64 `json:"percent99"`
}

// MeasurementStats bundles the request, latency and data-transfer aggregates
// for one outcome (ok or fail).
type MeasurementStats struct {
	Request      RequestStats      `json:"request"`
	Latency      LatencyStats      `json:"latency"`
	DataTransfer DataTransferStats `json:"data_transfer"`
}

// StatusCodeStats counts occurrences of one status code label.
type StatusCodeStats struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// LoadSimulationStats reports the current value of the active load simulation
// (for example the number of simulated users).
type LoadSimulationStats struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// StepStats aggregates one timed operation within a scenario, split by outcome.
type StepStats struct {
	Name      string           `json:"name"`
	SortIndex int              `json:"sort_index"`
	Ok        MeasurementStats `json:"ok"`
	Fail      MeasurementStats `json:"fail"`
}

// ScenarioStats is one scenario's point-in-time aggregate. Ok and Fail are the
// scenario-level totals across all steps.
type ScenarioStats struct {
	Name            string              `json:"name"`
	Steps           []StepStats         `json:"steps"`
	LoadSimulation  LoadSimulationStats `json:"load_simulation"`
	Ok              MeasurementStats    `json:"ok"`
	Fail            MeasurementStats    `json:"fail"`
	OkStatusCodes   []StatusCodeStats   `json:"ok_status_codes"`
	FailStatusCodes []StatusCodeStats   `json:"fail_status_codes"`
	Duration        time.Duration       `json:"duration"`
}

// MetricKind distinguishes the upstream accumulation semantics of a custom
// metric. The sink emits both kinds as instantaneous gauge values.
type MetricKind string

const (
	MetricKindCounter MetricKind = "counter"
	MetricKindGauge   MetricKind = "gauge"
)

// MetricStat is a user-defined counter or gauge owned by one scenario.
type MetricStat struct {
	Name     string     `json:"name"`
	Scenario string     `json:"scenario"`
	Kind     MetricKind `json:"kind"`
	Value    float64    `json:"value"`
	Unit     string     `json:"unit,omitempty"`
}

// NodeStats is the final aggregate delivered once at run completion.
type NodeStats struct {
	Scenarios []ScenarioStats `json:"scenarios"`
	Metrics   []MetricStat    `json:"metrics"`
	Duration  time.Duration   `json:"duration"`
}
