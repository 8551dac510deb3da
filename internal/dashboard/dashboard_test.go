package dashboard

import (
	"strings"
	"testing"

	"github.com/renholt/otelsink/stats"
)

func sampleScenarios() []stats.ScenarioStats {
	return []stats.ScenarioStats{
		{
			Name: "checkout",
			Ok: stats.MeasurementStats{
				Request: stats.RequestStats{Count: 95, RPS: 19},
				Latency: stats.LatencyStats{Percent99: 312.5},
			},
			Fail: stats.MeasurementStats{
				Request: stats.RequestStats{Count: 5},
			},
			OkStatusCodes:   []stats.StatusCodeStats{{Code: "200", Count: 95}},
			FailStatusCodes: []stats.StatusCodeStats{{Code: "503", Count: 5}},
		},
	}
}

func TestFormatScenarioRows(t *testing.T) {
	rows := formatScenarioRows(sampleScenarios())
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	for _, want := range []string{"checkout", "total 100", "5.0%", "312.5ms"} {
		if !strings.Contains(row, want) {
			t.Errorf("row %q missing %q", row, want)
		}
	}
}

func TestFormatStatusRows(t *testing.T) {
	rows := formatStatusRows(sampleScenarios())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if !strings.Contains(rows[0], "200") || !strings.Contains(rows[0], "95") {
		t.Errorf("ok row = %q", rows[0])
	}
	if !strings.Contains(rows[1], "503") || !strings.Contains(rows[1], "fg:red") {
		t.Errorf("fail row = %q", rows[1])
	}
}

func TestFormatStatusRowsEmpty(t *testing.T) {
	rows := formatStatusRows(nil)
	if len(rows) != 1 || !strings.Contains(rows[0], "No data") {
		t.Errorf("rows = %v", rows)
	}
}

func TestFormatStatusRowsCapped(t *testing.T) {
	scenarios := sampleScenarios()
	for i := 0; i < 12; i++ {
		scenarios[0].FailStatusCodes = append(scenarios[0].FailStatusCodes,
			stats.StatusCodeStats{Code: "500", Count: int64(i)})
	}
	rows := formatStatusRows(scenarios)
	if len(rows) != 10 {
		t.Errorf("rows = %d, want cap of 10", len(rows))
	}
}
