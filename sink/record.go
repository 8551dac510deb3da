// Package sink converts load-test statistics snapshots into a flat, tagged
// gauge stream and pushes it to a metrics backend through a narrow Recorder
// capability. The default backend is an OTLP exporter; any Recorder can be
// substituted.
package sink

// Operation tells the backend whether a batch was captured mid-run or at run
// completion.
type Operation string

const (
	OperationRunning  Operation = "running"
	OperationComplete Operation = "complete"
)

// Tag is one key/value label on an emitted metric sample.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record is a single metric emission: name, value, ordered tag list and an
// optional unit. Records only live for the duration of one flattening call.
type Record struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Tags  []Tag   `json:"tags"`
	Unit  string  `json:"unit,omitempty"`
}

// TagContext carries the run-level tags merged into every record of a batch.
type TagContext struct {
	TestSuite string
	TestName  string
	SessionID string
	Operation Operation
}

// tags builds a fresh tag list from the context plus record-specific tags.
// Each record gets its own slice so no tags leak between unrelated emissions.
func (c TagContext) tags(extra ...Tag) []Tag {
	out := make([]Tag, 0, 4+len(extra))
	out = append(out,
		Tag{Key: "test_suite", Value: c.TestSuite},
		Tag{Key: "test_name", Value: c.TestName},
		Tag{Key: "session_id", Value: c.SessionID},
		Tag{Key: "operation_type", Value: string(c.Operation)},
	)
	return append(out, extra...)
}
