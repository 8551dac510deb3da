// Package sinktest provides an in-memory Recorder for testing emission
// pipelines without a collector.
package sinktest

import (
	"context"
	"sync"

	"github.com/renholt/otelsink/sink"
)

// Gauge is one captured RecordGauge call.
type Gauge struct {
	Name  string
	Value float64
	Tags  []sink.Tag
	Unit  string
}

// Recorder captures gauges in call order and counts flushes and shutdowns.
// Failures can be injected per call through the error hooks.
type Recorder struct {
	mu        sync.Mutex
	gauges    []Gauge
	flushes   int
	shutdowns int

	// RecordGaugeErr, when set, is consulted per record; a non-nil return is
	// surfaced to the caller and the record is not captured.
	RecordGaugeErr func(name string) error
	FlushErr       error
	ShutdownErr    error
}

// NewRecorder returns an empty in-memory Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordGauge(ctx context.Context, name string, value float64, tags []sink.Tag, unit string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RecordGaugeErr != nil {
		if err := r.RecordGaugeErr(name); err != nil {
			return err
		}
	}
	copied := make([]sink.Tag, len(tags))
	copy(copied, tags)
	r.gauges = append(r.gauges, Gauge{Name: name, Value: value, Tags: copied, Unit: unit})
	return nil
}

func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return r.FlushErr
}

func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdowns++
	return r.ShutdownErr
}

// Gauges returns a copy of everything captured so far, in call order.
func (r *Recorder) Gauges() []Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Gauge, len(r.gauges))
	copy(out, r.gauges)
	return out
}

// Flushes returns how many times Flush was called.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Shutdowns returns how many times Shutdown was called.
func (r *Recorder) Shutdowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdowns
}

// Reset clears captured gauges and counters but keeps the error hooks.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges = nil
	r.flushes = 0
	r.shutdowns = 0
}
