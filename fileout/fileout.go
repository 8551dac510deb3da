// Package fileout writes the emission stream to a JSON-Lines file, one record
// per line, so an emission run can be captured and inspected without a
// collector.
package fileout

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/renholt/otelsink/sink"
)

// Recorder is a sink.Recorder backed by an append-only JSONL file. An
// advisory lock next to the file keeps two processes from interleaving lines.
type Recorder struct {
	mu     sync.Mutex
	lock   *flock.Flock
	file   *os.File
	writer *bufio.Writer
	closed bool
}

type line struct {
	Name  string            `json:"name"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
	Unit  string            `json:"unit,omitempty"`
}

// New opens (or creates) path for appending and takes the advisory lock.
func New(path string) (*Recorder, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s is locked by another process", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &Recorder{
		lock:   lock,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// RecordGauge appends one JSON object line.
func (r *Recorder) RecordGauge(ctx context.Context, name string, value float64, tags []sink.Tag, unit string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder is closed")
	}

	entry := line{Name: name, Value: value, Unit: unit}
	if len(tags) > 0 {
		entry.Tags = make(map[string]string, len(tags))
		for _, tag := range tags {
			entry.Tags[tag.Key] = tag.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", name, err)
	}
	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("write record %s: %w", name, err)
	}
	if err := r.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write record %s: %w", name, err)
	}
	return nil
}

// Flush pushes buffered lines to the file.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.writer.Flush()
}

// Shutdown flushes, closes the file and releases the lock. Safe to call
// more than once.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	flushErr := r.writer.Flush()
	closeErr := r.file.Close()
	unlockErr := r.lock.Unlock()

	if flushErr != nil {
		return fmt.Errorf("flush: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close: %w", closeErr)
	}
	if unlockErr != nil {
		return fmt.Errorf("unlock: %w", unlockErr)
	}
	return nil
}
