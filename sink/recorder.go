package sink

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Recorder is the backend capability the sink emits through. Implementations
// may buffer internally; Flush must not return before buffered samples have
// been handed to the transport.
type Recorder interface {
	// RecordGauge records one instantaneous value. unit may be empty.
	RecordGauge(ctx context.Context, name string, value float64, tags []Tag, unit string) error
	// Flush pushes buffered samples to the backend.
	Flush(ctx context.Context) error
	// Shutdown flushes and releases the backend connection.
	Shutdown(ctx context.Context) error
}

// FailureLogger receives per-record emission failures. The sink logs and
// continues; it never propagates a single record's failure as a run error.
type FailureLogger interface {
	LogFailure(err error)
}

type stderrFailureLogger struct {
	mu sync.Mutex
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[otelsink] emission failed: %v\n", err)
}
