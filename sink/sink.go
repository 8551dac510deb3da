package sink

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/renholt/otelsink/stats"
)

// Sink implements the reporting lifecycle a load-testing host drives:
// Init, Start, SaveRealtimeMetrics, SaveRealtimeStats, SaveFinalStats,
// Stop, Dispose. The host invokes these sequentially; the sink keeps no
// internal locking beyond what its Recorder needs.
type Sink struct {
	recorder Recorder
	logger   FailureLogger
	cfg      Config
	info     stats.TestInfo
	prefix   string

	emitted     atomic.Int64
	initialized bool
	disposed    bool
}

// Option customizes a Sink before Init.
type Option func(*Sink)

// WithRecorder substitutes the backend. When set, Init skips building the
// OTLP recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Sink) { s.recorder = r }
}

// WithFailureLogger replaces the stderr default for per-record failures.
func WithFailureLogger(l FailureLogger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an unconfigured Sink. Call Init before any other lifecycle
// method.
func New(opts ...Option) *Sink {
	s := &Sink{logger: &stderrFailureLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init validates the config and establishes the backend. A malformed config
// is fatal here: failing the run loudly beats silently dropping every metric.
// When the host leaves SessionID empty a ULID is generated.
func (s *Sink) Init(ctx context.Context, info stats.TestInfo, cfg Config) error {
	if s.disposed {
		return ErrDisposed
	}
	if s.initialized {
		return fmt.Errorf("sink is already initialized")
	}

	normalized, err := cfg.withDefaults()
	if err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	if info.SessionID == "" {
		info.SessionID = ulid.Make().String()
	}

	if s.recorder == nil {
		recorder, err := NewOTLPRecorder(ctx, normalized)
		if err != nil {
			return fmt.Errorf("otlp recorder: %w", err)
		}
		s.recorder = recorder
	}

	s.cfg = normalized
	s.info = info
	s.prefix = normalized.MetricPrefix
	s.initialized = true
	return nil
}

// Start is a no-op hook kept for symmetry with the host protocol.
func (s *Sink) Start(ctx context.Context) error {
	return s.checkReady()
}

// SaveRealtimeMetrics emits one running batch of custom metric stats.
func (s *Sink) SaveRealtimeMetrics(ctx context.Context, metrics []stats.MetricStat) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	s.emit(ctx, FlattenMetrics(metrics, s.tagContext(OperationRunning)))
	return nil
}

// SaveRealtimeStats emits one running batch of scenario stats.
func (s *Sink) SaveRealtimeStats(ctx context.Context, scenarios []stats.ScenarioStats) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	s.emit(ctx, FlattenScenarios(scenarios, s.tagContext(OperationRunning)))
	return nil
}

// SaveFinalStats emits the run's closing batch: scenario stats and custom
// metric stats together, tagged complete.
func (s *Sink) SaveFinalStats(ctx context.Context, node stats.NodeStats) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	tc := s.tagContext(OperationComplete)
	records := FlattenScenarios(node.Scenarios, tc)
	records = append(records, FlattenMetrics(node.Metrics, tc)...)
	s.emit(ctx, records)
	return nil
}

// Stop is a no-op hook kept for symmetry with the host protocol.
func (s *Sink) Stop(ctx context.Context) error {
	return s.checkReady()
}

// Dispose flushes best-effort and releases the recorder. It completes even
// after prior emission errors; a second call is a no-op.
func (s *Sink) Dispose(ctx context.Context) error {
	if s.disposed {
		return nil
	}
	s.disposed = true
	if s.recorder == nil {
		return nil
	}
	if err := s.recorder.Flush(ctx); err != nil {
		s.logger.LogFailure(fmt.Errorf("final flush: %w", err))
	}
	if err := s.recorder.Shutdown(ctx); err != nil {
		return fmt.Errorf("recorder shutdown: %w", err)
	}
	return nil
}

// SessionID returns the session identifier in use, generated or host-given.
// Empty before Init.
func (s *Sink) SessionID() string {
	return s.info.SessionID
}

// Emitted reports how many records have been handed to the recorder.
func (s *Sink) Emitted() int64 {
	return s.emitted.Load()
}

// emit pushes one batch and flushes exactly once. A failed record is logged
// and the rest of the batch proceeds untouched.
func (s *Sink) emit(ctx context.Context, records []Record) {
	for _, record := range records {
		name := s.prefix + record.Name
		if err := s.recorder.RecordGauge(ctx, name, record.Value, record.Tags, record.Unit); err != nil {
			s.logger.LogFailure(fmt.Errorf("record %s: %w", name, err))
			continue
		}
		s.emitted.Add(1)
	}
	if err := s.recorder.Flush(ctx); err != nil {
		s.logger.LogFailure(fmt.Errorf("flush: %w", err))
	}
}

func (s *Sink) tagContext(op Operation) TagContext {
	return TagContext{
		TestSuite: s.info.TestSuite,
		TestName:  s.info.TestName,
		SessionID: s.info.SessionID,
		Operation: op,
	}
}

func (s *Sink) checkReady() error {
	if s.disposed {
		return ErrDisposed
	}
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}
