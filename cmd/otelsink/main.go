package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/renholt/otelsink/fileout"
	"github.com/renholt/otelsink/internal/config"
	"github.com/renholt/otelsink/internal/dashboard"
	"github.com/renholt/otelsink/internal/replay"
	"github.com/renholt/otelsink/internal/synth"
	"github.com/renholt/otelsink/sink"
	"github.com/renholt/otelsink/stats"
)

// consoleRecorder prints each flattened record as one JSON object per line,
// for dry runs against no collector.
type consoleRecorder struct {
	mu  sync.Mutex
	out io.Writer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DumpConfig {
		return cfg.Dump(os.Stdout)
	}

	sinkOpts, closer, err := buildRecorderOptions(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	s := sink.New(sinkOpts...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sinkCfg := sink.Config{
		Endpoint:     cfg.Endpoint,
		Protocol:     cfg.Protocol,
		Insecure:     cfg.Insecure,
		Headers:      cfg.Headers,
		ServiceName:  cfg.ServiceName,
		MetricPrefix: cfg.MetricPrefix,
	}
	info := stats.TestInfo{
		TestSuite: cfg.TestSuite,
		TestName:  cfg.TestName,
		SessionID: cfg.SessionID,
	}
	if err := s.Init(ctx, info, sinkCfg); err != nil {
		return err
	}

	generator := synth.New(cfg.Scenarios, cfg.Metrics, cfg.Interval, cfg.Seed)
	runner := replay.NewRunner(s, generator, cfg.Ticks, rate.Every(cfg.Interval))

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(dashboard.RunInfo{
			TestSuite:  cfg.TestSuite,
			TestName:   cfg.TestName,
			SessionID:  s.SessionID(),
			Endpoint:   cfg.Endpoint,
			Protocol:   cfg.Protocol,
			Ticks:      cfg.Ticks,
			Interval:   cfg.Interval,
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		defer dash.Stop()

		runner.OnTick = func(tick int, scenarios []stats.ScenarioStats) {
			dash.Observe(tick, scenarios, s.Emitted())
		}
	} else if cfg.Output != config.OutputConsole {
		runner.OnTick = func(tick int, scenarios []stats.ScenarioStats) {
			fmt.Fprintf(os.Stderr, "\rtick %d/%d | records emitted: %d", tick, cfg.Ticks, s.Emitted())
		}
		defer fmt.Fprintln(os.Stderr)
	}

	runErr := runner.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	fmt.Fprintf(os.Stderr, "session %s: emitted %d records over %d scenario(s)\n",
		s.SessionID(), s.Emitted(), len(cfg.Scenarios))
	return nil
}

// buildRecorderOptions selects where flattened records go. The OTLP exporter
// is the sink's default, so it needs no option here.
func buildRecorderOptions(cfg *config.Config) ([]sink.Option, func(), error) {
	switch cfg.Output {
	case config.OutputJSONL:
		recorder, err := fileout.New(cfg.JSONLPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open jsonl output: %w", err)
		}
		closer := func() {
			_ = recorder.Shutdown(context.Background())
		}
		return []sink.Option{sink.WithRecorder(recorder)}, closer, nil
	case config.OutputConsole:
		return []sink.Option{sink.WithRecorder(&consoleRecorder{out: os.Stdout})}, nil, nil
	default:
		return nil, nil, nil
	}
}

func (c *consoleRecorder) RecordGauge(_ context.Context, name string, value float64, tags []sink.Tag, unit string) error {
	line := struct {
		Name  string            `json:"name"`
		Value float64           `json:"value"`
		Tags  map[string]string `json:"tags,omitempty"`
		Unit  string            `json:"unit,omitempty"`
	}{Name: name, Value: value, Unit: unit}
	if len(tags) > 0 {
		line.Tags = make(map[string]string, len(tags))
		for _, tag := range tags {
			line.Tags[tag.Key] = tag.Value
		}
	}

	data, err := json.Marshal(line)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = fmt.Fprintln(c.out, string(data))
	return err
}

func (c *consoleRecorder) Flush(context.Context) error { return nil }

func (c *consoleRecorder) Shutdown(context.Context) error { return nil }
