// Package dashboard renders a live terminal view of the snapshots flowing
// through the reporting sink.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/renholt/otelsink/stats"
)

// RunInfo holds run parameters for display.
type RunInfo struct {
	TestSuite  string
	TestName   string
	SessionID  string
	Endpoint   string
	Protocol   string
	Ticks      int
	Interval   time.Duration
	ConfigFile string
}

// Dashboard is a termui view updated once per reported batch.
type Dashboard struct {
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	scenarioList   *widgets.List
	statusList     *widgets.List
	latencyPara    *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	latencyHistory []float64

	info      RunInfo
	startTime time.Time

	// Last observed batch.
	tick      int
	emitted   int64
	scenarios []stats.ScenarioStats
}

// New initializes the terminal UI. shutdownFunc is invoked when the user
// presses q or Ctrl-C.
func New(info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		info:           info,
		startTime:      time.Now(),
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Waiting for first batch..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.scenarioList = widgets.NewList()
	d.scenarioList.Title = "Scenarios"
	d.scenarioList.Rows = []string{"Awaiting data"}
	d.scenarioList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.scenarioList.BorderStyle.Fg = ui.ColorCyan

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Codes"
	d.statusList.Rows = []string{"No data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency (first scenario)"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP95: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "P95 (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Latency Trend"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.2,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.35,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.45,
			ui.NewCol(0.6, d.scenarioList),
			ui.NewCol(0.4, d.statusList),
		),
	)
}

// Start begins the dashboard event loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// Observe records the latest reported batch. Safe to call from the replay
// goroutine while the event loop renders.
func (d *Dashboard) Observe(tick int, scenarios []stats.ScenarioStats, emitted int64) {
	d.mu.Lock()
	d.tick = tick
	d.emitted = emitted
	d.scenarios = scenarios
	if len(scenarios) > 0 {
		p95 := scenarios[0].Ok.Latency.Percent95
		d.latencyHistory = append(d.latencyHistory, p95)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
	}
	d.mu.Unlock()
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime).Round(time.Second)
	d.summaryPara.Text = fmt.Sprintf(
		"Suite: %s | Test: %s\nSession: %s\n%s\nElapsed: %s | Tick: %d/%d | Records emitted: %d",
		d.info.TestSuite,
		d.info.TestName,
		d.info.SessionID,
		d.formatTarget(),
		elapsed,
		d.tick,
		d.info.Ticks,
		d.emitted,
	)

	if len(d.latencyHistory) > 0 {
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		current := d.latencyHistory[len(d.latencyHistory)-1]
		d.latencySparkle.Title = fmt.Sprintf("Latency Trend | P95: %.2fms", current)
	}

	if len(d.scenarios) == 0 {
		return
	}

	lat := d.scenarios[0].Ok.Latency
	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP95:  %.2fms\nP99:  %.2fms",
		lat.Min, lat.Mean, lat.Percent50, lat.Percent95, lat.Percent99,
	)

	d.scenarioList.Rows = formatScenarioRows(d.scenarios)
	d.statusList.Rows = formatStatusRows(d.scenarios)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) formatTarget() string {
	parts := []string{fmt.Sprintf("Endpoint: %s (%s)", d.info.Endpoint, d.info.Protocol)}
	if d.info.Interval > 0 {
		parts = append(parts, fmt.Sprintf("Interval: %s", d.info.Interval))
	}
	if d.info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.info.ConfigFile))
	}
	return strings.Join(parts, " | ")
}

func formatScenarioRows(scenarios []stats.ScenarioStats) []string {
	rows := make([]string, 0, len(scenarios))
	for _, scenario := range scenarios {
		total := scenario.Ok.Request.Count + scenario.Fail.Request.Count
		failRate := 0.0
		if total > 0 {
			failRate = float64(scenario.Fail.Request.Count) / float64(total) * 100
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) | total %d | RPS %6.1f | fail %4.1f%% | P99 %6.1fms",
			scenario.Name,
			total,
			scenario.Ok.Request.RPS,
			failRate,
			scenario.Ok.Latency.Percent99,
		))
	}
	return rows
}

func formatStatusRows(scenarios []stats.ScenarioStats) []string {
	rows := make([]string, 0, 10)
	for _, scenario := range scenarios {
		for _, code := range scenario.OkStatusCodes {
			rows = append(rows, fmt.Sprintf("[%s %s](fg:green) %d", scenario.Name, code.Code, code.Count))
		}
		for _, code := range scenario.FailStatusCodes {
			rows = append(rows, fmt.Sprintf("[%s %s](fg:red) %d", scenario.Name, code.Code, code.Count))
		}
	}
	if len(rows) == 0 {
		return []string{"[No data](fg:green)"}
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}
	return rows
}
