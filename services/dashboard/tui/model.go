// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui provides the terminal dashboard of the analytics service.
//
// # Description
//
// The dashboard polls the summary endpoint on a fixed interval and renders
// totals, the portfolio table, the usage distribution and the daily trend
// of a representative portfolio. Selecting a row opens a drill-down with
// lifetime statistics and two daily charts.
//
// Refresh runs Idle -> Refreshing -> Idle. A refresh requested while one is
// in flight is ignored, and the timer is re-armed on every tick so a slow
// fetch never delays the next one. A failed refresh marks the connection
// as broken but keeps the last good data on screen.
//
// The drill-down runs Closed -> Loading -> Ready (or Failed) -> Closed.
// Each open gets a fresh token and a cancellable context. Closing cancels
// the fetch and destroys the drill-down charts, and any result whose token
// or portfolio id no longer matches is dropped.
//
// # Thread Safety
//
// Model is used only from the bubbletea event loop. Fetches run in
// commands and report back through messages.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/dashboard/chart"
)

// =============================================================================
// States
// =============================================================================

// RefreshState tracks whether a summary fetch is in flight.
type RefreshState int

const (
	// Idle means no summary fetch is in flight.
	Idle RefreshState = iota
	// Refreshing means a summary fetch is in flight.
	Refreshing
)

// ConnStatus is the outcome of the latest summary fetch.
type ConnStatus int

const (
	// Connecting is the status before the first fetch completes.
	Connecting ConnStatus = iota
	// Connected means the latest fetch succeeded.
	Connected
	// ConnectionError means the latest fetch failed.
	ConnectionError
)

// String returns the status label shown in the header.
func (s ConnStatus) String() string {
	switch s {
	case Connected:
		return "Connected"
	case ConnectionError:
		return "Connection error"
	default:
		return "Connecting"
	}
}

// DrillPhase is the lifecycle of the drill-down.
type DrillPhase int

const (
	// DrillClosed means no drill-down is shown.
	DrillClosed DrillPhase = iota
	// DrillLoading means the drill-down is open and waiting for data.
	DrillLoading
	// DrillReady means the drill-down shows its data and charts.
	DrillReady
	// DrillFailed means the fetch failed; the header stays visible.
	DrillFailed
)

// =============================================================================
// Messages
// =============================================================================

type refreshMsg struct{}

type tickMsg struct {
	at time.Time
}

type summaryMsg struct {
	gen  uint64
	resp datatypes.StatsResponse
	err  error
}

type trendMsg struct {
	gen  uint64
	id   int64
	resp datatypes.PortfolioStatsResponse
	err  error
}

type drillMsg struct {
	token uint64
	id    int64
	resp  datatypes.PortfolioStatsResponse
	err   error
}

// =============================================================================
// Config
// =============================================================================

// Source fetches dashboard data. *client.Client satisfies it.
type Source interface {
	Summary(ctx context.Context) (datatypes.StatsResponse, error)
	Portfolio(ctx context.Context, id int64) (datatypes.PortfolioStatsResponse, error)
}

// Config configures the dashboard.
type Config struct {
	// Interval between automatic refreshes (default 30s).
	Interval time.Duration

	// FetchTimeout bounds each summary and trend fetch (default 10s).
	FetchTimeout time.Duration

	// Server is shown in the header.
	Server string

	// Now returns the current time (default time.Now).
	Now func() time.Time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		FetchTimeout: 10 * time.Second,
		Now:          time.Now,
	}
}

type keyMap struct {
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Open    key.Binding
	Close   key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Up, k.Down, k.Open, k.Close, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Close:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// =============================================================================
// Model
// =============================================================================

// drillDown is the state of the per-portfolio detail view.
type drillDown struct {
	phase     DrillPhase
	portfolio datatypes.PortfolioSummary
	token     uint64
	cancel    context.CancelFunc
	stats     datatypes.PortfolioStatsResponse
	avgPerDay int64
	activity  *chart.Chart
	ratio     *chart.Chart
	err       error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	config Config
	source Source
	charts *chart.Registry
	help   help.Model

	refresh   RefreshState
	status    ConnStatus
	lastErr   error
	summary   *datatypes.StatsResponse
	updatedAt time.Time
	gen       uint64

	// Overview charts live as long as the model.
	distribution *chart.Chart
	trend        *chart.Chart
	trendID      int64
	trendGen     uint64

	cursor     int
	drill      drillDown
	drillToken uint64

	width    int
	height   int
	quitting bool
}

// New creates a dashboard model.
//
// # Inputs
//
//   - source: Where data comes from, usually *client.Client.
//   - charts: Registry the model allocates its charts from.
//   - config: Zero fields take DefaultConfig values.
//
// # Outputs
//
//   - Model: Ready for tea.NewProgram.
func New(source Source, charts *chart.Registry, config Config) Model {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = def.FetchTimeout
	}
	if config.Now == nil {
		config.Now = def.Now
	}
	return Model{
		config:       config,
		source:       source,
		charts:       charts,
		help:         help.New(),
		distribution: charts.Allocate(chart.Bar, "Usage distribution"),
		trend:        charts.Allocate(chart.Line, "Daily interactions"),
	}
}

// Status returns the connection status.
func (m Model) Status() ConnStatus { return m.status }

// Refreshing reports whether a summary fetch is in flight.
func (m Model) Refreshing() bool { return m.refresh == Refreshing }

// DrillPhase returns the drill-down phase.
func (m Model) DrillPhase() DrillPhase { return m.drill.phase }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return refreshMsg{} },
		m.tick(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		return m.startRefresh()

	case tickMsg:
		var cmd tea.Cmd
		m, cmd = m.startRefresh()
		return m, tea.Batch(m.tick(), cmd)

	case summaryMsg:
		return m.applySummary(msg)

	case trendMsg:
		return m.applyTrend(msg), nil

	case drillMsg:
		return m.applyDrill(msg), nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m = m.closeDrill()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Refresh):
		return m.startRefresh()

	case key.Matches(msg, keys.Close):
		return m.closeDrill(), nil

	case key.Matches(msg, keys.Open):
		if m.summary == nil || m.cursor >= len(m.summary.Portfolios) {
			return m, nil
		}
		return m.openDrill(m.summary.Portfolios[m.cursor])

	case key.Matches(msg, keys.Up):
		if m.drill.phase == DrillClosed && m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.drill.phase == DrillClosed && m.summary != nil && m.cursor < len(m.summary.Portfolios)-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.config.Interval, func(t time.Time) tea.Msg {
		return tickMsg{at: t}
	})
}

// =============================================================================
// Refresh
// =============================================================================

func (m Model) startRefresh() (Model, tea.Cmd) {
	if m.refresh == Refreshing {
		return m, nil
	}
	m.refresh = Refreshing
	m.gen++
	gen := m.gen
	src, timeout := m.source, m.config.FetchTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := src.Summary(ctx)
		return summaryMsg{gen: gen, resp: resp, err: err}
	}
}

func (m Model) applySummary(msg summaryMsg) (Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	m.refresh = Idle
	if msg.err != nil {
		m.status = ConnectionError
		m.lastErr = msg.err
		return m, nil
	}

	resp := msg.resp
	m.summary = &resp
	m.status = Connected
	m.lastErr = nil
	m.updatedAt = m.config.Now()
	if m.cursor >= len(resp.Portfolios) {
		m.cursor = max(len(resp.Portfolios)-1, 0)
	}

	labels := make([]string, len(resp.Portfolios))
	values := make([]float64, len(resp.Portfolios))
	for i, p := range resp.Portfolios {
		labels[i] = p.Short
		values[i] = float64(p.TotalInteractions)
	}
	_ = m.distribution.Update(labels, chart.Series{Name: "Interactions", Values: values})

	rep, ok := Representative(resp.Portfolios)
	if !ok {
		return m, nil
	}
	m.trendGen++
	gen, id := m.trendGen, rep.ID
	src, timeout := m.source, m.config.FetchTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := src.Portfolio(ctx, id)
		return trendMsg{gen: gen, id: id, resp: resp, err: err}
	}
}

func (m Model) applyTrend(msg trendMsg) Model {
	if msg.gen != m.trendGen || msg.err != nil {
		return m
	}
	days := LastDays(msg.resp.Daywise, ChartDays)
	labels := make([]string, len(days))
	values := make([]float64, len(days))
	for i, d := range days {
		labels[i] = chart.DayLabel(d.Date)
		values[i] = float64(d.Interactions)
	}
	if err := m.trend.Update(labels, chart.Series{Name: "Interactions", Values: values}); err == nil {
		m.trendID = msg.id
	}
	return m
}

// =============================================================================
// Drill-down
// =============================================================================

func (m Model) openDrill(p datatypes.PortfolioSummary) (Model, tea.Cmd) {
	m = m.closeDrill()

	m.drillToken++
	ctx, cancel := context.WithCancel(context.Background())
	m.drill = drillDown{
		phase:     DrillLoading,
		portfolio: p,
		token:     m.drillToken,
		cancel:    cancel,
	}

	token, id, src := m.drillToken, p.ID, m.source
	return m, func() tea.Msg {
		resp, err := src.Portfolio(ctx, id)
		return drillMsg{token: token, id: id, resp: resp, err: err}
	}
}

func (m Model) applyDrill(msg drillMsg) Model {
	d := m.drill
	if d.phase != DrillLoading || msg.token != d.token || msg.id != d.portfolio.ID {
		return m
	}
	d.cancel()

	if msg.err != nil {
		d.phase = DrillFailed
		d.err = msg.err
		m.drill = d
		return m
	}

	d.stats = msg.resp
	d.avgPerDay = AveragePerDay(msg.resp.Stats.TotalInteractions, msg.resp.Stats.ActiveDays)

	days := LastDays(msg.resp.Daywise, ChartDays)
	labels := make([]string, len(days))
	interactions := make([]float64, len(days))
	sessions := make([]float64, len(days))
	ratios := make([]float64, len(days))
	for i, day := range days {
		labels[i] = chart.DayLabel(day.Date)
		interactions[i] = float64(day.Interactions)
		sessions[i] = float64(day.Sessions)
		ratios[i] = SessionRatio(day.Interactions, day.Sessions)
	}

	d.activity = m.charts.Allocate(chart.Bar, "Daily activity")
	_ = d.activity.Update(labels,
		chart.Series{Name: "Interactions", Values: interactions},
		chart.Series{Name: "Sessions", Values: sessions},
	)
	d.ratio = m.charts.Allocate(chart.Line, "Interactions per session")
	_ = d.ratio.Update(labels, chart.Series{Name: "Ratio", Values: ratios, Decimals: 1})

	d.phase = DrillReady
	m.drill = d
	return m
}

func (m Model) closeDrill() Model {
	d := m.drill
	if d.phase == DrillClosed {
		return m
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.activity != nil {
		d.activity.Destroy()
	}
	if d.ratio != nil {
		d.ratio.Destroy()
	}
	m.drill = drillDown{}
	return m
}
