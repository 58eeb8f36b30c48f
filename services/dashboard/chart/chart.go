// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chart renders terminal charts for the dashboard and tracks every
// chart it hands out.
//
// # Description
//
// A chart is a resource: it is allocated from a Registry, updated with
// data, rendered, and destroyed. A destroyed chart refuses updates and
// renders nothing, so a handle kept past its owner's lifetime cannot show
// stale data. Registry.Live reports how many charts are still allocated,
// which lets tests prove that closing a view released everything it
// allocated.
//
// # Thread Safety
//
// Registry is safe for concurrent use. A Chart must only be used by the
// goroutine that owns it (the bubbletea Update loop).
package chart

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ErrDestroyed is returned when a destroyed chart is updated.
var ErrDestroyed = errors.New("chart destroyed")

// Kind selects how a chart is drawn.
type Kind int

const (
	// Bar draws one horizontal bar per label and series.
	Bar Kind = iota
	// Line draws each series as a sparkline.
	Line
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Bar:
		return "bar"
	case Line:
		return "line"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Series is one named row of values, aligned with the chart's labels.
type Series struct {
	Name   string
	Values []float64
	// Decimals is the number of decimals printed for values.
	Decimals int
}

// Registry allocates charts and tracks which are live.
type Registry struct {
	mu     sync.Mutex
	nextID int
	live   map[int]*Chart
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[int]*Chart)}
}

// Allocate creates a live chart.
func (r *Registry) Allocate(kind Kind, title string) *Chart {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := &Chart{id: r.nextID, kind: kind, title: title, registry: r}
	r.live[c.id] = c
	return c
}

// Live returns the number of charts not yet destroyed.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// LiveTitles returns the titles of live charts in allocation order.
func (r *Registry) LiveTitles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.live[id].title
	}
	return out
}

func (r *Registry) release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

// Chart is an allocated chart.
type Chart struct {
	id        int
	kind      Kind
	title     string
	registry  *Registry
	labels    []string
	series    []Series
	destroyed bool
}

// ID returns the registry id.
func (c *Chart) ID() int { return c.id }

// Kind returns the chart kind.
func (c *Chart) Kind() Kind { return c.kind }

// Title returns the chart title.
func (c *Chart) Title() string { return c.title }

// Destroyed reports whether Destroy was called.
func (c *Chart) Destroyed() bool { return c.destroyed }

// Labels returns a copy of the current labels.
func (c *Chart) Labels() []string { return append([]string(nil), c.labels...) }

// Series returns a copy of the current series.
func (c *Chart) Series() []Series {
	out := make([]Series, len(c.series))
	for i, s := range c.series {
		out[i] = Series{Name: s.Name, Values: append([]float64(nil), s.Values...), Decimals: s.Decimals}
	}
	return out
}

// Update replaces the chart data. Every series must have one value per
// label.
func (c *Chart) Update(labels []string, series ...Series) error {
	if c.destroyed {
		return fmt.Errorf("%w: %s", ErrDestroyed, c.title)
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return fmt.Errorf("series %q has %d values for %d labels", s.Name, len(s.Values), len(labels))
		}
	}
	c.labels = append([]string(nil), labels...)
	c.series = append([]Series(nil), series...)
	return nil
}

// Destroy releases the chart. It is safe to call more than once.
func (c *Chart) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.labels = nil
	c.series = nil
	c.registry.release(c.id)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
	seriesColors = []lipgloss.Color{"75", "141", "42", "214", "204"}
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Render draws the chart into at most width columns. A destroyed chart
// renders as the empty string.
func (c *Chart) Render(width int) string {
	if c.destroyed {
		return ""
	}
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(c.title))
	b.WriteString("\n")
	if len(c.labels) == 0 {
		b.WriteString(emptyStyle.Render("No data"))
		return b.String()
	}

	switch c.kind {
	case Line:
		c.renderLine(&b, width)
	default:
		c.renderBar(&b, width)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Chart) renderBar(b *strings.Builder, width int) {
	labelW := 0
	for _, l := range c.labels {
		labelW = max(labelW, lipgloss.Width(l))
	}
	peak := c.peak()
	barW := max(width-labelW-10, 4)

	for i, l := range c.labels {
		for si, s := range c.series {
			name := ""
			if si == 0 {
				name = l
			}
			n := 0
			if peak > 0 {
				n = int(math.Round(s.Values[i] / peak * float64(barW)))
			}
			bar := lipgloss.NewStyle().Foreground(seriesColors[si%len(seriesColors)]).Render(strings.Repeat("█", n))
			fmt.Fprintf(b, "%s %s %s\n",
				labelStyle.Render(pad(name, labelW)),
				bar,
				valueStyle.Render(formatValue(s.Values[i], s.Decimals)),
			)
		}
	}
	c.renderKey(b)
}

func (c *Chart) renderLine(b *strings.Builder, width int) {
	peak := c.peak()
	for si, s := range c.series {
		values := s.Values
		if len(values) > width {
			values = values[len(values)-width:]
		}
		var line strings.Builder
		for _, v := range values {
			idx := 0
			if peak > 0 {
				idx = int(math.Round(v / peak * float64(len(sparkRunes)-1)))
			}
			line.WriteRune(sparkRunes[idx])
		}
		style := lipgloss.NewStyle().Foreground(seriesColors[si%len(seriesColors)])
		fmt.Fprintf(b, "%s\n", style.Render(line.String()))
	}
	fmt.Fprintf(b, "%s\n", valueStyle.Render(c.labels[0]+" … "+c.labels[len(c.labels)-1]))
	c.renderKey(b)
}

func (c *Chart) renderKey(b *strings.Builder) {
	if len(c.series) < 2 {
		return
	}
	keys := make([]string, len(c.series))
	for i, s := range c.series {
		keys[i] = lipgloss.NewStyle().Foreground(seriesColors[i%len(seriesColors)]).Render("■ " + s.Name)
	}
	b.WriteString(strings.Join(keys, "  "))
	b.WriteString("\n")
}

func (c *Chart) peak() float64 {
	peak := 0.0
	for _, s := range c.series {
		for _, v := range s.Values {
			peak = math.Max(peak, v)
		}
	}
	return peak
}

func pad(s string, w int) string {
	if d := w - lipgloss.Width(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func formatValue(v float64, decimals int) string {
	return fmt.Sprintf("%.*f", decimals, v)
}
