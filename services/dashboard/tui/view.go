// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/AleutianPulse/services/dashboard/chart"
)

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	connectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// recentShown caps the recent queries listed in the drill-down.
const recentShown = 10

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.drill.phase != DrillClosed {
		b.WriteString(m.renderDrill())
	} else if m.summary == nil {
		b.WriteString(dimStyle.Render("Loading..."))
	} else {
		b.WriteString(m.renderOverview())
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) chartWidth() int {
	if m.width > 0 {
		return m.width - 4
	}
	return 76
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("Portfolio Analytics")
	if m.config.Server != "" {
		title += dimStyle.Render("  " + m.config.Server)
	}

	var status string
	switch m.status {
	case Connected:
		status = connectedStyle.Render("● " + m.status.String())
	case ConnectionError:
		status = errorStyle.Render("● " + m.status.String())
	default:
		status = dimStyle.Render("● " + m.status.String())
	}
	if m.refresh == Refreshing {
		status += dimStyle.Render("  refreshing")
	}
	if !m.updatedAt.IsZero() {
		at := m.updatedAt
		status += dimStyle.Render("  updated " + chart.FormatTimeAgo(&at, m.config.Now()))
	}
	if m.status == ConnectionError && m.lastErr != nil {
		status += "\n" + errorStyle.Render(m.lastErr.Error())
	}
	return title + "  " + status
}

func (m Model) renderOverview() string {
	s := m.summary
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total interactions", chart.FormatNumber(s.Totals.TotalInteractions)),
		card("Total sessions", chart.FormatNumber(s.Totals.TotalSessions)),
		card("Today", chart.FormatNumber(s.Totals.TodayInteractions)),
		card("Sessions today", chart.FormatNumber(s.Totals.TodaySessions)),
	)

	var table strings.Builder
	fmt.Fprintf(&table, "%-24s %10s %10s %8s  %s\n", "Portfolio", "Total", "Sessions", "Today", "Last activity")
	now := m.config.Now()
	for i, p := range s.Portfolios {
		row := fmt.Sprintf("%-24s %10s %10s %8s  %s",
			p.Name,
			chart.FormatNumber(p.TotalInteractions),
			chart.FormatNumber(p.TotalSessions),
			chart.FormatNumber(p.TodayInteractions),
			chart.FormatTimeAgo(p.LastInteraction, now),
		)
		if i == m.cursor {
			row = selectedStyle.Render(row)
		}
		table.WriteString(row)
		table.WriteString("\n")
	}

	var legend strings.Builder
	for _, p := range s.Portfolios {
		fmt.Fprintf(&legend, "%-6s %s%%\n", p.Short, chart.Percent(p.TotalInteractions, s.Totals.TotalInteractions))
	}

	w := m.chartWidth()
	distribution := lipgloss.JoinHorizontal(lipgloss.Top,
		m.distribution.Render(w-16),
		"  ",
		dimStyle.Render(strings.TrimRight(legend.String(), "\n")),
	)

	trend := m.trend.Render(w)
	for _, p := range s.Portfolios {
		if p.ID == m.trendID {
			trend = dimStyle.Render(p.Name) + "\n" + trend
			break
		}
	}

	return strings.Join([]string{cards, strings.TrimRight(table.String(), "\n"), distribution, trend}, "\n\n")
}

func card(label, value string) string {
	return cardStyle.Render(dimStyle.Render(label) + "\n" + titleStyle.Render(value))
}

func (m Model) renderDrill() string {
	d := m.drill
	var b strings.Builder
	b.WriteString(titleStyle.Render(d.portfolio.Name))
	b.WriteString(dimStyle.Render("  " + d.portfolio.Short))
	b.WriteString("\n\n")

	switch d.phase {
	case DrillLoading:
		b.WriteString(dimStyle.Render("Loading..."))
	case DrillFailed:
		b.WriteString(errorStyle.Render("Failed to load: " + d.err.Error()))
	case DrillReady:
		st := d.stats.Stats
		now := m.config.Now()
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			card("Interactions", chart.FormatNumber(st.TotalInteractions)),
			card("Sessions", chart.FormatNumber(st.TotalSessions)),
			card("Active days", chart.FormatNumber(st.ActiveDays)),
			card("Avg per day", chart.FormatNumber(d.avgPerDay)),
		))
		fmt.Fprintf(&b, "\n%s\n\n",
			dimStyle.Render(fmt.Sprintf("First %s · Last %s",
				chart.FormatTimeAgo(st.FirstInteraction, now),
				chart.FormatTimeAgo(st.LastInteraction, now))),
		)
		w := m.chartWidth() - 4
		b.WriteString(d.activity.Render(w))
		b.WriteString("\n\n")
		b.WriteString(d.ratio.Render(w))

		if len(d.stats.RecentQueries) > 0 {
			b.WriteString("\n\n")
			b.WriteString(titleStyle.Render("Recent queries"))
			for i, q := range d.stats.RecentQueries {
				if i == recentShown {
					break
				}
				at := q.Timestamp
				fmt.Fprintf(&b, "\n%s %s", dimStyle.Render(fmt.Sprintf("%-9s", chart.FormatTimeAgo(&at, now))), q.QuerySummary)
			}
		}
	}
	return panelStyle.Render(b.String())
}
