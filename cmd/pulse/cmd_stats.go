// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/dashboard/chart"
	"github.com/AleutianAI/AleutianPulse/services/dashboard/tui"
)

func newPortfoliosCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolios",
		Short: "List the canonical portfolios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Portfolios(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.styled())
			if opts.json {
				return p.JSON(resp)
			}
			p.Title("Portfolios")
			for _, pf := range resp.Portfolios {
				p.Linef("%3d  %-22s %s", pf.ID, pf.Short, pf.Name)
			}
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [portfolio-id]",
		Short: "Show the usage summary, or one portfolio's statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), opts.styled())

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid portfolio id %q", args[0])
				}
				resp, err := c.Portfolio(cmd.Context(), id)
				if err != nil {
					return err
				}
				if opts.json {
					return p.JSON(resp)
				}
				printPortfolio(p, resp, time.Now())
				return nil
			}

			resp, err := c.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return p.JSON(resp)
			}
			printSummary(p, resp, time.Now())
			return nil
		},
	}
}

func printSummary(p printer, resp datatypes.StatsResponse, now time.Time) {
	t := resp.Totals
	p.Box("Totals", fmt.Sprintf("Interactions %s  Sessions %s  Today %s  Sessions today %s",
		chart.FormatNumber(t.TotalInteractions),
		chart.FormatNumber(t.TotalSessions),
		chart.FormatNumber(t.TodayInteractions),
		chart.FormatNumber(t.TodaySessions),
	))
	p.Linef("%-22s %8s %8s %6s %7s  %s", "Portfolio", "Total", "Sessions", "Today", "Share", "Last activity")
	for _, r := range resp.Portfolios {
		p.Linef("%-22s %8s %8s %6s %6s%%  %s",
			r.Short,
			chart.FormatNumber(r.TotalInteractions),
			chart.FormatNumber(r.TotalSessions),
			chart.FormatNumber(r.TodayInteractions),
			chart.Percent(r.TotalInteractions, t.TotalInteractions),
			chart.FormatTimeAgo(r.LastInteraction, now),
		)
	}
	p.Muted("Days are bucketed in " + resp.Zone)
}

func printPortfolio(p printer, resp datatypes.PortfolioStatsResponse, now time.Time) {
	st := resp.Stats
	title := resp.Portfolio.Name
	if title == "" {
		title = fmt.Sprintf("Portfolio %d", resp.PortfolioID)
	}
	p.Box(title, fmt.Sprintf("Interactions %s  Sessions %s  Active days %d  Avg per day %s\nFirst %s  Last %s",
		chart.FormatNumber(st.TotalInteractions),
		chart.FormatNumber(st.TotalSessions),
		st.ActiveDays,
		chart.FormatNumber(tui.AveragePerDay(st.TotalInteractions, st.ActiveDays)),
		chart.FormatTimeAgo(st.FirstInteraction, now),
		chart.FormatTimeAgo(st.LastInteraction, now),
	))

	if len(resp.Daywise) > 0 {
		p.Title("Daily activity")
		for _, d := range tui.LastDays(resp.Daywise, tui.ChartDays) {
			p.Linef("%s  %5d interactions  %4d sessions  %4.1f per session",
				d.Date, d.Interactions, d.Sessions, tui.SessionRatio(d.Interactions, d.Sessions))
		}
	}
	if len(resp.RecentQueries) > 0 {
		p.Title("Recent queries")
		for _, q := range resp.RecentQueries {
			at := q.Timestamp
			p.Linef("%-9s %s", chart.FormatTimeAgo(&at, now), strings.TrimSpace(q.QuerySummary))
		}
	}
}

func newAnalyticsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show monthly rankings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Analytics(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.styled())
			if opts.json {
				return p.JSON(resp)
			}
			printRanking(p, "Top this month ("+resp.CurrentMonth+")", resp.TopThisMonth)
			printRanking(p, "Top last month ("+resp.LastMonth+")", resp.TopLastMonth)

			p.Title("Monthly interactions")
			months := make(map[string]int64)
			var order []string
			for _, m := range resp.Monthwise {
				if _, ok := months[m.Month]; !ok {
					order = append(order, m.Month)
				}
				months[m.Month] += m.Interactions
			}
			for _, m := range order {
				p.Linef("%s  %s", m, chart.FormatNumber(months[m]))
			}
			return nil
		},
	}
}

func printRanking(p printer, title string, ranked []datatypes.RankedPortfolio) {
	p.Title(title)
	if len(ranked) == 0 {
		p.Muted("  no activity")
		return
	}
	for i, r := range ranked {
		p.Linef("%d. %-22s %s interactions, %s sessions",
			i+1, r.Short, chart.FormatNumber(r.Interactions), chart.FormatNumber(r.Sessions))
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the analytics server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Health(cmd.Context())
			p := newPrinter(cmd.OutOrStdout(), opts.styled())
			if opts.json && resp.Status != "" {
				if jerr := p.JSON(resp); jerr != nil {
					return jerr
				}
				return err
			}
			if err != nil {
				if resp.Status != "" {
					p.Warning(fmt.Sprintf("%s %s", opts.server, resp.Status))
				}
				return err
			}
			p.Success(fmt.Sprintf("%s %s, up %s", opts.server, resp.Status,
				(time.Duration(resp.Uptime) * time.Second).String()))
			return nil
		},
	}
}
