// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// ErrInvalidWindow is returned for a non-positive day or month window.
var ErrInvalidWindow = errors.New("invalid window")

// LifetimeStats returns the all-time statistics of one portfolio.
//
// # Description
//
// TotalSessions counts distinct session ids. ActiveDays counts distinct
// calendar days (in the engine zone) with at least one event. First and
// last interaction are nil for a portfolio without events.
//
// # Outputs
//
//   - datatypes.LifetimeStats: Statistics.
//   - error: ErrUnknownPortfolio, or a store error.
func (e *Engine) LifetimeStats(ctx context.Context, portfolioID int64) (datatypes.LifetimeStats, error) {
	if _, err := e.lookup(portfolioID); err != nil {
		return datatypes.LifetimeStats{}, err
	}
	var out datatypes.LifetimeStats
	err := e.run(ctx, "lifetime", func(ctx context.Context, v *store.View) error {
		spanPortfolio(ctx, portfolioID)
		total, err := v.Lifetime(ctx, portfolioID)
		if err != nil {
			return err
		}
		slots, err := v.ActiveSlots(ctx, portfolioID)
		if err != nil {
			return err
		}
		days := make(map[string]struct{}, len(slots))
		for _, slot := range slots {
			days[e.cal.Day(slot)] = struct{}{}
		}
		out = datatypes.LifetimeStats{
			TotalInteractions: total.Interactions,
			TotalSessions:     total.Sessions,
			ActiveDays:        int64(len(days)),
			FirstInteraction:  total.First,
			LastInteraction:   total.Last,
		}
		return nil
	})
	return out, err
}

// DayWiseSeries returns per-day interaction and distinct-session counts
// for one portfolio.
//
// # Description
//
// Only events with now-windowDays*24h <= timestamp <= now are counted.
// Days are calendar days of the engine zone, ascending; days without events
// are omitted. The interaction counts sum to the number of events in the
// window.
//
// # Inputs
//
//   - portfolioID: Registry id.
//   - windowDays: Window length in days, positive.
//
// # Outputs
//
//   - []datatypes.DayPoint: Ascending by date, never nil.
//   - error: ErrUnknownPortfolio, ErrInvalidWindow, or a store error.
func (e *Engine) DayWiseSeries(ctx context.Context, portfolioID int64, windowDays int) ([]datatypes.DayPoint, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidWindow, windowDays)
	}
	if _, err := e.lookup(portfolioID); err != nil {
		return nil, err
	}
	now := e.now()
	window := store.Range{
		From: now.Add(-time.Duration(windowDays) * 24 * time.Hour),
		To:   now.Truncate(time.Millisecond).Add(time.Millisecond),
	}

	var counts []store.SlotCount
	err := e.run(ctx, "daywise", func(ctx context.Context, v *store.View) error {
		spanPortfolio(ctx, portfolioID)
		var err error
		counts, err = v.SlotCounts(ctx, portfolioID, window)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.bucketDays(counts), nil
}

type bucket struct {
	interactions int64
	sessions     map[string]struct{}
}

func (b *bucket) add(c store.SlotCount) {
	if b.sessions == nil {
		b.sessions = make(map[string]struct{})
	}
	b.interactions += c.Interactions
	b.sessions[c.SessionID] = struct{}{}
}

func (e *Engine) bucketDays(counts []store.SlotCount) []datatypes.DayPoint {
	byDay := make(map[string]*bucket)
	for _, c := range counts {
		day := e.cal.Day(c.Slot)
		b, ok := byDay[day]
		if !ok {
			b = &bucket{}
			byDay[day] = b
		}
		b.add(c)
	}
	out := make([]datatypes.DayPoint, 0, len(byDay))
	for day, b := range byDay {
		out = append(out, datatypes.DayPoint{Date: day, Interactions: b.interactions, Sessions: int64(len(b.sessions))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AllPortfoliosSummary returns one row per canonical portfolio with
// lifetime and same-day counts, plus their totals.
//
// # Description
//
// The lifetime and today scans run in one snapshot and are merged by
// portfolio id. Exactly one row per registry entry is returned, in id
// order; portfolios without events get zero counts and a nil last
// interaction.
//
// # Outputs
//
//   - datatypes.StatsResponse: Rows, totals and the bucketing zone.
//   - error: A store error.
func (e *Engine) AllPortfoliosSummary(ctx context.Context) (datatypes.StatsResponse, error) {
	now := e.now()
	today := store.Range{From: e.cal.DayStart(now), To: e.cal.NextDayStart(now)}

	var lifetime, sameDay []store.PortfolioTotal
	err := e.run(ctx, "summary", func(ctx context.Context, v *store.View) error {
		var err error
		if lifetime, err = v.Totals(ctx, store.Range{}); err != nil {
			return err
		}
		sameDay, err = v.Totals(ctx, today)
		return err
	})
	if err != nil {
		return datatypes.StatsResponse{}, err
	}

	lifeByID := indexTotals(lifetime)
	todayByID := indexTotals(sameDay)

	resp := datatypes.StatsResponse{
		Portfolios: make([]datatypes.PortfolioSummary, 0, e.registry.Len()),
		Zone:       e.cal.Zone(),
	}
	for _, p := range e.registry.List() {
		life := lifeByID[p.ID]
		day := todayByID[p.ID]
		row := datatypes.PortfolioSummary{
			ID:                p.ID,
			Name:              p.Name,
			Short:             p.Short,
			TotalInteractions: life.Interactions,
			TotalSessions:     life.Sessions,
			LastInteraction:   life.Last,
			TodayInteractions: day.Interactions,
			TodaySessions:     day.Sessions,
		}
		resp.Portfolios = append(resp.Portfolios, row)
		resp.Totals.TotalInteractions += row.TotalInteractions
		resp.Totals.TotalSessions += row.TotalSessions
		resp.Totals.TodayInteractions += row.TodayInteractions
		resp.Totals.TodaySessions += row.TodaySessions
	}
	return resp, nil
}

func indexTotals(totals []store.PortfolioTotal) map[int64]store.PortfolioTotal {
	m := make(map[int64]store.PortfolioTotal, len(totals))
	for _, t := range totals {
		m[t.PortfolioID] = t
	}
	return m
}
