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
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// TopPortfolios ranks portfolios by interactions in the calendar month
// containing month.
//
// # Description
//
// Counts are strictly descending; equal counts keep registry id order.
// Portfolios without interactions in the month are left out, so fewer
// than n entries may be returned.
//
// # Inputs
//
//   - month: Any instant inside the month to rank.
//   - n: Maximum entries. Non-positive returns an empty ranking.
//
// # Outputs
//
//   - []datatypes.RankedPortfolio: Never nil.
//   - error: A store error.
func (e *Engine) TopPortfolios(ctx context.Context, month time.Time, n int) ([]datatypes.RankedPortfolio, error) {
	var out []datatypes.RankedPortfolio
	err := e.run(ctx, "top", func(ctx context.Context, v *store.View) error {
		var err error
		out, err = e.rank(ctx, v, month, n)
		return err
	})
	return out, err
}

func (e *Engine) rank(ctx context.Context, v *store.View, month time.Time, n int) ([]datatypes.RankedPortfolio, error) {
	if n <= 0 {
		return []datatypes.RankedPortfolio{}, nil
	}
	start, end := e.cal.MonthRange(month, 0)
	totals, err := v.Totals(ctx, store.Range{From: start, To: end})
	if err != nil {
		return nil, err
	}
	byID := indexTotals(totals)

	ranked := make([]datatypes.RankedPortfolio, 0, e.registry.Len())
	for _, p := range e.registry.List() {
		t := byID[p.ID]
		if t.Interactions == 0 {
			continue
		}
		ranked = append(ranked, datatypes.RankedPortfolio{
			ID:           p.ID,
			Name:         p.Name,
			Short:        p.Short,
			Interactions: t.Interactions,
			Sessions:     t.Sessions,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Interactions > ranked[j].Interactions })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// MonthWiseSeries returns per-month, per-portfolio interaction and
// distinct-session counts for the last months calendar months, the
// current month included.
//
// # Outputs
//
//   - []datatypes.MonthPoint: Ascending by month, then registry id order.
//     Portfolio-months without events are omitted.
//   - error: ErrInvalidWindow, or a store error.
func (e *Engine) MonthWiseSeries(ctx context.Context, months int) ([]datatypes.MonthPoint, error) {
	if months <= 0 {
		return nil, fmt.Errorf("%w: %d months", ErrInvalidWindow, months)
	}
	now := e.now()
	var out []datatypes.MonthPoint
	err := e.run(ctx, "monthwise", func(ctx context.Context, v *store.View) error {
		var err error
		out, err = e.monthwise(ctx, v, now, months)
		return err
	})
	return out, err
}

func (e *Engine) monthwise(ctx context.Context, v *store.View, now time.Time, months int) ([]datatypes.MonthPoint, error) {
	first, _ := e.cal.MonthRange(now, -(months - 1))
	_, end := e.cal.MonthRange(now, 0)

	counts, err := v.SlotCounts(ctx, 0, store.Range{From: first, To: end})
	if err != nil {
		return nil, err
	}

	type key struct {
		month string
		id    int64
	}
	buckets := make(map[key]*bucket)
	for _, c := range counts {
		k := key{month: e.cal.Month(c.Slot), id: c.PortfolioID}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.add(c)
	}

	order := make(map[int64]int, e.registry.Len())
	for i, p := range e.registry.List() {
		order[p.ID] = i
	}

	out := make([]datatypes.MonthPoint, 0, len(buckets))
	for k, b := range buckets {
		p, ok := e.registry.ByID(k.id)
		if !ok {
			continue
		}
		out = append(out, datatypes.MonthPoint{
			Month:         k.month,
			PortfolioID:   p.ID,
			PortfolioName: p.Name,
			Interactions:  b.interactions,
			Sessions:      int64(len(b.sessions)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return order[out[i].PortfolioID] < order[out[j].PortfolioID]
	})
	return out, nil
}

// Analytics composes the month-wise series with the top portfolios of the
// current and the previous calendar month, all read from one snapshot.
func (e *Engine) Analytics(ctx context.Context, months, topN int) (datatypes.AnalyticsResponse, error) {
	if months <= 0 {
		return datatypes.AnalyticsResponse{}, fmt.Errorf("%w: %d months", ErrInvalidWindow, months)
	}
	now := e.now()
	lastMonth, _ := e.cal.MonthRange(now, -1)

	resp := datatypes.AnalyticsResponse{
		CurrentMonth: e.cal.MonthLabel(now),
		LastMonth:    e.cal.MonthLabel(lastMonth),
		Zone:         e.cal.Zone(),
	}
	err := e.run(ctx, "analytics", func(ctx context.Context, v *store.View) error {
		var err error
		if resp.Monthwise, err = e.monthwise(ctx, v, now, months); err != nil {
			return err
		}
		if resp.TopThisMonth, err = e.rank(ctx, v, now, topN); err != nil {
			return err
		}
		resp.TopLastMonth, err = e.rank(ctx, v, lastMonth, topN)
		return err
	})
	if err != nil {
		return datatypes.AnalyticsResponse{}, err
	}
	return resp, nil
}
