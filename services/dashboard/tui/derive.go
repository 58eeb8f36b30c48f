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
	"math"
	"sort"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
)

// ChartDays is how many trailing days the daily charts show.
const ChartDays = 30

// Representative picks the portfolio whose daily trend is shown on the
// overview: the first one with any lifetime interactions, else the first.
func Representative(rows []datatypes.PortfolioSummary) (datatypes.PortfolioSummary, bool) {
	if len(rows) == 0 {
		return datatypes.PortfolioSummary{}, false
	}
	for _, r := range rows {
		if r.TotalInteractions > 0 {
			return r, true
		}
	}
	return rows[0], true
}

// AveragePerDay is total/activeDays rounded to the nearest integer. Zero
// active days count as one.
func AveragePerDay(total, activeDays int64) int64 {
	return int64(math.Round(float64(total) / float64(max(activeDays, 1))))
}

// SessionRatio is interactions per session rounded to one decimal. Zero
// sessions count as one.
func SessionRatio(interactions, sessions int64) float64 {
	r := float64(interactions) / float64(max(sessions, 1))
	return math.Round(r*10) / 10
}

// LastDays returns the n most recent points in date order.
func LastDays(points []datatypes.DayPoint, n int) []datatypes.DayPoint {
	sorted := append([]datatypes.DayPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
