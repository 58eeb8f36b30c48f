// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chart

import (
	"fmt"
	"strconv"
	"time"
)

// FormatNumber abbreviates counts: 999, 1.2K, 3.4M.
func FormatNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatTimeAgo describes t relative to now: "Just now", "5m ago", "3h
// ago", "2d ago", or the date after a week. A nil t is "Never".
func FormatTimeAgo(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "Never"
	}
	d := now.Sub(*t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return t.In(now.Location()).Format("Jan 2, 2006")
	}
}

// Percent formats part/total as a percentage with one decimal. A zero
// total yields "0".
func Percent(part, total int64) string {
	if total <= 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(part)/float64(total)*100, 'f', 1, 64)
}

// DayLabel turns a "2006-01-02" date into "Jan 2". Unparseable input is
// returned unchanged.
func DayLabel(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2")
}
