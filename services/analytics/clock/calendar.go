// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	// Bucketing zones must load on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// ErrUnknownZone is returned when a bucketing zone name cannot be loaded.
var ErrUnknownZone = errors.New("unknown time zone")

const (
	// DayLayout is the wire format of a calendar day.
	DayLayout = "2006-01-02"
	// MonthLayout is the wire format of a calendar month.
	MonthLayout = "2006-01"
	// MonthLabelLayout is the display format of a calendar month.
	MonthLabelLayout = "January 2006"
)

// Calendar buckets instants into calendar days and months of a single
// fixed zone.
//
// # Description
//
// "Today", "this month" and every day-wise or month-wise bucket are
// evaluated in the Calendar's zone, never in the host's local zone. The
// zone is chosen once at startup and never changes for the process
// lifetime.
//
// # Thread Safety
//
// Calendar is an immutable value and safe for concurrent use.
type Calendar struct {
	loc *time.Location
}

// UTC is the default calendar.
var UTC = Calendar{loc: time.UTC}

// NewCalendar loads the IANA zone called name.
//
// # Inputs
//
//   - name: IANA zone name such as "UTC" or "America/Chicago". Empty means UTC.
//     "Local" is rejected because it depends on the host.
//
// # Outputs
//
//   - Calendar: Bucketing calendar for the zone.
//   - error: ErrUnknownZone wrapped with the load failure.
func NewCalendar(name string) (Calendar, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return UTC, nil
	}
	if strings.EqualFold(name, "Local") {
		return Calendar{}, fmt.Errorf("%w: %q depends on the host", ErrUnknownZone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("%w: %q: %v", ErrUnknownZone, name, err)
	}
	return Calendar{loc: loc}, nil
}

// Location returns the bucketing zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Zone returns the IANA name of the bucketing zone.
func (c Calendar) Zone() string {
	return c.Location().String()
}

// In converts t to the bucketing zone.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.Location())
}

// Day returns the calendar day of t in YYYY-MM-DD form.
func (c Calendar) Day(t time.Time) string {
	return c.In(t).Format(DayLayout)
}

// Month returns the calendar month of t in YYYY-MM form.
func (c Calendar) Month(t time.Time) string {
	return c.In(t).Format(MonthLayout)
}

// DayStart returns the first instant of the calendar day containing t.
func (c Calendar) DayStart(t time.Time) time.Time {
	l := c.In(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, c.Location())
}

// NextDayStart returns the first instant of the day after the one
// containing t. It is correct across daylight saving transitions.
func (c Calendar) NextDayStart(t time.Time) time.Time {
	l := c.In(t)
	return time.Date(l.Year(), l.Month(), l.Day()+1, 0, 0, 0, 0, c.Location())
}

// MonthStart returns the first instant of the calendar month containing t.
func (c Calendar) MonthStart(t time.Time) time.Time {
	l := c.In(t)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, c.Location())
}

// MonthRange returns [start, end) of the month containing t shifted by
// offset months (0 is the month of t, -1 the previous calendar month).
func (c Calendar) MonthRange(t time.Time, offset int) (time.Time, time.Time) {
	l := c.In(t)
	start := time.Date(l.Year(), l.Month()+time.Month(offset), 1, 0, 0, 0, 0, c.Location())
	end := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, c.Location())
	return start, end
}

// MonthLabel returns the display label of the month containing t,
// such as "October 2026".
func (c Calendar) MonthLabel(t time.Time) string {
	return c.In(t).Format(MonthLabelLayout)
}
