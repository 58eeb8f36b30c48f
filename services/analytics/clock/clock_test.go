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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteClock_NeverDecreases(t *testing.T) {
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	steps := []time.Time{
		base,
		base.Add(5 * time.Millisecond),
		base.Add(-time.Hour), // wall clock stepped back
		base.Add(6 * time.Millisecond),
	}
	i := 0
	wc := NewWriteClock(WriteClockConfig{Now: func() time.Time {
		t := steps[i]
		i++
		return t
	}})

	got := []time.Time{wc.Now(), wc.Now(), wc.Now(), wc.Now()}

	assert.Equal(t, base, got[0])
	assert.Equal(t, base.Add(5*time.Millisecond), got[1])
	assert.Equal(t, base.Add(5*time.Millisecond), got[2], "backward step is held")
	assert.Equal(t, base.Add(6*time.Millisecond), got[3])
	assert.Equal(t, got[3], wc.Last())
}

func TestWriteClock_TruncatesToMillis(t *testing.T) {
	wc := NewWriteClock(WriteClockConfig{Now: Fixed(time.Date(2026, 1, 1, 0, 0, 0, 1_234_567, time.UTC))})
	assert.Equal(t, 1_000_000, wc.Now().Nanosecond())
}

func TestWriteClock_ConcurrentMonotonic(t *testing.T) {
	wc := NewWriteClock(WriteClockConfig{})
	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := time.Time{}
			for j := 0; j < 200; j++ {
				now := wc.Now()
				if now.Before(prev) {
					t.Errorf("clock went backwards: %v < %v", now, prev)
					return
				}
				prev = now
			}
		}()
	}
	wg.Wait()
}

func TestStepper(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	next := Stepper(start, time.Minute)
	assert.Equal(t, start, next())
	assert.Equal(t, start.Add(time.Minute), next())
}

func TestNewCalendar(t *testing.T) {
	cal, err := NewCalendar("")
	require.NoError(t, err)
	assert.Equal(t, "UTC", cal.Zone())

	cal, err = NewCalendar("America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", cal.Zone())

	_, err = NewCalendar("Local")
	assert.ErrorIs(t, err, ErrUnknownZone)

	_, err = NewCalendar("Mars/Olympus_Mons")
	assert.ErrorIs(t, err, ErrUnknownZone)
}

func TestCalendar_DayBucketsFollowZone(t *testing.T) {
	chicago, err := NewCalendar("America/Chicago")
	require.NoError(t, err)

	// 03:00 UTC on the 15th is still the 14th in Chicago.
	instant := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-15", UTC.Day(instant))
	assert.Equal(t, "2026-10-14", chicago.Day(instant))

	start := chicago.DayStart(instant)
	assert.Equal(t, "2026-10-14T00:00:00-05:00", start.Format(time.RFC3339))
	assert.Equal(t, "2026-10-15T00:00:00-05:00", chicago.NextDayStart(instant).Format(time.RFC3339))
}

func TestCalendar_NextDayStartAcrossDST(t *testing.T) {
	chicago, err := NewCalendar("America/Chicago")
	require.NoError(t, err)

	// DST ends 2026-11-01; that day is 25 hours long.
	inside := time.Date(2026, 11, 1, 12, 0, 0, 0, chicago.Location())
	day := chicago.NextDayStart(inside).Sub(chicago.DayStart(inside))
	assert.Equal(t, 25*time.Hour, day)
}

func TestCalendar_MonthRange(t *testing.T) {
	jan := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)

	start, end := UTC.MonthRange(jan, 0)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), end)

	start, end = UTC.MonthRange(jan, -1)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	assert.Equal(t, "December 2025", UTC.MonthLabel(start))
	assert.Equal(t, "2025-12", UTC.Month(start))
	assert.Equal(t, start, UTC.MonthStart(start.Add(72*time.Hour)))
}
