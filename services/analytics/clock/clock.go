// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package clock provides the time sources used by the analytics service:
// a monotonic write clock for event timestamps and a Calendar that buckets
// instants into days and months of one fixed zone.
package clock

import (
	"log/slog"
	"sync"
	"time"
)

// NowFunc returns the current instant. Tests substitute fixed or stepped
// functions; production code uses time.Now.
type NowFunc func() time.Time

// WriteClock hands out event timestamps that never decrease.
//
// # Description
//
// Timestamps are truncated to millisecond precision (the storage
// resolution) and clamped to the last value handed out, so that two
// events appended in order by this process are stored in order even if
// the wall clock steps backwards (NTP correction, VM resume).
//
// Backward steps larger than MaxBackwardJump are logged. The clamp is
// still applied; the clock never hands out a value lower than a previous
// one.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type WriteClock struct {
	mu              sync.Mutex
	now             NowFunc
	last            time.Time
	maxBackwardJump time.Duration
}

// WriteClockConfig configures a WriteClock.
type WriteClockConfig struct {
	// Now is the underlying wall clock. Defaults to time.Now.
	Now NowFunc
	// MaxBackwardJump is the backward step that triggers a warning.
	// Defaults to one second.
	MaxBackwardJump time.Duration
}

// DefaultWriteClockConfig returns the production configuration.
func DefaultWriteClockConfig() WriteClockConfig {
	return WriteClockConfig{
		Now:             time.Now,
		MaxBackwardJump: time.Second,
	}
}

// NewWriteClock creates a WriteClock.
//
// # Inputs
//
//   - cfg: Zero fields fall back to DefaultWriteClockConfig values.
//
// # Outputs
//
//   - *WriteClock: Ready to use.
func NewWriteClock(cfg WriteClockConfig) *WriteClock {
	def := DefaultWriteClockConfig()
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.MaxBackwardJump <= 0 {
		cfg.MaxBackwardJump = def.MaxBackwardJump
	}
	return &WriteClock{now: cfg.Now, maxBackwardJump: cfg.MaxBackwardJump}
}

// Now returns max(wall clock, last returned value) at millisecond precision.
func (c *WriteClock) Now() time.Time {
	t := c.now().UTC().Truncate(time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Before(c.last) {
		if back := c.last.Sub(t); back > c.maxBackwardJump {
			slog.Warn("wall clock stepped backwards, holding write clock",
				"backward", back.String(),
				"held_at", c.last.Format(time.RFC3339Nano),
			)
		}
		return c.last
	}
	c.last = t
	return t
}

// Last returns the most recent timestamp handed out, or the zero time.
func (c *WriteClock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Stepper returns a NowFunc that starts at start and advances by step on
// every call. It is meant for tests that need a predictable clock.
func Stepper(start time.Time, step time.Duration) NowFunc {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}

// Fixed returns a NowFunc that always reports t.
func Fixed(t time.Time) NowFunc {
	return func() time.Time { return t }
}
