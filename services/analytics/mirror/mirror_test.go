// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	points []*write.Point
	block  chan struct{}
	err    error
}

func (w *fakeWriter) WritePoint(_ context.Context, points ...*write.Point) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, points...)
	return w.err
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

type countingRecorder struct {
	mu      sync.Mutex
	writes  int
	failed  int
	dropped int
}

func (r *countingRecorder) RecordMirrorWrite(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if err != nil {
		r.failed++
	}
}

func (r *countingRecorder) RecordMirrorDrop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func testEvent(id int64) Event {
	return Event{
		InteractionID: id,
		PortfolioID:   4,
		Portfolio:     "Credit Card",
		SessionID:     "s-1",
		InputType:     "voice",
		QueryChars:    12,
		At:            time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestPoint(t *testing.T) {
	p := Point(testEvent(7))
	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC), p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"portfolio_id": "4", "portfolio": "Credit Card", "input_type": "voice"}, tags)
}

func TestInfluxSink_WritesAndFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	rec := &countingRecorder{}
	s := NewSink(w, rec, Config{QueueSize: 8})

	for i := int64(1); i <= 5; i++ {
		s.Record(testEvent(i))
	}
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, 5, w.count())
	assert.Equal(t, 5, rec.writes)
	assert.Zero(t, rec.dropped)

	s.Record(testEvent(6))
	assert.Equal(t, 1, rec.dropped, "events after close are dropped")
	require.NoError(t, s.Close(context.Background()), "close is idempotent")
}

func TestInfluxSink_DropsWhenFull(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	rec := &countingRecorder{}
	s := NewSink(w, rec, Config{QueueSize: 1})

	// One event may be held by the blocked worker, one fits the queue;
	// the rest must be dropped without blocking the caller.
	for i := int64(1); i <= 10; i++ {
		s.Record(testEvent(i))
	}
	rec.mu.Lock()
	dropped := rec.dropped
	rec.mu.Unlock()
	assert.GreaterOrEqual(t, dropped, 8)

	close(w.block)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 10, w.count()+dropped)
}

func TestInfluxSink_RecordsFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("influx down")}
	rec := &countingRecorder{}
	s := NewSink(w, rec, Config{})

	s.Record(testEvent(1))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, rec.failed)
}

func TestInfluxSink_CloseHonoursContext(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	s := NewSink(w, nil, Config{})
	s.Record(testEvent(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)
	close(w.block)
}

func TestNewInfluxSink_RequiresTarget(t *testing.T) {
	_, err := NewInfluxSink(Config{URL: "http://localhost:8086"}, nil)
	assert.Error(t, err)
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.Record(testEvent(1))
	assert.NoError(t, s.Close(context.Background()))
}
