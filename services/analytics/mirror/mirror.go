// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mirror copies stored interactions into an InfluxDB bucket so that
// they can be charted in Grafana next to other time series.
//
// The mirror is best effort. The SQL store stays the source of truth for
// every statistic; points are queued in memory, written by one background
// goroutine and dropped when the queue is full or the write fails.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement name of mirrored interactions.
const Measurement = "interactions"

// Event is one stored interaction to mirror.
type Event struct {
	InteractionID int64
	PortfolioID   int64
	Portfolio     string
	SessionID     string
	InputType     string
	QueryChars    int
	At            time.Time
}

// Sink receives stored interactions.
type Sink interface {
	// Record queues ev. It never blocks.
	Record(ev Event)
	// Close flushes queued events until ctx is done.
	Close(ctx context.Context) error
}

// NopSink discards everything. It is used when no InfluxDB is configured.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Event) {}

// Close implements Sink.
func (NopSink) Close(context.Context) error { return nil }

// PointWriter is the part of the InfluxDB blocking write API the mirror
// uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Recorder receives write outcomes. observability.Metrics implements it.
type Recorder interface {
	RecordMirrorWrite(err error)
	RecordMirrorDrop()
}

type nopRecorder struct{}

func (nopRecorder) RecordMirrorWrite(error) {}
func (nopRecorder) RecordMirrorDrop() {}

// Config configures an InfluxDB sink.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// QueueSize bounds the in-memory backlog. Defaults to 1024.
	QueueSize int
	// WriteTimeout bounds each point write. Defaults to 5s.
	WriteTimeout time.Duration
}

// InfluxSink mirrors events into InfluxDB.
//
// # Thread Safety
//
// Record and Close are safe for concurrent use.
type InfluxSink struct {
	writer   PointWriter
	recorder Recorder
	timeout  time.Duration
	closeFn  func()

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewInfluxSink connects a sink to the InfluxDB server in cfg.
func NewInfluxSink(cfg Config, recorder Recorder) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("mirror: url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s := newSink(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), recorder, cfg)
	s.closeFn = client.Close
	return s, nil
}

// NewSink builds a sink around an existing writer.
func NewSink(writer PointWriter, recorder Recorder, cfg Config) *InfluxSink {
	return newSink(writer, recorder, cfg)
}

func newSink(writer PointWriter, recorder Recorder, cfg Config) *InfluxSink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	s := &InfluxSink{
		writer:   writer,
		recorder: recorder,
		timeout:  cfg.WriteTimeout,
		closeFn:  func() {},
		queue:    make(chan Event, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Record queues ev, dropping it when the queue is full or the sink is
// closed.
func (s *InfluxSink) Record(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.recorder.RecordMirrorDrop()
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.recorder.RecordMirrorDrop()
	}
}

// Close stops accepting events and waits for the backlog to be written.
func (s *InfluxSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		s.closeFn()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *InfluxSink) run() {
	defer close(s.done)
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.writer.WritePoint(ctx, Point(ev))
		cancel()
		s.recorder.RecordMirrorWrite(err)
		if err != nil {
			slog.Warn("mirror write failed", "interaction_id", ev.InteractionID, "error", err)
		}
	}
}

// Point converts ev into an InfluxDB point.
func Point(ev Event) *write.Point {
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("portfolio_id", strconv.FormatInt(ev.PortfolioID, 10)).
		AddTag("portfolio", ev.Portfolio).
		AddTag("input_type", ev.InputType).
		AddField("count", 1).
		AddField("interaction_id", ev.InteractionID).
		AddField("session_id", ev.SessionID).
		AddField("query_chars", ev.QueryChars).
		SetTime(ev.At)
}
