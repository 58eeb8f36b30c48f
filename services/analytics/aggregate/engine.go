// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregate derives usage statistics from the interaction store.
//
// Every statistic is a read-only function of the store contents and the
// engine clock. Nothing is cached or persisted: each call runs its queries
// inside one store snapshot, so one call is internally consistent while two
// calls may observe different states.
//
// Calendar bucketing ("today", day-wise series, months) uses the engine's
// Calendar, a single zone fixed at startup.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianPulse/services/analytics/clock"
	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// ErrUnknownPortfolio is returned when a statistic is requested for an id
// that is not in the registry.
var ErrUnknownPortfolio = errors.New("unknown portfolio")

const (
	// DefaultDayWindow is the day-wise series window of the detail view.
	DefaultDayWindow = 30
	// DefaultTopN is the size of the monthly rankings.
	DefaultTopN = 3
	// DefaultMonths is the length of the month-wise series.
	DefaultMonths = 12
)

// Source is the snapshot reader the engine aggregates over.
type Source interface {
	View(ctx context.Context, fn func(ctx context.Context, v *store.View) error) error
}

// Observer receives per-query latency. observability.Metrics implements it.
type Observer interface {
	ObserveAggregate(query string, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveAggregate(string, time.Duration, error) {}

// Config configures an Engine.
type Config struct {
	Source   Source
	Registry *portfolio.Registry
	Calendar clock.Calendar
	// Now is the engine clock. Defaults to time.Now.
	Now clock.NowFunc
	// Observer is optional.
	Observer Observer
}

// Engine computes derived statistics.
//
// # Thread Safety
//
// Safe for concurrent use; the engine holds no mutable state.
type Engine struct {
	src      Source
	registry *portfolio.Registry
	cal      clock.Calendar
	now      clock.NowFunc
	observer Observer
	tracer   trace.Tracer
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("aggregate: source is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("aggregate: registry is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Engine{
		src:      cfg.Source,
		registry: cfg.Registry,
		cal:      cfg.Calendar,
		now:      cfg.Now,
		observer: cfg.Observer,
		tracer:   otel.Tracer("pulse.aggregate"),
	}, nil
}

// Calendar returns the bucketing calendar.
func (e *Engine) Calendar() clock.Calendar {
	return e.cal
}

// Registry returns the portfolio registry the engine reports on.
func (e *Engine) Registry() *portfolio.Registry {
	return e.registry
}

// run executes fn in one snapshot with tracing and latency reporting.
func (e *Engine) run(ctx context.Context, query string, fn func(ctx context.Context, v *store.View) error) error {
	ctx, span := e.tracer.Start(ctx, "aggregate."+query)
	defer span.End()

	start := time.Now()
	err := e.src.View(ctx, fn)
	e.observer.ObserveAggregate(query, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", query, err)
	}
	return nil
}

func (e *Engine) lookup(id int64) (portfolio.Portfolio, error) {
	p, ok := e.registry.ByID(id)
	if !ok {
		return portfolio.Portfolio{}, fmt.Errorf("%w: %d", ErrUnknownPortfolio, id)
	}
	return p, nil
}

func spanPortfolio(ctx context.Context, id int64) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("portfolio.id", id))
}
