// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store is the append-only interaction event store.
//
// The store persists portfolios and interaction events in SQL (SQLite by
// default, PostgreSQL optionally) behind one API. Events are never updated
// or deleted except through the foreign-key cascade that runs when portfolio
// reconciliation removes a non-canonical portfolio.
//
// Every operation runs under a bounded timeout. A pool that cannot hand
// out a connection in time, a dropped connection or a locked database all
// surface as ErrStoreUnavailable so callers fail fast instead of queueing.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"github.com/AleutianAI/AleutianPulse/services/analytics/clock"
)

// Dialect selects the SQL backend.
type Dialect string

const (
	// DialectSQLite stores events in a local SQLite file (modernc.org/sqlite).
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres stores events in PostgreSQL (github.com/lib/pq).
	DialectPostgres Dialect = "postgres"
)

const (
	// DefaultTimeout bounds every store operation, connection acquisition
	// included.
	DefaultTimeout = 2 * time.Second
	// DefaultMaxOpenConns is the pool size.
	DefaultMaxOpenConns = 20
	// DefaultConnMaxIdleTime closes idle pooled connections.
	DefaultConnMaxIdleTime = 30 * time.Second
)

// Config configures Open.
type Config struct {
	// Dialect is DialectSQLite (default) or DialectPostgres.
	Dialect Dialect
	// DSN is a file path for SQLite or a connection URL for PostgreSQL.
	DSN string
	// Timeout bounds each operation. Defaults to DefaultTimeout.
	Timeout time.Duration
	// MaxOpenConns caps the pool. Defaults to DefaultMaxOpenConns.
	MaxOpenConns int
	// ConnMaxIdleTime defaults to DefaultConnMaxIdleTime.
	ConnMaxIdleTime time.Duration
	// Clock assigns event timestamps. Defaults to a WriteClock over time.Now.
	Clock *clock.WriteClock
}

// Store is the SQL-backed interaction store.
//
// # Thread Safety
//
// Safe for concurrent use. Appends and reads share the connection pool and
// never take a process-wide lock.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	timeout time.Duration
	clock   *clock.WriteClock

	tracer   trace.Tracer
	appends  metric.Int64Counter
	duration metric.Float64Histogram
}

// Open connects to the configured backend and applies embedded migrations.
//
// # Inputs
//
//   - ctx: Bounds the initial ping and the migrations.
//   - cfg: Store configuration. DSN is required.
//
// # Outputs
//
//   - *Store: Ready store. Close it when done.
//   - error: Non-nil if the backend is unreachable or migrations fail.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.ConnMaxIdleTime <= 0 {
		cfg.ConnMaxIdleTime = DefaultConnMaxIdleTime
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewWriteClock(clock.DefaultWriteClockConfig())
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("store dsn is required")
	}

	var driver string
	switch cfg.Dialect {
	case DialectSQLite:
		driver = "sqlite"
		dsn = sqliteDSN(dsn)
	case DialectPostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported store dialect %q", cfg.Dialect)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Dialect, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Dialect, classify(err))
	}
	if err := applyMigrations(ctx, db, cfg.Dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{
		db:      db,
		dialect: cfg.Dialect,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		tracer:  otel.Tracer("pulse.store"),
	}
	if err := s.initInstruments(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN turns a file path into a modernc DSN with foreign keys on.
// Cascading deletes depend on the foreign_keys pragma being set on every
// pooled connection.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (s *Store) initInstruments() error {
	meter := otel.Meter("pulse.store")
	var err error
	s.appends, err = meter.Int64Counter("pulse_store_appends_total",
		metric.WithDescription("Interaction events appended to the store"),
	)
	if err != nil {
		return fmt.Errorf("create appends counter: %w", err)
	}
	s.duration, err = meter.Float64Histogram("pulse_store_operation_duration_seconds",
		metric.WithDescription("Store operation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2),
	)
	if err != nil {
		return fmt.Errorf("create duration histogram: %w", err)
	}
	return nil
}

// Dialect reports the backend in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that a connection can be acquired within the store timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, done := s.begin(ctx, "ping")
	err := s.db.PingContext(ctx)
	done(err)
	return classify(err)
}

// begin starts a bounded, traced operation. The returned func ends the
// span, records latency and releases the timeout.
func (s *Store) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	ctx, span := s.tracer.Start(ctx, "store."+op,
		trace.WithAttributes(attribute.String("db.system", string(s.dialect))),
	)
	start := time.Now()
	return ctx, func(err error) {
		s.duration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("op", op)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()
	}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
