// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SlotWidth is the granularity at which events are pre-grouped before
// calendar bucketing. Every zone offset in use is a multiple of fifteen
// minutes, so all instants of a slot fall on the same calendar day of
// any bucketing zone.
const SlotWidth = 15 * time.Minute

const slotMillis = int64(SlotWidth / time.Millisecond)

// PortfolioTotal is the per-portfolio aggregate over a time range.
type PortfolioTotal struct {
	PortfolioID  int64
	Interactions int64
	Sessions     int64
	First        *time.Time
	Last         *time.Time
}

// SlotCount is the number of events of one session of one portfolio in
// one SlotWidth-wide slot.
type SlotCount struct {
	PortfolioID  int64
	Slot         time.Time
	SessionID    string
	Interactions int64
}

// Range is a half-open [From, To) interval. A zero bound is unbounded.
type Range struct {
	From time.Time
	To   time.Time
}

// View is a read-only snapshot of the store. All reads issued through one
// View observe the same state.
type View struct {
	tx *sqlx.Tx
}

// View runs fn inside one read transaction.
//
// # Description
//
// PostgreSQL snapshots use REPEATABLE READ READ ONLY. SQLite in WAL mode
// pins its snapshot at the first read of the transaction. Either way the
// queries fn issues are mutually consistent; consistency across two View
// calls is not guaranteed.
//
// # Outputs
//
//   - error: fn's error, or ErrStoreUnavailable on timeout.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, v *View) error) error {
	ctx, done := s.begin(ctx, "view")
	err := s.view(ctx, fn)
	done(err)
	return classify(err)
}

func (s *Store) view(ctx context.Context, fn func(ctx context.Context, v *View) error) error {
	var opts *sql.TxOptions
	if s.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &View{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type totalRow struct {
	PortfolioID  int64         `db:"portfolio_id"`
	Interactions int64         `db:"interactions"`
	Sessions     int64         `db:"sessions"`
	FirstMS      sql.NullInt64 `db:"first_ms"`
	LastMS       sql.NullInt64 `db:"last_ms"`
}

func (r totalRow) total() PortfolioTotal {
	t := PortfolioTotal{PortfolioID: r.PortfolioID, Interactions: r.Interactions, Sessions: r.Sessions}
	if r.FirstMS.Valid {
		first := fromMillis(r.FirstMS.Int64)
		t.First = &first
	}
	if r.LastMS.Valid {
		last := fromMillis(r.LastMS.Int64)
		t.Last = &last
	}
	return t
}

// rangeClause returns the SQL restricting column to r and its arguments.
func rangeClause(column string, r Range) (string, []any) {
	var parts []string
	var args []any
	if !r.From.IsZero() {
		parts = append(parts, column+" >= ?")
		args = append(args, toMillis(r.From))
	}
	if !r.To.IsZero() {
		parts = append(parts, column+" < ?")
		args = append(args, toMillis(r.To))
	}
	return strings.Join(parts, " AND "), args
}

// Totals returns one row per stored portfolio, ordered by id, counting
// only events inside r. Portfolios without events in r have zero counts.
func (v *View) Totals(ctx context.Context, r Range) ([]PortfolioTotal, error) {
	join := "i.portfolio_id = p.id"
	clause, args := rangeClause("i.at_ms", r)
	if clause != "" {
		join += " AND " + clause
	}
	q := `SELECT p.id AS portfolio_id,
       COUNT(i.id) AS interactions,
       COUNT(DISTINCT i.session_id) AS sessions,
       MIN(i.at_ms) AS first_ms,
       MAX(i.at_ms) AS last_ms
FROM portfolios p
LEFT JOIN interactions i ON ` + join + `
GROUP BY p.id
ORDER BY p.id`

	var rows []totalRow
	if err := v.tx.SelectContext(ctx, &rows, v.tx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("portfolio totals: %w", err)
	}
	out := make([]PortfolioTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.total())
	}
	return out, nil
}

// Lifetime returns the all-time aggregate of one portfolio.
func (v *View) Lifetime(ctx context.Context, portfolioID int64) (PortfolioTotal, error) {
	q := `SELECT COUNT(*) AS interactions,
       COUNT(DISTINCT session_id) AS sessions,
       MIN(at_ms) AS first_ms,
       MAX(at_ms) AS last_ms
FROM interactions
WHERE portfolio_id = ?`

	var row totalRow
	if err := v.tx.GetContext(ctx, &row, v.tx.Rebind(q), portfolioID); err != nil {
		return PortfolioTotal{}, fmt.Errorf("lifetime totals: %w", err)
	}
	row.PortfolioID = portfolioID
	return row.total(), nil
}

// ActiveSlots returns the distinct SlotWidth slots in which the portfolio
// has at least one event, in ascending order.
func (v *View) ActiveSlots(ctx context.Context, portfolioID int64) ([]time.Time, error) {
	q := fmt.Sprintf(`SELECT DISTINCT at_ms / %d AS slot
FROM interactions
WHERE portfolio_id = ?
ORDER BY slot`, slotMillis)

	var slots []int64
	if err := v.tx.SelectContext(ctx, &slots, v.tx.Rebind(q), portfolioID); err != nil {
		return nil, fmt.Errorf("active slots: %w", err)
	}
	out := make([]time.Time, 0, len(slots))
	for _, slot := range slots {
		out = append(out, fromMillis(slot*slotMillis))
	}
	return out, nil
}

// SlotCounts groups the events inside r by portfolio, slot and session.
// portfolioID 0 selects every portfolio.
func (v *View) SlotCounts(ctx context.Context, portfolioID int64, r Range) ([]SlotCount, error) {
	var where []string
	var args []any
	if portfolioID != 0 {
		where = append(where, "portfolio_id = ?")
		args = append(args, portfolioID)
	}
	if clause, rangeArgs := rangeClause("at_ms", r); clause != "" {
		where = append(where, clause)
		args = append(args, rangeArgs...)
	}
	q := fmt.Sprintf(`SELECT portfolio_id, at_ms / %d AS slot, session_id, COUNT(*) AS interactions
FROM interactions`, slotMillis)
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nGROUP BY portfolio_id, at_ms / " + fmt.Sprint(slotMillis) + ", session_id"

	var rows []struct {
		PortfolioID  int64  `db:"portfolio_id"`
		Slot         int64  `db:"slot"`
		SessionID    string `db:"session_id"`
		Interactions int64  `db:"interactions"`
	}
	if err := v.tx.SelectContext(ctx, &rows, v.tx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("slot counts: %w", err)
	}
	out := make([]SlotCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, SlotCount{
			PortfolioID:  row.PortfolioID,
			Slot:         fromMillis(row.Slot * slotMillis),
			SessionID:    row.SessionID,
			Interactions: row.Interactions,
		})
	}
	return out, nil
}
