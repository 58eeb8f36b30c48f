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
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// PortfolioRow is a stored portfolio.
type PortfolioRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// ReconcilePortfolios makes the stored portfolio set equal to names.
//
// # Description
//
// In one transaction: deletes every stored portfolio whose name is not in
// names (their events go with them through ON DELETE CASCADE), inserts the
// missing names in the given order, and returns the resulting set ordered
// by id. Running it twice with the same names changes nothing; existing
// portfolios keep their ids.
//
// # Inputs
//
//   - ctx: Startup context.
//   - names: Canonical names. Must be non-empty.
//
// # Outputs
//
//   - []PortfolioRow: Stored portfolios ordered by id.
//   - error: ErrStoreUnavailable on timeout.
func (s *Store) ReconcilePortfolios(ctx context.Context, names []string) ([]PortfolioRow, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("reconcile portfolios: empty canonical list")
	}
	ctx, done := s.begin(ctx, "reconcile")
	rows, err := s.reconcile(ctx, names)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("reconcile portfolios: %w", classify(err))
	}
	return rows, nil
}

func (s *Store) reconcile(ctx context.Context, names []string) ([]PortfolioRow, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	del, args, err := sqlx.In("DELETE FROM portfolios WHERE name NOT IN (?)", names)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(del), args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("removed non-canonical portfolios and their interactions", "count", n)
	}

	ins := tx.Rebind("INSERT INTO portfolios (name, created_at_ms) VALUES (?, ?) ON CONFLICT (name) DO NOTHING")
	createdAt := toMillis(s.clock.Now())
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, ins, name, createdAt); err != nil {
			return nil, err
		}
	}

	var rows []PortfolioRow
	if err := tx.SelectContext(ctx, &rows, "SELECT id, name FROM portfolios ORDER BY id"); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPortfolios returns the stored portfolios ordered by id.
func (s *Store) ListPortfolios(ctx context.Context) ([]PortfolioRow, error) {
	ctx, done := s.begin(ctx, "list_portfolios")
	var rows []PortfolioRow
	err := s.db.SelectContext(ctx, &rows, "SELECT id, name FROM portfolios ORDER BY id")
	done(err)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", classify(err))
	}
	return rows, nil
}
