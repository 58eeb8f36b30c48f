// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package portfolio holds the closed set of canonical portfolios.
//
// The set is fixed by a Catalog, made durable by Reconcile at startup and
// then exposed as an immutable Registry that every component receives
// explicitly.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// ErrPortfolioNotFound is returned when a name fragment matches no
// canonical portfolio.
var ErrPortfolioNotFound = errors.New("portfolio not found")

// Portfolio is a canonical portfolio with its stable id.
type Portfolio struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Short string `json:"short"`
}

// Store is the persistence the registry is reconciled against.
type Store interface {
	ReconcilePortfolios(ctx context.Context, names []string) ([]store.PortfolioRow, error)
}

// Registry is the immutable, id-ordered canonical portfolio set.
//
// # Thread Safety
//
// A Registry is never modified after construction and is safe for
// concurrent use.
type Registry struct {
	portfolios []Portfolio
	byID       map[int64]int
}

// Reconcile makes the store's portfolio set equal to the catalog and
// returns the resulting registry.
//
// # Description
//
// Non-canonical portfolios are deleted together with their events, missing
// canonical ones are inserted. Repeating the call is a no-op; ids of
// surviving portfolios never change.
//
// # Inputs
//
//   - ctx: Startup context.
//   - st: Backing store.
//   - cat: Validated catalog.
//
// # Outputs
//
//   - *Registry: Registry ordered by id.
//   - error: Validation or store failure.
func Reconcile(ctx context.Context, st Store, cat Catalog) (*Registry, error) {
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	rows, err := st.ReconcilePortfolios(ctx, cat.Names())
	if err != nil {
		return nil, err
	}
	if len(rows) != len(cat.Portfolios) {
		return nil, fmt.Errorf("reconciled %d portfolios, expected %d", len(rows), len(cat.Portfolios))
	}
	portfolios := make([]Portfolio, len(rows))
	for i, row := range rows {
		portfolios[i] = Portfolio{ID: row.ID, Name: row.Name, Short: cat.short(row.Name)}
	}
	return NewRegistry(portfolios)
}

// NewRegistry builds a registry from already stored portfolios.
func NewRegistry(portfolios []Portfolio) (*Registry, error) {
	sorted := append([]Portfolio(nil), portfolios...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int64]int, len(sorted))
	for i, p := range sorted {
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate portfolio id %d", p.ID)
		}
		byID[p.ID] = i
	}
	return &Registry{portfolios: sorted, byID: byID}, nil
}

// Resolve returns the first portfolio, in ascending id order, whose name
// contains fragment case-insensitively. Surrounding whitespace is ignored.
//
// # Examples
//
//	reg.Resolve("credit card") // Credit Card Debt Collection Training
//	reg.Resolve("CashLane")    // CashLane Loans SOP Assist (lower id wins)
//
// # Outputs
//
//   - Portfolio: The match.
//   - error: ErrPortfolioNotFound for an empty or unmatched fragment.
func (r *Registry) Resolve(fragment string) (Portfolio, error) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return Portfolio{}, fmt.Errorf("%w: empty name", ErrPortfolioNotFound)
	}
	for _, p := range r.portfolios {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, nil
		}
	}
	return Portfolio{}, fmt.Errorf("%w: %s", ErrPortfolioNotFound, strings.TrimSpace(fragment))
}

// ByID looks a portfolio up by id.
func (r *Registry) ByID(id int64) (Portfolio, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Portfolio{}, false
	}
	return r.portfolios[i], true
}

// List returns a copy of the portfolios ordered by id.
func (r *Registry) List() []Portfolio {
	return append([]Portfolio(nil), r.portfolios...)
}

// Len returns the number of portfolios.
func (r *Registry) Len() int {
	return len(r.portfolios)
}
