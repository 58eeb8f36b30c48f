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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/analytics/clock"
)

var testNames = []string{"Alpha Desk", "Bravo Desk", "Charlie Desk"}

var testStart = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T, now clock.NowFunc) *Store {
	t.Helper()
	if now == nil {
		now = clock.Stepper(testStart, time.Second)
	}
	s, err := Open(context.Background(), Config{
		Dialect: DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "pulse.db"),
		Clock:   clock.NewWriteClock(clock.WriteClockConfig{Now: now}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func reconcileTest(t *testing.T, s *Store) []PortfolioRow {
	t.Helper()
	rows, err := s.ReconcilePortfolios(context.Background(), testNames)
	require.NoError(t, err)
	require.Len(t, rows, len(testNames))
	return rows
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Config{Dialect: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported store dialect")
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), Config{DSN: path})
		require.NoError(t, err, "open #%d", i+1)
		require.NoError(t, s.Close())
	}
}

func TestReconcilePortfolios_Idempotent(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	first := reconcileTest(t, s)
	second := reconcileTest(t, s)
	assert.Equal(t, first, second)

	for i, row := range first {
		assert.Equal(t, testNames[i], row.Name)
	}
	assert.Less(t, first[0].ID, first[1].ID)

	listed, err := s.ListPortfolios(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, listed)
}

func TestReconcilePortfolios_RemovesNonCanonicalWithEvents(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()
	rows := reconcileTest(t, s)

	_, err := s.Append(ctx, NewInteraction{PortfolioID: rows[2].ID, QuerySummary: "q"})
	require.NoError(t, err)

	kept, err := s.ReconcilePortfolios(ctx, testNames[:2])
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, rows[:2], kept, "surviving portfolios keep their ids")

	var orphans int
	require.NoError(t, s.db.GetContext(ctx, &orphans, "SELECT COUNT(*) FROM interactions"))
	assert.Zero(t, orphans, "events of removed portfolios cascade away")
}

func TestReconcilePortfolios_EmptyList(t *testing.T) {
	s := openTestStore(t, nil)
	_, err := s.ReconcilePortfolios(context.Background(), nil)
	assert.Error(t, err)
}

func TestAppend_Defaults(t *testing.T) {
	s := openTestStore(t, nil)
	rows := reconcileTest(t, s)

	ev, err := s.Append(context.Background(), NewInteraction{PortfolioID: rows[0].ID})
	require.NoError(t, err)

	assert.NotZero(t, ev.ID)
	assert.Len(t, ev.SessionID, 36, "fresh uuid session id")
	assert.Equal(t, InputText, ev.InputType)
	assert.Equal(t, testStart.Add(time.Second), ev.At, "reconcile consumed the first tick")
}

func TestAppend_UnknownPortfolio(t *testing.T) {
	s := openTestStore(t, nil)
	reconcileTest(t, s)

	_, err := s.Append(context.Background(), NewInteraction{PortfolioID: 999})
	assert.ErrorIs(t, err, ErrInvalidPortfolio)

	_, err = s.Append(context.Background(), NewInteraction{PortfolioID: 0})
	assert.ErrorIs(t, err, ErrInvalidPortfolio)
}

func TestAppend_RejectsOutOfDomainFields(t *testing.T) {
	s := openTestStore(t, nil)
	rows := reconcileTest(t, s)
	ctx := context.Background()

	_, err := s.Append(ctx, NewInteraction{PortfolioID: rows[0].ID, InputType: "video"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = s.Append(ctx, NewInteraction{PortfolioID: rows[0].ID, SessionID: strings.Repeat("s", MaxSessionIDLength+1)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	ev, err := s.Append(ctx, NewInteraction{PortfolioID: rows[0].ID, InputType: " Voice "})
	require.NoError(t, err)
	assert.Equal(t, InputVoice, ev.InputType)
}

func TestAppend_TruncatesSummaries(t *testing.T) {
	s := openTestStore(t, nil)
	rows := reconcileTest(t, s)

	long := strings.Repeat("é", MaxSummaryLength+20)
	ev, err := s.Append(context.Background(), NewInteraction{PortfolioID: rows[0].ID, QuerySummary: long, ResponseSummary: long})
	require.NoError(t, err)
	assert.Equal(t, MaxSummaryLength, len([]rune(ev.QuerySummary)))
	assert.Equal(t, MaxSummaryLength, len([]rune(ev.ResponseSummary)))
}

func TestAppend_TimestampsNeverDecrease(t *testing.T) {
	steps := []time.Time{testStart, testStart.Add(-time.Minute), testStart.Add(time.Minute)}
	i := 0
	s := openTestStore(t, func() time.Time {
		ts := steps[i%len(steps)]
		i++
		return ts
	})
	rows := reconcileTest(t, s) // consumes steps[0]

	a, err := s.Append(context.Background(), NewInteraction{PortfolioID: rows[0].ID})
	require.NoError(t, err)
	b, err := s.Append(context.Background(), NewInteraction{PortfolioID: rows[0].ID})
	require.NoError(t, err)

	assert.False(t, b.At.Before(a.At))
	assert.Greater(t, b.ID, a.ID)
}

func TestAppend_CanceledContextIsUnavailable(t *testing.T) {
	s := openTestStore(t, nil)
	rows := reconcileTest(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Append(ctx, NewInteraction{PortfolioID: rows[0].ID})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRecentQueries(t *testing.T) {
	s := openTestStore(t, nil)
	rows := reconcileTest(t, s)
	ctx := context.Background()

	for _, q := range []string{"first", "", "second", "third"} {
		_, err := s.Append(ctx, NewInteraction{PortfolioID: rows[0].ID, SessionID: "s-1", QuerySummary: q})
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, NewInteraction{PortfolioID: rows[1].ID, QuerySummary: "other portfolio"})
	require.NoError(t, err)

	recent, err := s.RecentQueries(ctx, rows[0].ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].QuerySummary)
	assert.Equal(t, "second", recent[1].QuerySummary)
	assert.Equal(t, "s-1", recent[0].SessionID)
	assert.True(t, recent[0].At.After(recent[1].At))
}

func TestView_TotalsCoverEveryPortfolio(t *testing.T) {
	s := openTestStore(t, clock.Stepper(testStart, time.Hour))
	rows := reconcileTest(t, s) // testStart
	ctx := context.Background()

	// Events at +1h, +2h, +3h.
	for _, sess := range []string{"a", "a", "b"} {
		_, err := s.Append(ctx, NewInteraction{PortfolioID: rows[1].ID, SessionID: sess})
		require.NoError(t, err)
	}

	err := s.View(ctx, func(ctx context.Context, v *View) error {
		all, err := v.Totals(ctx, Range{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Zero(t, all[0].Interactions)
		assert.Nil(t, all[0].Last)
		assert.Equal(t, int64(3), all[1].Interactions)
		assert.Equal(t, int64(2), all[1].Sessions)
		assert.Equal(t, testStart.Add(3*time.Hour), *all[1].Last)
		assert.Equal(t, testStart.Add(time.Hour), *all[1].First)

		window, err := v.Totals(ctx, Range{From: testStart.Add(2 * time.Hour), To: testStart.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), window[1].Interactions, "half-open range")

		life, err := v.Lifetime(ctx, rows[1].ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), life.Interactions)
		assert.Equal(t, int64(2), life.Sessions)

		empty, err := v.Lifetime(ctx, rows[0].ID)
		require.NoError(t, err)
		assert.Zero(t, empty.Interactions)
		assert.Nil(t, empty.First)
		return nil
	})
	require.NoError(t, err)
}

func TestView_SlotsAndCounts(t *testing.T) {
	s := openTestStore(t, clock.Stepper(testStart, 10*time.Minute))
	rows := reconcileTest(t, s) // 09:00
	ctx := context.Background()

	// 09:10, 09:20, 09:30 -> slots 09:00, 09:15, 09:30
	for _, sess := range []string{"a", "a", "b"} {
		_, err := s.Append(ctx, NewInteraction{PortfolioID: rows[0].ID, SessionID: sess})
		require.NoError(t, err)
	}

	require.NoError(t, s.View(ctx, func(ctx context.Context, v *View) error {
		slots, err := v.ActiveSlots(ctx, rows[0].ID)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{
			testStart,
			testStart.Add(15 * time.Minute),
			testStart.Add(30 * time.Minute),
		}, slots)

		counts, err := v.SlotCounts(ctx, 0, Range{})
		require.NoError(t, err)
		var total int64
		for _, c := range counts {
			assert.Equal(t, rows[0].ID, c.PortfolioID)
			total += c.Interactions
		}
		assert.Equal(t, int64(3), total)

		none, err := v.SlotCounts(ctx, rows[1].ID, Range{})
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))
}

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INT);\n", extractUp(content))
	assert.Equal(t, "SELECT 1;", extractUp("SELECT 1;"))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Contains(t, sqliteDSN("/tmp/x.db"), "foreign_keys(1)")
	assert.Equal(t, "/tmp/x.db?mode=ro", sqliteDSN("/tmp/x.db?mode=ro"))
}

// TestPostgres_AppendAndView runs against a real server when
// PULSE_TEST_POSTGRES_DSN is set.
func TestPostgres_AppendAndView(t *testing.T) {
	dsn := os.Getenv("PULSE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PULSE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{Dialect: DialectPostgres, DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.ReconcilePortfolios(ctx, testNames)
	require.NoError(t, err)

	_, err = s.Append(ctx, NewInteraction{PortfolioID: rows[0].ID, SessionID: "pg"})
	require.NoError(t, err)

	_, err = s.Append(ctx, NewInteraction{PortfolioID: 1 << 40})
	assert.ErrorIs(t, err, ErrInvalidPortfolio)

	require.NoError(t, s.View(ctx, func(ctx context.Context, v *View) error {
		totals, err := v.Totals(ctx, Range{})
		require.NoError(t, err)
		assert.Len(t, totals, len(testNames))
		return nil
	}))
}
