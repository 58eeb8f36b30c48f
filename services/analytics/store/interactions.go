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
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Field limits of an interaction event.
const (
	MaxSessionIDLength = 100
	MaxSummaryLength   = 500
)

// Input types accepted by Append.
const (
	InputText  = "text"
	InputVoice = "voice"
)

// NewInteraction is the caller-supplied part of an interaction event.
type NewInteraction struct {
	PortfolioID     int64
	SessionID       string
	QuerySummary    string
	ResponseSummary string
	InputType       string
}

// Interaction is a stored, immutable interaction event.
type Interaction struct {
	ID              int64     `db:"id"`
	PortfolioID     int64     `db:"portfolio_id"`
	SessionID       string    `db:"session_id"`
	QuerySummary    string    `db:"query_summary"`
	ResponseSummary string    `db:"response_summary"`
	InputType       string    `db:"input_type"`
	At              time.Time `db:"-"`
}

// RecentQuery is one entry of a portfolio's recent query feed.
type RecentQuery struct {
	QuerySummary string
	At           time.Time
	SessionID    string
}

// Append stores one interaction event.
//
// # Description
//
// Fills defaults (a fresh UUID session id when empty, input type "text"
// when empty), truncates summaries to MaxSummaryLength characters and
// assigns the timestamp from the store's write clock. Timestamps handed out
// by one process never decrease.
//
// # Inputs
//
//   - ctx: Request context. The store timeout is applied on top of it.
//   - in: Event fields.
//
// # Outputs
//
//   - Interaction: The stored event with ID and timestamp.
//   - error: ErrInvalidPortfolio for an unknown portfolio id, ErrInvalidEvent
//     for out-of-domain fields, ErrStoreUnavailable on timeout or lost
//     connection.
func (s *Store) Append(ctx context.Context, in NewInteraction) (Interaction, error) {
	ev, err := normalize(in)
	if err != nil {
		return Interaction{}, err
	}

	ctx, done := s.begin(ctx, "append")
	ev.At = s.clock.Now()

	q := s.db.Rebind(`INSERT INTO interactions
    (portfolio_id, session_id, query_summary, response_summary, input_type, at_ms)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`)
	err = s.db.QueryRowxContext(ctx, q,
		ev.PortfolioID, ev.SessionID, ev.QuerySummary, ev.ResponseSummary, ev.InputType, toMillis(ev.At),
	).Scan(&ev.ID)
	done(err)
	if err != nil {
		return Interaction{}, fmt.Errorf("append interaction: %w", classify(err))
	}

	s.appends.Add(ctx, 1, metric.WithAttributes(attribute.String("input_type", ev.InputType)))
	return ev, nil
}

func normalize(in NewInteraction) (Interaction, error) {
	ev := Interaction{
		PortfolioID:     in.PortfolioID,
		SessionID:       strings.TrimSpace(in.SessionID),
		QuerySummary:    truncate(in.QuerySummary, MaxSummaryLength),
		ResponseSummary: truncate(in.ResponseSummary, MaxSummaryLength),
		InputType:       strings.ToLower(strings.TrimSpace(in.InputType)),
	}
	if ev.PortfolioID <= 0 {
		return Interaction{}, fmt.Errorf("%w: portfolio id %d", ErrInvalidPortfolio, ev.PortfolioID)
	}
	if ev.SessionID == "" {
		ev.SessionID = uuid.NewString()
	}
	if utf8.RuneCountInString(ev.SessionID) > MaxSessionIDLength {
		return Interaction{}, fmt.Errorf("%w: session_id longer than %d characters", ErrInvalidEvent, MaxSessionIDLength)
	}
	switch ev.InputType {
	case "":
		ev.InputType = InputText
	case InputText, InputVoice:
	default:
		return Interaction{}, fmt.Errorf("%w: input_type %q is not text or voice", ErrInvalidEvent, in.InputType)
	}
	return ev, nil
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// RecentQueries returns the newest non-empty query summaries of a portfolio.
//
// # Inputs
//
//   - ctx: Request context.
//   - portfolioID: Portfolio to read.
//   - limit: Maximum number of entries.
//
// # Outputs
//
//   - []RecentQuery: Newest first.
//   - error: ErrStoreUnavailable on timeout.
func (s *Store) RecentQueries(ctx context.Context, portfolioID int64, limit int) ([]RecentQuery, error) {
	ctx, done := s.begin(ctx, "recent_queries")

	var rows []struct {
		QuerySummary string `db:"query_summary"`
		AtMS         int64  `db:"at_ms"`
		SessionID    string `db:"session_id"`
	}
	q := s.db.Rebind(`SELECT query_summary, at_ms, session_id
FROM interactions
WHERE portfolio_id = ? AND query_summary <> ''
ORDER BY at_ms DESC, id DESC
LIMIT ?`)
	err := s.db.SelectContext(ctx, &rows, q, portfolioID, limit)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("recent queries: %w", classify(err))
	}

	out := make([]RecentQuery, 0, len(rows))
	for _, r := range rows {
		out = append(out, RecentQuery{QuerySummary: r.QuerySummary, At: fromMillis(r.AtMS), SessionID: r.SessionID})
	}
	return out, nil
}
