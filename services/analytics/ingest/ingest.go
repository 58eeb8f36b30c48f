// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest turns agent log requests into stored interaction events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/analytics/mirror"
	"github.com/AleutianAI/AleutianPulse/services/analytics/observability"
	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// Appender persists interactions. *store.Store implements it.
type Appender interface {
	Append(ctx context.Context, in store.NewInteraction) (store.Interaction, error)
}

// Ingestor validates, resolves and stores log requests.
//
// # Thread Safety
//
// Safe for concurrent use.
type Ingestor struct {
	registry *portfolio.Registry
	store    Appender
	sink     mirror.Sink
	metrics  *observability.Metrics
}

// New creates an Ingestor. A nil sink disables mirroring, nil metrics use
// observability.Default().
func New(registry *portfolio.Registry, st Appender, sink mirror.Sink, metrics *observability.Metrics) *Ingestor {
	if sink == nil {
		sink = mirror.NopSink{}
	}
	if metrics == nil {
		metrics = observability.Default()
	}
	return &Ingestor{registry: registry, store: st, sink: sink, metrics: metrics}
}

// Log stores one interaction.
//
// # Description
//
// The portfolio is taken from PortfolioID when present, otherwise resolved
// from PortfolioName. The stored event is mirrored asynchronously.
//
// # Inputs
//
//   - ctx: Request context.
//   - req: Decoded request body.
//
// # Outputs
//
//   - datatypes.LogResponse: Id, timestamp and session id of the event.
//   - error: datatypes.ErrValidation, portfolio.ErrPortfolioNotFound,
//     store.ErrInvalidPortfolio or store.ErrStoreUnavailable.
func (i *Ingestor) Log(ctx context.Context, req datatypes.LogRequest) (datatypes.LogResponse, error) {
	if err := req.Validate(); err != nil {
		return datatypes.LogResponse{}, i.fail(err)
	}

	p, err := i.resolve(req)
	if err != nil {
		return datatypes.LogResponse{}, i.fail(err)
	}

	ev, err := i.store.Append(ctx, store.NewInteraction{
		PortfolioID:     p.ID,
		SessionID:       req.SessionID,
		QuerySummary:    req.QuerySummary,
		ResponseSummary: req.ResponseSummary,
		InputType:       req.InputType,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidEvent) {
			err = fmt.Errorf("%w: %v", datatypes.ErrValidation, err)
		}
		return datatypes.LogResponse{}, i.fail(err)
	}

	i.metrics.RecordInteraction(ev.PortfolioID, ev.InputType)
	i.sink.Record(mirror.Event{
		InteractionID: ev.ID,
		PortfolioID:   ev.PortfolioID,
		Portfolio:     p.Short,
		SessionID:     ev.SessionID,
		InputType:     ev.InputType,
		QueryChars:    utf8.RuneCountInString(ev.QuerySummary),
		At:            ev.At,
	})

	return datatypes.LogResponse{
		Success:       true,
		InteractionID: ev.ID,
		Timestamp:     ev.At,
		SessionID:     ev.SessionID,
	}, nil
}

func (i *Ingestor) resolve(req datatypes.LogRequest) (portfolio.Portfolio, error) {
	if req.PortfolioID != nil {
		p, ok := i.registry.ByID(*req.PortfolioID)
		if !ok {
			return portfolio.Portfolio{}, fmt.Errorf("%w: id %d", store.ErrInvalidPortfolio, *req.PortfolioID)
		}
		return p, nil
	}
	return i.registry.Resolve(req.PortfolioName)
}

func (i *Ingestor) fail(err error) error {
	i.metrics.RecordIngestError(Code(err))
	return err
}

// Code maps an ingestion error to its metric label.
func Code(err error) observability.ErrorCode {
	switch {
	case errors.Is(err, datatypes.ErrValidation):
		return observability.ErrorCodeValidation
	case errors.Is(err, portfolio.ErrPortfolioNotFound):
		return observability.ErrorCodeNotFound
	case errors.Is(err, store.ErrInvalidPortfolio):
		return observability.ErrorCodeInvalidPortfolio
	case errors.Is(err, store.ErrStoreUnavailable):
		return observability.ErrorCodeUnavailable
	default:
		return observability.ErrorCodeInternal
	}
}
