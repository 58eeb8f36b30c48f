// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPulse/services/analytics/aggregate"
	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// RecentQueryLimit is the length of the recent query feed.
const RecentQueryLimit = 50

// Query parameter bounds.
const (
	maxDayWindow = 366
	maxMonths    = 120
	maxTopN      = 10
)

// RecentSource reads the recent query feed. *store.Store implements it.
type RecentSource interface {
	RecentQueries(ctx context.Context, portfolioID int64, limit int) ([]store.RecentQuery, error)
}

// HandleGetPortfolios handles GET /api/portfolios.
func HandleGetPortfolios(reg *portfolio.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := reg.List()
		out := make([]datatypes.PortfolioInfo, len(list))
		for i, p := range list {
			out[i] = info(p)
		}
		c.JSON(http.StatusOK, datatypes.PortfoliosResponse{Portfolios: out})
	}
}

// HandleGetStats handles GET /api/stats. The response always has one row
// per canonical portfolio.
func HandleGetStats(engine *aggregate.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := engine.AllPortfoliosSummary(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleGetPortfolioStats handles GET /api/stats/:portfolioId.
//
// # Description
//
// Lifetime statistics, the day-wise series and the recent query feed are
// read concurrently, each in its own snapshot. The three parts are not
// guaranteed to be mutually consistent.
//
// # Inputs
//
//   - engine: Aggregation engine.
//   - recent: Recent query source.
//
// # Outputs
//
//   - gin.HandlerFunc: 200 PortfolioStatsResponse; 400 for a malformed or
//     unknown id or a bad "days" parameter; 500 when the store is
//     unavailable.
func HandleGetPortfolioStats(engine *aggregate.Engine, recent RecentSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("portfolioId"), 10, 64)
		if err != nil || id <= 0 {
			respondError(c, fmt.Errorf("%w: %q", store.ErrInvalidPortfolio, c.Param("portfolioId")))
			return
		}
		p, ok := engine.Registry().ByID(id)
		if !ok {
			respondError(c, fmt.Errorf("%w: %d", store.ErrInvalidPortfolio, id))
			return
		}
		days, err := intQuery(c, "days", aggregate.DefaultDayWindow, maxDayWindow)
		if err != nil {
			respondError(c, err)
			return
		}

		resp := datatypes.PortfolioStatsResponse{
			PortfolioID: id,
			Portfolio:   info(p),
			Zone:        engine.Calendar().Zone(),
		}

		g, ctx := errgroup.WithContext(c.Request.Context())
		g.Go(func() error {
			var err error
			resp.Stats, err = engine.LifetimeStats(ctx, id)
			return err
		})
		g.Go(func() error {
			var err error
			resp.Daywise, err = engine.DayWiseSeries(ctx, id, days)
			return err
		})
		g.Go(func() error {
			rows, err := recent.RecentQueries(ctx, id, RecentQueryLimit)
			if err != nil {
				return err
			}
			resp.RecentQueries = make([]datatypes.RecentQuery, len(rows))
			for i, r := range rows {
				resp.RecentQueries[i] = datatypes.RecentQuery{
					QuerySummary: r.QuerySummary,
					Timestamp:    r.At,
					SessionID:    r.SessionID,
				}
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleGetAnalytics handles GET /api/analytics. Optional query parameters
// "months" and "top" override the series length and ranking size.
func HandleGetAnalytics(engine *aggregate.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		months, err := intQuery(c, "months", aggregate.DefaultMonths, maxMonths)
		if err != nil {
			respondError(c, err)
			return
		}
		top, err := intQuery(c, "top", aggregate.DefaultTopN, maxTopN)
		if err != nil {
			respondError(c, err)
			return
		}

		resp, err := engine.Analytics(c.Request.Context(), months, top)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// intQuery reads a positive integer query parameter bounded by limit.
func intQuery(c *gin.Context, name string, def, limit int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > limit {
		return 0, fmt.Errorf("%w: %s must be an integer between 1 and %d", datatypes.ErrValidation, name, limit)
	}
	return v, nil
}

func info(p portfolio.Portfolio) datatypes.PortfolioInfo {
	return datatypes.PortfolioInfo{ID: p.ID, Name: p.Name, Short: p.Short}
}
