// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// PortfolioInfo identifies a canonical portfolio.
type PortfolioInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Short string `json:"short"`
}

// PortfoliosResponse is the body of GET /api/portfolios.
type PortfoliosResponse struct {
	Portfolios []PortfolioInfo `json:"portfolios"`
}

// PortfolioSummary is one row of the all-portfolios summary.
type PortfolioSummary struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Short             string     `json:"short"`
	TotalInteractions int64      `json:"total_interactions"`
	TotalSessions     int64      `json:"total_sessions"`
	LastInteraction   *time.Time `json:"last_interaction"`
	TodayInteractions int64      `json:"today_interactions"`
	TodaySessions     int64      `json:"today_sessions"`
}

// SummaryTotals sums the summary rows. Sessions are summed per portfolio,
// so a session that touched two portfolios counts twice.
type SummaryTotals struct {
	TotalInteractions int64 `json:"total_interactions"`
	TotalSessions     int64 `json:"total_sessions"`
	TodayInteractions int64 `json:"today_interactions"`
	TodaySessions     int64 `json:"today_sessions"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Portfolios []PortfolioSummary `json:"portfolios"`
	Totals     SummaryTotals      `json:"totals"`
	Zone       string             `json:"zone"`
}

// LifetimeStats are the all-time statistics of one portfolio.
type LifetimeStats struct {
	TotalInteractions int64      `json:"total_interactions"`
	TotalSessions     int64      `json:"total_sessions"`
	ActiveDays        int64      `json:"active_days"`
	FirstInteraction  *time.Time `json:"first_interaction"`
	LastInteraction   *time.Time `json:"last_interaction"`
}

// DayPoint is one calendar day of a day-wise series.
type DayPoint struct {
	Date         string `json:"date"`
	Interactions int64  `json:"interactions"`
	Sessions     int64  `json:"sessions"`
}

// RecentQuery is one entry of the recent query feed.
type RecentQuery struct {
	QuerySummary string    `json:"query_summary"`
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
}

// PortfolioStatsResponse is the body of GET /api/stats/:portfolioId.
type PortfolioStatsResponse struct {
	PortfolioID   int64         `json:"portfolio_id"`
	Portfolio     PortfolioInfo `json:"portfolio"`
	Stats         LifetimeStats `json:"stats"`
	Daywise       []DayPoint    `json:"daywise"`
	RecentQueries []RecentQuery `json:"recent_queries"`
	Zone          string        `json:"zone"`
}

// MonthPoint is the activity of one portfolio in one calendar month.
type MonthPoint struct {
	Month         string `json:"month"`
	PortfolioID   int64  `json:"portfolio_id"`
	PortfolioName string `json:"portfolio_name"`
	Interactions  int64  `json:"interactions"`
	Sessions      int64  `json:"sessions"`
}

// RankedPortfolio is one entry of a monthly top-n ranking.
type RankedPortfolio struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Short        string `json:"short"`
	Interactions int64  `json:"interactions"`
	Sessions     int64  `json:"sessions"`
}

// AnalyticsResponse is the body of GET /api/analytics.
type AnalyticsResponse struct {
	Monthwise    []MonthPoint      `json:"monthwise"`
	TopThisMonth []RankedPortfolio `json:"top_this_month"`
	TopLastMonth []RankedPortfolio `json:"top_last_month"`
	CurrentMonth string            `json:"current_month"`
	LastMonth    string            `json:"last_month"`
	Zone         string            `json:"zone"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}
