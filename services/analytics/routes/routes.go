// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianPulse/services/analytics/aggregate"
	"github.com/AleutianAI/AleutianPulse/services/analytics/handlers"
	"github.com/AleutianAI/AleutianPulse/services/analytics/ingest"
	"github.com/AleutianAI/AleutianPulse/services/analytics/middleware"
)

// Backend is the store surface the routes read directly.
type Backend interface {
	handlers.RecentSource
	handlers.Pinger
}

// Deps are the services the routes are wired to.
type Deps struct {
	Engine   *aggregate.Engine
	Ingestor *ingest.Ingestor
	Backend  Backend
	// Metrics serves GET /metrics. Optional.
	Metrics   http.Handler
	RateLimit middleware.RateLimitConfig
	Started   time.Time
	Version   string
}

// SetupRoutes registers every analytics endpoint on router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	reg := deps.Engine.Registry()

	router.GET("/health", handlers.HandleHealth(deps.Backend, deps.Started, nil))
	router.GET("/openapi.json", handlers.HandleOpenAPI(reg, deps.Version))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := router.Group("/api")
	{
		api.POST("/log", middleware.RateLimit(deps.RateLimit), handlers.HandleLog(deps.Ingestor))
		api.GET("/portfolios", handlers.HandleGetPortfolios(reg))
		api.GET("/stats", handlers.HandleGetStats(deps.Engine))
		api.GET("/stats/:portfolioId", handlers.HandleGetPortfolioStats(deps.Engine, deps.Backend))
		api.GET("/analytics", handlers.HandleGetAnalytics(deps.Engine))
	}
}
