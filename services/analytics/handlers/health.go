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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
)

// Pinger checks backend reachability. *store.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth handles GET /health.
//
// Answers 200 "ok" when the store responds and 503 "degraded" when it does
// not. Uptime is in seconds since started.
func HandleHealth(p Pinger, started time.Time, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		t := now()
		resp := datatypes.HealthResponse{
			Status:    "ok",
			Timestamp: t.UTC(),
			Uptime:    t.Sub(started).Seconds(),
		}
		status := http.StatusOK
		if err := p.Ping(c.Request.Context()); err != nil {
			slog.Warn("health check: store unreachable", "error", err)
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
