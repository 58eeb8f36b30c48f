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
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/analytics/ingest"
)

const (
	maxLoggedBody      = 2048
	maxLoggedUserAgent = 100
)

// HandleLog handles POST /api/log.
//
// # Description
//
// Decodes the body, stores the interaction and returns its id, timestamp
// and session id. Any failure is logged together with the raw payload,
// origin and user agent so misconfigured agents can be diagnosed from the
// server log alone.
//
// # Inputs
//
//   - ing: Ingestion service.
//
// # Outputs
//
//   - gin.HandlerFunc: 200 LogResponse, 400 or 500 ErrorResponse.
func HandleLog(ing *ingest.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			fail(c, body, fmt.Errorf("%w: Invalid request body", datatypes.ErrValidation))
			return
		}

		var req datatypes.LogRequest
		if err := binding.JSON.BindBody(body, &req); err != nil {
			fail(c, body, fmt.Errorf("%w: Invalid request body", datatypes.ErrValidation))
			return
		}

		resp, err := ing.Log(c.Request.Context(), req)
		if err != nil {
			fail(c, body, err)
			return
		}

		slog.Info("interaction logged",
			"interaction_id", resp.InteractionID,
			"session_id", resp.SessionID,
		)
		c.JSON(http.StatusOK, resp)
	}
}

func fail(c *gin.Context, body []byte, err error) {
	slog.Warn("log request rejected",
		"error", err,
		"status", StatusFor(err),
		"origin", headerOr(c, "Origin", "none"),
		"user_agent", clip(headerOr(c, "User-Agent", "none"), maxLoggedUserAgent),
		"body", clip(string(body), maxLoggedBody),
	)
	respondError(c, err)
}

func headerOr(c *gin.Context, name, fallback string) string {
	if v := c.GetHeader(name); v != "" {
		return v
	}
	return fallback
}

// clip keeps at most n bytes of s, cut on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
