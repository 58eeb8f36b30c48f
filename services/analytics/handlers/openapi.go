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
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
)

// HandleOpenAPI handles GET /openapi.json.
//
// # Description
//
// Serves an OpenAPI 3.1 description of POST /api/log that agent builders
// paste into their action configuration. The server URL is derived from
// the request (honouring X-Forwarded-Proto) and the portfolio_name
// description lists the canonical names.
func HandleOpenAPI(reg *portfolio.Registry, version string) gin.HandlerFunc {
	names := make([]string, 0, reg.Len())
	for _, p := range reg.List() {
		names = append(names, p.Name)
	}
	nameHelp := "Name of the portfolio, matched case-insensitively as a substring. One of: " +
		strings.Join(names, "; ")

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"openapi": "3.1.0",
			"info": gin.H{
				"title":       "Pulse Analytics API",
				"description": "Track usage analytics for portfolio assistants",
				"version":     version,
			},
			"servers": []gin.H{{"url": baseURL(c)}},
			"paths": gin.H{
				"/api/log": gin.H{
					"post": gin.H{
						"operationId":              "logInteraction",
						"x-openai-isConsequential": false,
						"summary":                  "Log a user interaction",
						"description":              "Called after each user message to track analytics",
						"requestBody": gin.H{
							"required": true,
							"content": gin.H{
								"application/json": gin.H{"schema": logRequestSchema(nameHelp)},
							},
						},
						"responses": gin.H{
							"200": gin.H{
								"description": "Interaction logged successfully",
								"content": gin.H{
									"application/json": gin.H{"schema": logResponseSchema()},
								},
							},
							"400": gin.H{"description": "Invalid request or unknown portfolio"},
							"429": gin.H{"description": "Too many requests"},
							"500": gin.H{"description": "Store unavailable"},
						},
					},
				},
			},
		})
	}
}

func logRequestSchema(nameHelp string) gin.H {
	return gin.H{
		"type":     "object",
		"required": []string{"portfolio_name", "query_summary"},
		"properties": gin.H{
			"portfolio_id": gin.H{
				"type":        "integer",
				"description": "Canonical portfolio id. Takes precedence over portfolio_name.",
			},
			"portfolio_name": gin.H{
				"type":        "string",
				"description": nameHelp,
			},
			"session_id": gin.H{
				"type":        "string",
				"maxLength":   100,
				"description": "Unique session identifier (generate once per conversation)",
			},
			"query_summary": gin.H{
				"type":        "string",
				"description": "Brief summary of what the user asked (max 100 words)",
			},
			"response_summary": gin.H{
				"type":        "string",
				"description": "Brief summary of your response (max 50 words)",
			},
			"input_type": gin.H{
				"type":        "string",
				"enum":        []string{"text", "voice"},
				"description": "Type of input (text or voice if speech patterns detected)",
			},
		},
	}
}

func logResponseSchema() gin.H {
	return gin.H{
		"type": "object",
		"properties": gin.H{
			"success":        gin.H{"type": "boolean"},
			"interaction_id": gin.H{"type": "integer"},
			"timestamp":      gin.H{"type": "string", "format": "date-time"},
			"session_id":     gin.H{"type": "string"},
		},
	}
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + c.Request.Host
}
