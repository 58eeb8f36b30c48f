// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the Gin handlers of the analytics API.
//
// Every handler is built by a factory that receives its dependencies, so
// routes.SetupRoutes can wire them and tests can build them in isolation.
// Failures are answered with a datatypes.ErrorResponse.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianPulse/services/analytics/aggregate"
	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// StatusFor maps a service error to its HTTP status.
//
//   - 400: validation, unknown portfolio name, unknown portfolio id.
//   - 500: store unavailable and anything unexpected.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, datatypes.ErrValidation),
		errors.Is(err, portfolio.ErrPortfolioNotFound),
		errors.Is(err, store.ErrInvalidPortfolio),
		errors.Is(err, aggregate.ErrUnknownPortfolio):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the error text sent to the client. Client errors carry
// their detail; server errors are generic.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, datatypes.ErrValidation):
		return strings.TrimPrefix(err.Error(), datatypes.ErrValidation.Error()+": ")
	case errors.Is(err, portfolio.ErrPortfolioNotFound):
		return "Portfolio not found: " + strings.TrimPrefix(err.Error(), portfolio.ErrPortfolioNotFound.Error()+": ")
	case errors.Is(err, store.ErrInvalidPortfolio), errors.Is(err, aggregate.ErrUnknownPortfolio):
		return "Invalid portfolio"
	case errors.Is(err, store.ErrStoreUnavailable):
		return "Store unavailable"
	default:
		return "Internal server error"
	}
}

// respondError writes err as JSON and attaches it to the context so the
// request logger reports it.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(StatusFor(err), datatypes.ErrorResponse{Error: publicMessage(err)})
}
