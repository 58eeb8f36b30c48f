// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the JSON wire types of the analytics API.
// They are shared by the HTTP handlers and the dashboard client.
package datatypes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks a request that is malformed or misses required
// fields.
var ErrValidation = errors.New("validation error")

// logValidate is the validator instance for ingestion requests.
var logValidate *validator.Validate

func init() {
	logValidate = validator.New()
	_ = logValidate.RegisterValidation("inputtype", validateInputType)
}

// validateInputType accepts "text" and "voice" in any case.
func validateInputType(fl validator.FieldLevel) bool {
	switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
	case "text", "voice":
		return true
	}
	return false
}

// LogRequest is the body of POST /api/log.
//
// # Description
//
// An agent identifies the portfolio either by id or by a name fragment.
// When both are present the id wins. Everything else is optional: a
// missing session id is replaced by a fresh UUID, a missing input type
// means "text".
//
// # Fields
//
//   - PortfolioID: Optional. Canonical portfolio id.
//   - PortfolioName: Optional. Case-insensitive name fragment.
//   - SessionID: Optional. Opaque conversation key, at most 100 characters.
//   - QuerySummary: Optional. Truncated to 500 characters when stored.
//   - ResponseSummary: Optional. Truncated to 500 characters when stored.
//   - InputType: Optional. "text" or "voice".
type LogRequest struct {
	PortfolioID     *int64 `json:"portfolio_id,omitempty" validate:"omitempty,gt=0"`
	PortfolioName   string `json:"portfolio_name,omitempty" validate:"max=200"`
	SessionID       string `json:"session_id,omitempty" validate:"max=100"`
	QuerySummary    string `json:"query_summary,omitempty"`
	ResponseSummary string `json:"response_summary,omitempty"`
	InputType       string `json:"input_type,omitempty" validate:"omitempty,inputtype"`
}

// Validate checks field tags and that a portfolio reference is present.
//
// # Description
//
// A zero PortfolioID sent alongside a name is treated as absent and
// cleared, so the name is resolved instead. Zero with no name still fails.
//
// # Outputs
//
//   - error: ErrValidation wrapped with the first problem found.
func (r *LogRequest) Validate() error {
	if r.PortfolioID != nil && *r.PortfolioID == 0 && strings.TrimSpace(r.PortfolioName) != "" {
		r.PortfolioID = nil
	}
	if r.PortfolioID == nil && strings.TrimSpace(r.PortfolioName) == "" {
		return fmt.Errorf("%w: Either portfolio_id or portfolio_name is required", ErrValidation)
	}
	if err := logValidate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", ErrValidation, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// LogResponse is the 200 body of POST /api/log.
type LogResponse struct {
	Success       bool      `json:"success"`
	InteractionID int64     `json:"interaction_id"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
