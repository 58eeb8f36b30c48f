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

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestLogRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     LogRequest
		wantErr string
	}{
		{name: "id only", req: LogRequest{PortfolioID: ptr(3)}},
		{name: "name only", req: LogRequest{PortfolioName: "medical"}},
		{name: "voice upper case", req: LogRequest{PortfolioName: "arm", InputType: "VOICE"}},
		{name: "no reference", req: LogRequest{QuerySummary: "hi"}, wantErr: "Either portfolio_id or portfolio_name is required"},
		{name: "blank name", req: LogRequest{PortfolioName: "   "}, wantErr: "Either portfolio_id"},
		{name: "zero id", req: LogRequest{PortfolioID: ptr(0)}, wantErr: "PortfolioID"},
		{name: "zero id with name", req: LogRequest{PortfolioID: ptr(0), PortfolioName: "medical"}},
		{name: "negative id with name", req: LogRequest{PortfolioID: ptr(-1), PortfolioName: "medical"}, wantErr: "PortfolioID"},
		{name: "bad input type", req: LogRequest{PortfolioID: ptr(1), InputType: "video"}, wantErr: "InputType"},
		{name: "long session", req: LogRequest{PortfolioID: ptr(1), SessionID: strings.Repeat("x", 101)}, wantErr: "SessionID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLogRequest_ValidateClearsZeroIDWithName(t *testing.T) {
	req := LogRequest{PortfolioID: ptr(0), PortfolioName: "medical"}
	assert.NoError(t, req.Validate())
	assert.Nil(t, req.PortfolioID)
}
