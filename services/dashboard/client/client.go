// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package client is the HTTP client of the analytics API used by the
// dashboard and the pulse CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
)

var (
	// ErrUnavailable is returned when the server cannot be reached or
	// answers with a 5xx status.
	ErrUnavailable = errors.New("analytics server unavailable")
	// ErrRejected is returned for 4xx answers.
	ErrRejected = errors.New("request rejected")
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 10 * time.Second

// Client calls the analytics API.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the server at baseURL, for example
// "http://localhost:3000". A nil httpClient uses one with DefaultTimeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: u.String(), http: httpClient}, nil
}

// Portfolios fetches GET /api/portfolios.
func (c *Client) Portfolios(ctx context.Context) (datatypes.PortfoliosResponse, error) {
	var out datatypes.PortfoliosResponse
	err := c.get(ctx, "/api/portfolios", &out)
	return out, err
}

// Summary fetches GET /api/stats.
func (c *Client) Summary(ctx context.Context) (datatypes.StatsResponse, error) {
	var out datatypes.StatsResponse
	err := c.get(ctx, "/api/stats", &out)
	return out, err
}

// Portfolio fetches GET /api/stats/:id.
func (c *Client) Portfolio(ctx context.Context, id int64) (datatypes.PortfolioStatsResponse, error) {
	var out datatypes.PortfolioStatsResponse
	err := c.get(ctx, fmt.Sprintf("/api/stats/%d", id), &out)
	return out, err
}

// Analytics fetches GET /api/analytics.
func (c *Client) Analytics(ctx context.Context) (datatypes.AnalyticsResponse, error) {
	var out datatypes.AnalyticsResponse
	err := c.get(ctx, "/api/analytics", &out)
	return out, err
}

// Health fetches GET /health. A degraded server answers 503 with a body,
// which is returned together with ErrUnavailable.
func (c *Client) Health(ctx context.Context) (datatypes.HealthResponse, error) {
	var out datatypes.HealthResponse
	err := c.get(ctx, "/health", &out)
	return out, err
}

// Log posts one interaction to POST /api/log.
func (c *Client) Log(ctx context.Context, req datatypes.LogRequest) (datatypes.LogResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return datatypes.LogResponse{}, err
	}
	var out datatypes.LogResponse
	err = c.do(ctx, http.MethodPost, "/api/log", bytes.NewReader(body), &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		_ = json.Unmarshal(data, out)
		return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, method, path, errorText(resp.StatusCode, data))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s", ErrRejected, errorText(resp.StatusCode, data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func errorText(status int, body []byte) string {
	var e datatypes.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Sprintf("%d %s", status, e.Error)
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}
