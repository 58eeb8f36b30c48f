// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/analytics/config"
	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T, extra map[string]string) config.Config {
	t.Helper()
	vars := map[string]string{
		"PULSE_DB_DSN":          filepath.Join(t.TempDir(), "pulse.db"),
		"OTEL_METRICS_EXPORTER": "none",
		"OTEL_TRACES_EXPORTER":  "none",
	}
	for k, v := range extra {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)
	return cfg
}

func TestNew_ServesAPI(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t, nil))
	require.NoError(t, err)
	t.Cleanup(func() { svc.(*service).cleanup() })

	assert.Equal(t, 10, svc.Registry().Len())

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/portfolios", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list datatypes.PortfoliosResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Portfolios, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/log", strings.NewReader(`{"portfolio_name":"key 2"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats datatypes.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Len(t, stats.Portfolios, 10)
	assert.Equal(t, int64(1), stats.Totals.TotalInteractions)

	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pulse_ingest_interactions_total")
}

func TestNew_PreflightAndRateLimit(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t, map[string]string{
		"PULSE_INGEST_RATE":  "0.001",
		"PULSE_INGEST_BURST": "1",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { svc.(*service).cleanup() })

	req := httptest.NewRequest(http.MethodOptions, "/api/log", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/log", strings.NewReader(`{"portfolio_name":"ARM"}`))
		req.RemoteAddr = "198.51.100.7:4000"
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNew_RateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t, map[string]string{
		"PULSE_INGEST_RATE":  "0.001",
		"PULSE_INGEST_BURST": "1",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { svc.(*service).cleanup() })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/log", strings.NewReader(`{"portfolio_name":"ARM"}`))
		req.RemoteAddr = "198.51.100.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestNew_RateLimitHonoursTrustedProxy(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t, map[string]string{
		"PULSE_INGEST_RATE":     "0.001",
		"PULSE_INGEST_BURST":    "1",
		"PULSE_TRUSTED_PROXIES": "198.51.100.0/24",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { svc.(*service).cleanup() })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/log", strings.NewReader(`{"portfolio_name":"ARM"}`))
		req.RemoteAddr = "198.51.100.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "client %d", i+1)
	}
}

func TestNew_BadCatalog(t *testing.T) {
	_, err := New(context.Background(), testConfig(t, map[string]string{
		"PULSE_CATALOG_FILE": filepath.Join(t.TempDir(), "missing.yaml"),
	}))
	assert.Error(t, err)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t, nil))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.(*service).serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
