// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/analytics/config"
	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
)

// fakeAPI serves canned responses and records log requests.
type fakeAPI struct {
	logged []datatypes.LogRequest
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/portfolios":
		_, _ = w.Write([]byte(`{"portfolios":[{"id":1,"name":"ARM Assist","short":"ARM"},{"id":2,"name":"Medical Debt Collector Trainer","short":"Medical"}]}`))
	case "/api/stats":
		_, _ = w.Write([]byte(`{"portfolios":[{"id":1,"name":"ARM Assist","short":"ARM","total_interactions":30,"total_sessions":4},{"id":2,"name":"Medical Debt Collector Trainer","short":"Medical","total_interactions":10}],"totals":{"total_interactions":40,"total_sessions":4},"zone":"UTC"}`))
	case "/api/stats/1":
		_, _ = w.Write([]byte(`{"portfolio_id":1,"portfolio":{"id":1,"name":"ARM Assist","short":"ARM"},"stats":{"total_interactions":30,"total_sessions":4,"active_days":4},"daywise":[{"date":"2026-10-15","interactions":7,"sessions":2}],"recent_queries":[{"query_summary":"payment plan","timestamp":"2026-10-15T09:00:00Z","session_id":"s"}]}`))
	case "/api/stats/99":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid portfolio"}`))
	case "/api/analytics":
		_, _ = w.Write([]byte(`{"monthwise":[{"month":"2026-09","portfolio_id":1,"interactions":5},{"month":"2026-10","portfolio_id":1,"interactions":30},{"month":"2026-10","portfolio_id":2,"interactions":10}],"top_this_month":[{"id":1,"name":"ARM Assist","short":"ARM","interactions":30,"sessions":4}],"top_last_month":[],"current_month":"October 2026","last_month":"September 2026","zone":"UTC"}`))
	case "/api/log":
		var req datatypes.LogRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.logged = append(f.logged, req)
		_, _ = w.Write([]byte(`{"success":true,"interaction_id":12,"timestamp":"2026-10-15T12:00:00Z","session_id":"abc"}`))
	case "/health":
		_, _ = w.Write([]byte(`{"status":"ok","timestamp":"2026-10-15T12:00:00Z","uptime":90}`))
	default:
		http.NotFound(w, r)
	}
}

func testEnv(vars map[string]string) cliEnv {
	return cliEnv{
		interactive: func() bool { return false },
		loadConfig:  func() (config.Config, error) { return config.LoadFrom(vars) },
	}
}

func execute(t *testing.T, env cliEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(env)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newFakeServer(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv.URL
}

func TestPortfoliosCmd(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := execute(t, testEnv(nil), "--server", url, "portfolios")
	require.NoError(t, err)
	assert.Contains(t, out, "Portfolios")
	assert.Contains(t, out, "Medical Debt Collector Trainer")
}

func TestPortfoliosCmd_JSON(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := execute(t, testEnv(nil), "--server", url, "--json", "portfolios")
	require.NoError(t, err)

	var resp datatypes.PortfoliosResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Portfolios, 2)
}

func TestStatsCmd_Summary(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := execute(t, testEnv(nil), "--server", url, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Interactions 40")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "Never")
	assert.Contains(t, out, "bucketed in UTC")
}

func TestStatsCmd_Portfolio(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := execute(t, testEnv(nil), "--server", url, "stats", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "ARM Assist")
	assert.Contains(t, out, "Avg per day 8")
	assert.Contains(t, out, "3.5 per session")
	assert.Contains(t, out, "payment plan")
}

func TestStatsCmd_Errors(t *testing.T) {
	_, url := newFakeServer(t)

	_, err := execute(t, testEnv(nil), "--server", url, "stats", "abc")
	assert.ErrorContains(t, err, `invalid portfolio id "abc"`)

	_, err = execute(t, testEnv(nil), "--server", url, "stats", "99")
	assert.ErrorContains(t, err, "Invalid portfolio")
}

func TestAnalyticsCmd(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := execute(t, testEnv(nil), "--server", url, "analytics")
	require.NoError(t, err)
	assert.Contains(t, out, "Top this month (October 2026)")
	assert.Contains(t, out, "1. ARM")
	assert.Contains(t, out, "no activity")
	assert.Contains(t, out, "2026-10  40")
}

func TestLogCmd(t *testing.T) {
	api, url := newFakeServer(t)
	out, err := execute(t, testEnv(nil), "--server", url, "log", "-p", "medical", "-q", "what is my balance", "--input-type", "voice")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged interaction 12")

	require.Len(t, api.logged, 1)
	assert.Equal(t, "medical", api.logged[0].PortfolioName)
	assert.Nil(t, api.logged[0].PortfolioID)
	assert.Equal(t, "voice", api.logged[0].InputType)
}

func TestLogCmd_ByID(t *testing.T) {
	api, url := newFakeServer(t)
	_, err := execute(t, testEnv(nil), "--server", url, "log", "--id", "7")
	require.NoError(t, err)
	require.Len(t, api.logged, 1)
	require.NotNil(t, api.logged[0].PortfolioID)
	assert.Equal(t, int64(7), *api.logged[0].PortfolioID)
}

func TestLogCmd_RequiresPortfolioWithoutTerminal(t *testing.T) {
	api, url := newFakeServer(t)
	_, err := execute(t, testEnv(nil), "--server", url, "log", "-q", "hi")
	assert.ErrorContains(t, err, "either --portfolio or --id is required")
	assert.Empty(t, api.logged)
}

func TestHealthCmd(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := execute(t, testEnv(nil), "--server", url, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "ok, up 1m30s")
}

func TestDashboardCmd_NeedsTerminal(t *testing.T) {
	_, url := newFakeServer(t)
	_, err := execute(t, testEnv(nil), "--server", url, "dashboard")
	assert.ErrorIs(t, err, errNotTerminal)
}

func TestInvalidServer(t *testing.T) {
	_, err := execute(t, testEnv(nil), "--server", "localhost", "portfolios")
	assert.ErrorContains(t, err, "invalid server url")
}

func TestReconcileCmd(t *testing.T) {
	vars := map[string]string{"PULSE_DB_DSN": filepath.Join(t.TempDir(), "pulse.db")}

	out, err := execute(t, testEnv(vars), "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "10 portfolios reconciled (sqlite)")
	assert.Contains(t, out, "  7  ARM Assist")

	// Idempotent: the same ids come back.
	again, err := execute(t, testEnv(vars), "reconcile")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestCatalogCmd(t *testing.T) {
	out, err := execute(t, testEnv(map[string]string{}), "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "portfolios:")
	assert.Contains(t, out, "ARM Assist")

	_, err = execute(t, testEnv(map[string]string{"PULSE_CATALOG_FILE": "/does/not/exist.yaml"}), "catalog")
	assert.ErrorContains(t, err, "failed to read portfolio catalog")
}
