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
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/analytics/config"
)

func TestRun_StartupFailureFlushesLogAndRestoresDefault(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	cfg, err := config.LoadFrom(map[string]string{
		"PULSE_DB_DSN":          filepath.Join(dir, "pulse.db"),
		"PULSE_CATALOG_FILE":    filepath.Join(dir, "missing.yaml"),
		"PULSE_LOG_DIR":         logDir,
		"OTEL_METRICS_EXPORTER": "none",
		"OTEL_TRACES_EXPORTER":  "none",
	})
	require.NoError(t, err)

	before := slog.Default()
	err = run(context.Background(), cfg)
	require.Error(t, err)
	assert.Same(t, before, slog.Default())

	files, err := filepath.Glob(filepath.Join(logDir, "*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Failed to start analytics service")
}
