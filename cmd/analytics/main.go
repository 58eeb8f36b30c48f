// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command analytics runs the Pulse usage analytics service.
//
// Configuration comes from PULSE_* and OTEL_* environment variables; see
// package config for the full list.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianPulse/pkg/logging"
	"github.com/AleutianAI/AleutianPulse/services/analytics"
	"github.com/AleutianAI/AleutianPulse/services/analytics/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run installs the configured logger and serves until ctx is done. The
// logger is closed and the previous default restored before it returns.
func run(ctx context.Context, cfg config.Config) error {
	logger := logging.New(cfg.Logging())
	defer logger.Close()

	prev := slog.Default()
	slog.SetDefault(logger.Slog())
	defer slog.SetDefault(prev)

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	svc, err := analytics.New(startCtx, cfg)
	cancel()
	if err != nil {
		slog.Error("Failed to start analytics service", "error", err)
		return err
	}

	if err := svc.Run(ctx); err != nil {
		slog.Error("Analytics service stopped", "error", err)
		return err
	}
	slog.Info("Analytics service stopped")
	return nil
}
