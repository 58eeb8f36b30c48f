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
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPulse/services/analytics/config"
	"github.com/AleutianAI/AleutianPulse/services/dashboard/client"
)

// defaultServer is used when neither --server nor PULSE_SERVER is set.
const defaultServer = "http://localhost:3000"

// cliEnv holds what the commands take from the process, so tests can
// replace it.
type cliEnv struct {
	// interactive reports whether stdin and stdout are terminals.
	interactive func() bool
	// loadConfig reads the server configuration for local store commands.
	loadConfig func() (config.Config, error)
}

func defaultEnv() cliEnv {
	return cliEnv{
		interactive: func() bool {
			return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
		},
		loadConfig: config.Load,
	}
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// rootOptions are the persistent flags.
type rootOptions struct {
	server  string
	timeout time.Duration
	json    bool
	env     cliEnv
}

func (o *rootOptions) client() (*client.Client, error) {
	return client.New(o.server, &http.Client{Timeout: o.timeout})
}

// styled reports whether output may use colors and boxes.
func (o *rootOptions) styled() bool {
	return !o.json && o.env.interactive()
}

func newRootCmd(env cliEnv) *cobra.Command {
	opts := &rootOptions{env: env}

	server := os.Getenv("PULSE_SERVER")
	if server == "" {
		server = defaultServer
	}

	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "Operate the Pulse portfolio usage analytics service",
		Long: `Pulse collects interaction events for the ten canonical portfolios
and serves usage statistics. This CLI talks to a running analytics server
and maintains the local store.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "analytics server URL (env PULSE_SERVER)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "request timeout")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON")

	cmd.AddCommand(
		newDashboardCmd(opts),
		newLogCmd(opts),
		newPortfoliosCmd(opts),
		newStatsCmd(opts),
		newAnalyticsCmd(opts),
		newHealthCmd(opts),
		newReconcileCmd(opts),
		newCatalogCmd(opts),
	)
	return cmd
}
