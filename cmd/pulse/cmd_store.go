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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPulse/services/analytics/clock"
	"github.com/AleutianAI/AleutianPulse/services/analytics/portfolio"
	"github.com/AleutianAI/AleutianPulse/services/analytics/store"
)

// newReconcileCmd aligns the configured store with the catalog without
// starting the server. It reads the same PULSE_* variables as the server.
func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Align the store's portfolios with the catalog",
		Long: `Reconcile opens the store configured by PULSE_DB_DIALECT and PULSE_DB_DSN,
inserts missing canonical portfolios and deletes any others together with
their events. Running it twice changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.env.loadConfig()
			if err != nil {
				return err
			}
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}

			st, err := store.Open(cmd.Context(), cfg.Store(clock.NewWriteClock(clock.DefaultWriteClockConfig())))
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			reg, err := portfolio.Reconcile(cmd.Context(), st, cat)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.styled())
			if opts.json {
				return p.JSON(reg.List())
			}
			p.Success(fmt.Sprintf("%d portfolios reconciled (%s)", reg.Len(), st.Dialect()))
			for _, pf := range reg.List() {
				p.Linef("%3d  %s", pf.ID, pf.Name)
			}
			return nil
		},
	}
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the portfolio catalog as YAML",
		Long: `Catalog prints the catalog in effect: PULSE_CATALOG_FILE when set, the
built-in list otherwise. The output is a valid catalog file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.env.loadConfig()
			if err != nil {
				return err
			}
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}
			out, err := cat.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
