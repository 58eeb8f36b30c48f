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
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPulse/services/dashboard/chart"
	"github.com/AleutianAI/AleutianPulse/services/dashboard/tui"
)

var errNotTerminal = errors.New("this command needs an interactive terminal")

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Open the live terminal dashboard",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.env.interactive() {
				return errNotTerminal
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			model := tui.New(c, chart.NewRegistry(), tui.Config{
				Interval:     interval,
				FetchTimeout: opts.timeout,
				Server:       opts.server,
			})
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", tui.DefaultConfig().Interval, "refresh interval")
	return cmd
}
