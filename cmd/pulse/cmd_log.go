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
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPulse/services/analytics/datatypes"
	"github.com/AleutianAI/AleutianPulse/services/dashboard/client"
)

func newLogCmd(opts *rootOptions) *cobra.Command {
	var (
		req datatypes.LogRequest
		id  int64
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log one interaction, as an agent would",
		Long: `Log posts one interaction to /api/log. Name the portfolio with --portfolio
(a case-insensitive name fragment) or --id. Without either, an interactive
picker is shown when running in a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("id") {
				req.PortfolioID = &id
			}
			if req.PortfolioID == nil && req.PortfolioName == "" {
				if !opts.env.interactive() {
					return errors.New("either --portfolio or --id is required")
				}
				if err := pickPortfolio(cmd.Context(), c, &req); err != nil {
					return err
				}
			}

			resp, err := c.Log(cmd.Context(), req)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.styled())
			if opts.json {
				return p.JSON(resp)
			}
			p.Success(fmt.Sprintf("Logged interaction %d", resp.InteractionID))
			p.Muted(fmt.Sprintf("session %s at %s", resp.SessionID, resp.Timestamp.Format("2006-01-02 15:04:05 MST")))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.PortfolioName, "portfolio", "p", "", "portfolio name fragment")
	f.Int64Var(&id, "id", 0, "portfolio id (wins over --portfolio)")
	f.StringVar(&req.SessionID, "session", "", "session id (generated when empty)")
	f.StringVarP(&req.QuerySummary, "query", "q", "", "query summary")
	f.StringVar(&req.ResponseSummary, "response", "", "response summary")
	f.StringVar(&req.InputType, "input-type", "", "text or voice")
	return cmd
}

// pickPortfolio asks for the portfolio and, when missing, the query.
func pickPortfolio(ctx context.Context, c *client.Client, req *datatypes.LogRequest) error {
	list, err := c.Portfolios(ctx)
	if err != nil {
		return err
	}
	if len(list.Portfolios) == 0 {
		return errors.New("the server has no portfolios")
	}

	options := make([]huh.Option[int64], len(list.Portfolios))
	for i, p := range list.Portfolios {
		options[i] = huh.NewOption(p.Name, p.ID)
	}
	id := list.Portfolios[0].ID

	fields := []huh.Field{
		huh.NewSelect[int64]().
			Title("Portfolio").
			Options(options...).
			Value(&id),
	}
	if req.QuerySummary == "" {
		fields = append(fields, huh.NewInput().
			Title("Query summary").
			Placeholder("optional").
			Value(&req.QuerySummary))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx); err != nil {
		return err
	}
	req.PortfolioID = &id
	return nil
}
