package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-budget-must-balance/internal/tui"
)

func browseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse your budgets interactively",
		Long: `Open a full-screen browser over your budgets and paycheck budgets.
Select a budget to see its items, and toggle whether an item counts
toward the spent total.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), m, owner)
		},
	}
}
