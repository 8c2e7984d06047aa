package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
)

func resetCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every budget you own",
		Long: `Reset removes all of your budgets and paycheck budgets so that a backup
can be restored into the empty account. Other owners and the shared
categories are untouched.

A snapshot of the database is taken first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			owner, err := a.owner()
			if err != nil {
				return err
			}
			store, err := a.storage(ctx)
			if err != nil {
				return err
			}

			count, err := store.CountOwnerRecords(ctx, owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if count == 0 {
				fmt.Fprintln(out, "No budgets found. Nothing to reset.")
				return nil
			}

			if !force {
				fmt.Fprintf(out, "This will delete %d budgets owned by %s.\n", count, owner)
				ok, err := cli.Confirm(ctx, a.in, out, "Are you sure you want to continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Reset canceled.")
					return nil
				}
			}

			if err := a.autoSnapshot(ctx, "reset"); err != nil {
				return err
			}
			if err := store.ClearOwner(ctx, owner); err != nil {
				return fmt.Errorf("failed to clear budgets: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Deleted %d budgets", count)))
			fmt.Fprintln(out, "\nThe account is now empty. Run 'budget backup import' to restore a backup.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
