package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
)

func snapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage database snapshots",
		Long: `Create, list, restore, and delete snapshots of the whole database.

Snapshots copy every owner's data. A snapshot is taken automatically
before 'budget reset' and 'budget backup import'.`,
		Example: `  # Snapshot before a large cleanup
  budget snapshot create --tag before-cleanup

  # List all snapshots
  budget snapshot list

  # Go back
  budget snapshot restore before-cleanup`,
	}

	cmd.AddCommand(createSnapshotCmd(a))
	cmd.AddCommand(listSnapshotsCmd(a))
	cmd.AddCommand(restoreSnapshotCmd(a))
	cmd.AddCommand(deleteSnapshotCmd(a))

	return cmd
}

func (a *app) snapshots(ctx context.Context) (*storage.SnapshotManager, error) {
	store, err := a.storage(ctx)
	if err != nil {
		return nil, err
	}
	manager, err := store.NewSnapshotManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot manager: %w", err)
	}
	return manager, nil
}

func createSnapshotCmd(a *app) *cobra.Command {
	var tag, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := a.snapshots(cmd.Context())
			if err != nil {
				return err
			}
			info, err := manager.Create(cmd.Context(), tag, description)
			if err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon+" Created snapshot"),
				cli.InfoStyle.Render(info.ID),
				formatFileSize(info.FileSize))
			if info.Description != "" {
				fmt.Fprintf(out, "  Description: %s\n", info.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Snapshot name (auto-generated if not provided)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the snapshot")

	return cmd
}

func listSnapshotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := a.snapshots(cmd.Context())
			if err != nil {
				return err
			}
			snapshots, err := manager.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list snapshots: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No snapshots found."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, header("NAME", "CREATED", "SIZE", "BUDGETS", "PAYCHECKS", "CATEGORIES", "TYPE"))
			for _, s := range snapshots {
				typeLabel := "manual"
				if s.IsAuto {
					typeLabel = "auto"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					cli.InfoStyle.Render(s.ID),
					formatRelativeTime(s.CreatedAt, a.now()),
					formatFileSize(s.FileSize),
					s.Budgets,
					s.PaycheckBudgets,
					s.Categories,
					cli.SubtleStyle.Render(typeLabel))
			}
			return w.Flush()
		},
	}
}

func restoreSnapshotCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Replace the database with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			manager, err := a.snapshots(ctx)
			if err != nil {
				return err
			}
			info, err := manager.GetSnapshotInfo(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get snapshot info: %w", err)
			}

			out := cmd.OutOrStdout()
			if !force {
				fmt.Fprintf(out, "%s This replaces the database for every owner with snapshot %s.\n",
					cli.WarningStyle.Render(cli.WarningIcon), cli.InfoStyle.Render(id))
				fmt.Fprintf(out, "  Created: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
				if info.Description != "" {
					fmt.Fprintf(out, "  Description: %s\n", info.Description)
				}
				ok, err := cli.Confirm(ctx, a.in, out, "Continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, cli.SubtleStyle.Render("Restore canceled."))
					return nil
				}
			}

			// Restore closes the connection; the handle must not be reused.
			err = manager.Restore(ctx, id)
			a.close()
			if err != nil {
				return fmt.Errorf("failed to restore snapshot: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess("Restored from snapshot "+id))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func deleteSnapshotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <snapshot-id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := a.snapshots(cmd.Context())
			if err != nil {
				return err
			}
			if err := manager.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted snapshot "+args[0]))
			return nil
		},
	}
}
