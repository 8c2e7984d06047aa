package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-budget-must-balance/internal/archive"
	"github.com/Veraticus/the-budget-must-balance/internal/backup"
	"github.com/Veraticus/the-budget-must-balance/internal/cli"
)

func backupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and restore JSON backups",
		Long: `Export every budget you own to a JSON backup, or restore one into an
empty account.

A backup can only be restored by the account that exported it. Restoring
into an account that already has budgets is refused; run 'budget reset'
first.`,
		Example: `  # Write budget-tracker-backup.json in the current directory
  budget backup export

  # Keep a dated copy in the configured archive
  budget backup export --archive

  # Restore from a file
  budget backup import budget-tracker-backup.json

  # Restore from the archive
  budget backup list
  budget backup import --archive u1/budget-backup-2024-03-01.json`,
	}

	cmd.AddCommand(exportBackupCmd(a))
	cmd.AddCommand(importBackupCmd(a))
	cmd.AddCommand(listBackupsCmd(a))

	return cmd
}

func exportBackupCmd(a *app) *cobra.Command {
	var output string
	var dated, toArchive bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your budgets to a backup file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, owner, err := a.backupService(ctx)
			if err != nil {
				return err
			}
			doc, err := svc.Export(ctx, owner)
			if err != nil {
				return err
			}

			data, err := backup.Marshal(doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := fmt.Sprintf("%d budgets, %d paycheck budgets, %d categories",
				doc.Metadata.Summary.BudgetsCount,
				doc.Metadata.Summary.PaycheckBudgetsCount,
				doc.Metadata.Summary.CategoriesCount)

			switch {
			case toArchive:
				store, err := openArchive(ctx)
				if err != nil {
					return err
				}
				key := archive.OwnerKey(owner, backup.FileName(a.now(), true))
				info, err := archive.PutNext(ctx, store, key, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (%s)\n", cli.FormatSuccess("Archived backup "+info.Key), summary)
			case output == "-":
				_, err := out.Write(data)
				return err
			default:
				if output == "" {
					output = backup.FileName(a.now(), dated)
				}
				if err := os.WriteFile(output, data, 0600); err != nil {
					return fmt.Errorf("failed to write backup: %w", err)
				}
				fmt.Fprintf(out, "%s (%s)\n", cli.FormatSuccess("Wrote "+output), summary)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, or - for stdout")
	cmd.Flags().BoolVar(&dated, "dated", false, "Use a dated file name (budget-backup-YYYY-MM-DD.json)")
	cmd.Flags().BoolVar(&toArchive, "archive", false, "Store the backup in the configured archive")

	return cmd
}

func importBackupCmd(a *app) *cobra.Command {
	var archiveKey string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Restore a backup into your empty account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (archiveKey == "") == (len(args) == 0) {
				return fmt.Errorf("pass either a backup file or --archive <key>")
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "The import was rolled back; nothing was written.")
			ctx, stop := handler.HandleInterrupts(cmd.Context())
			defer stop()

			svc, owner, err := a.backupService(ctx)
			if err != nil {
				return err
			}

			r, err := openBackupSource(ctx, archiveKey, args)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			svc.SetBeforeImport(func(ctx context.Context) error {
				return a.autoSnapshot(ctx, "import")
			})

			var bar *progressbar.ProgressBar
			progress := func(done, total int) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetWriter(cmd.ErrOrStderr()),
						progressbar.OptionShowCount(),
						progressbar.OptionSetWidth(40),
						progressbar.OptionSetDescription("Restoring backup..."),
						progressbar.OptionClearOnFinish(),
					)
				}
				_ = bar.Set(done)
			}

			result, err := svc.Restore(ctx, r, owner, progress)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				if handler.WasInterrupted() {
					return fmt.Errorf("import interrupted: %w", err)
				}
				return err
			}

			summary := fmt.Sprintf("Budgets:          %d\nPaycheck budgets: %d\nCategories:       %d new, %d already present",
				result.BudgetsRestored, result.PaycheckBudgetsRestored, result.CategoriesRestored, result.CategoriesSkipped)
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.SuccessIcon+" Backup restored", summary))
			return nil
		},
	}

	cmd.Flags().StringVar(&archiveKey, "archive", "", "Restore the archived backup with this key")

	return cmd
}

func openBackupSource(ctx context.Context, archiveKey string, args []string) (io.ReadCloser, error) {
	if archiveKey != "" {
		store, err := openArchive(ctx)
		if err != nil {
			return nil, err
		}
		return store.Get(ctx, archiveKey)
	}
	// #nosec G304 - user-supplied backup path
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	return f, nil
}

func listBackupsCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			prefix := ""
			if !all {
				owner, err := a.owner()
				if err != nil {
					return err
				}
				prefix = owner + "/"
			}

			store, err := openArchive(ctx)
			if err != nil {
				return err
			}
			infos, err := store.List(ctx, prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No archived backups found."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, header("KEY", "SIZE", "MODIFIED"))
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					cli.InfoStyle.Render(info.Key),
					formatFileSize(info.Size),
					formatRelativeTime(info.LastModified, a.now()))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List backups of every owner")

	return cmd
}

// autoSnapshot takes a safety snapshot before a destructive operation.
// In-memory databases cannot be snapshotted and are skipped.
func (a *app) autoSnapshot(ctx context.Context, operation string) error {
	store, err := a.storage(ctx)
	if err != nil {
		return err
	}
	if store.Path() == ":memory:" {
		return nil
	}
	sm, err := store.NewSnapshotManager()
	if err != nil {
		return err
	}
	info, err := sm.Auto(ctx, operation)
	if err != nil {
		return fmt.Errorf("failed to create safety snapshot: %w", err)
	}
	slog.Info("created safety snapshot", "snapshot", info.ID, "operation", operation)
	return nil
}

