package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

func budgetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budgets",
		Aliases: []string{"budget"},
		Short:   "Manage generic budgets",
		Long: `Create, inspect, and delete generic budgets and their items.

Committed items count toward the spent total; uncommitted items are drafts.`,
		Example: `  # Plan a monthly grocery budget
  budget budgets create Groceries --total 400 --type monthly

  # Record a committed purchase
  budget budgets item add <budget-id> --amount 70 --category Food --committed

  # See what is left
  budget budgets show <budget-id>`,
	}

	cmd.AddCommand(listBudgetsCmd(a))
	cmd.AddCommand(showBudgetCmd(a))
	cmd.AddCommand(createBudgetCmd(a))
	cmd.AddCommand(deleteBudgetCmd(a))
	cmd.AddCommand(budgetItemCmd(a))

	return cmd
}

func listBudgetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			budgets, err := m.Budgets(cmd.Context(), owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(budgets) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No budgets found."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, header("ID", "NAME", "TYPE", "SPENT", "TOTAL", "REMAINING", "ITEMS"))
			for i := range budgets {
				b := &budgets[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					b.ID, b.Name, b.Type,
					cli.FormatAmount(b.TotalSpent()),
					cli.FormatAmount(b.TotalBudget),
					cli.FormatRemaining(b.Remaining()),
					len(b.Items))
			}
			return w.Flush()
		},
	}
}

func showBudgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <budget-id>",
		Short: "Show a budget and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, err := m.Budget(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			return printBudget(cmd.OutOrStdout(), b)
		},
	}
}

func createBudgetCmd(a *app) *cobra.Command {
	var total string
	var budgetType string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("total", total)
			if err != nil {
				return err
			}
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, err := m.CreateBudget(cmd.Context(), owner, args[0], model.BudgetType(budgetType), amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.FormatSuccess("Created budget "+b.Name), cli.InfoStyle.Render(b.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&total, "total", "0", "Total amount available")
	cmd.Flags().StringVar(&budgetType, "type", string(model.BudgetTypeMonthly), "Budget type (weekly, monthly, yearly, vacation, event, other)")

	return cmd
}

func deleteBudgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <budget-id>",
		Short: "Delete a budget and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.DeleteBudget(cmd.Context(), owner, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted budget "+args[0]))
			return nil
		},
	}
}

func budgetItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage the items of a budget",
	}

	cmd.AddCommand(addBudgetItemCmd(a))
	cmd.AddCommand(editBudgetItemCmd(a))
	cmd.AddCommand(removeBudgetItemCmd(a))
	cmd.AddCommand(commitBudgetItemCmd(a))

	return cmd
}

func addBudgetItemCmd(a *app) *cobra.Command {
	var in model.NewBudgetItem
	var amount string

	cmd := &cobra.Command{
		Use:   "add <budget-id>",
		Short: "Add an item to a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if in.Amount, err = parseAmount("amount", amount); err != nil {
				return err
			}
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, item, err := m.AddItem(cmd.Context(), owner, args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.FormatSuccess("Added item to "+b.Name), cli.InfoStyle.Render(item.ID))
			fmt.Fprintln(cmd.OutOrStdout(), cli.Gauge(b.TotalSpent(), b.TotalBudget))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Item amount")
	cmd.Flags().StringVar(&in.Category, "category", "", "Category name")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.Date, "date", "", "Date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&in.IsCommitted, "committed", false, "Count the item toward the spent total")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func editBudgetItemCmd(a *app) *cobra.Command {
	var amount, category, description, date string
	var committed bool

	cmd := &cobra.Command{
		Use:   "edit <budget-id> <item-id>",
		Short: "Change fields of a budget item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.BudgetItemPatch
			flags := cmd.Flags()
			if flags.Changed("amount") {
				d, err := parseAmount("amount", amount)
				if err != nil {
					return err
				}
				patch.Amount = &d
			}
			if flags.Changed("category") {
				patch.Category = &category
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("date") {
				patch.Date = &date
			}
			if flags.Changed("committed") {
				patch.IsCommitted = &committed
			}

			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, err := m.EditItem(cmd.Context(), owner, args[0], args[1], patch)
			if err != nil {
				return err
			}
			if _, ok := b.Item(args[1]); !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No item "+args[1]+" in "+b.Name))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated item "+args[1]))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "New amount")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&date, "date", "", "New date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&committed, "committed", false, "Set the committed flag")

	return cmd
}

func removeBudgetItemCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <budget-id> <item-id>",
		Short: "Remove an item from a budget",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := m.RemoveItem(cmd.Context(), owner, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Removed item "+args[1]))
			return nil
		},
	}
}

func commitBudgetItemCmd(a *app) *cobra.Command {
	var toggle bool

	cmd := &cobra.Command{
		Use:   "commit <budget-id> <item-id>",
		Short: "Commit a draft item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			var b *model.Budget
			if toggle {
				b, err = m.ToggleCommitted(cmd.Context(), owner, args[0], args[1])
			} else {
				b, err = m.CommitItem(cmd.Context(), owner, args[0], args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.Gauge(b.TotalSpent(), b.TotalBudget))
			return nil
		},
	}

	cmd.Flags().BoolVar(&toggle, "toggle", false, "Flip the committed flag instead of setting it")

	return cmd
}

func printBudget(out io.Writer, b *model.Budget) error {
	fmt.Fprintln(out, cli.FormatTitle(b.Name))
	fmt.Fprintf(out, "ID:        %s\n", b.ID)
	fmt.Fprintf(out, "Type:      %s\n", b.Type)
	fmt.Fprintf(out, "Remaining: %s\n", cli.FormatRemaining(b.Remaining()))
	fmt.Fprintln(out, cli.Gauge(b.TotalSpent(), b.TotalBudget))
	if len(b.Items) == 0 {
		fmt.Fprintln(out, cli.SubtleStyle.Render("No items."))
		return nil
	}
	fmt.Fprintf(out, "Categories: %s\n", strings.Join(b.Categories(), ", "))

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header("ID", "DATE", "CATEGORY", "DESCRIPTION", "AMOUNT", "COMMITTED"))
	for _, item := range b.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.Date, item.Category, item.Description,
			cli.FormatAmount(item.Amount), yesNo(item.IsCommitted))
	}
	return w.Flush()
}

func header(columns ...string) string {
	rendered := make([]string, len(columns))
	for i, c := range columns {
		rendered[i] = cli.BoldStyle.Render(c)
	}
	return strings.Join(rendered, "\t")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
