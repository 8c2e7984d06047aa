package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-budget-must-balance/internal/attachment"
	"github.com/Veraticus/the-budget-must-balance/internal/budget"
	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

func paychecksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "paychecks",
		Aliases: []string{"paycheck"},
		Short:   "Manage paycheck and business budgets",
		Long: `Plan expenses against a single paycheck, or track reimbursable
expenses for a business client.

Only active expenses count toward the spent total.`,
		Example: `  # Budget a paycheck
  budget paychecks create "March 15" --amount 2400 --date 2024-03-15

  # Track a client engagement
  budget paychecks create "Acme trip" --kind business --client Acme --amount 1500

  # Attach a receipt photo to an expense
  budget paychecks item attach <paycheck-id> <item-id> receipt.png`,
	}

	cmd.AddCommand(listPaychecksCmd(a))
	cmd.AddCommand(showPaycheckCmd(a))
	cmd.AddCommand(createPaycheckCmd(a))
	cmd.AddCommand(deletePaycheckCmd(a))
	cmd.AddCommand(paycheckItemCmd(a))

	return cmd
}

func listPaychecksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your paycheck and business budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			paychecks, err := m.Paychecks(cmd.Context(), owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(paychecks) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No paycheck budgets found."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, header("ID", "NAME", "KIND", "DATE", "SPENT", "AMOUNT", "REMAINING"))
			for i := range paychecks {
				p := &paychecks[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Name, p.Kind(), p.Date,
					cli.FormatAmount(p.TotalSpent()),
					cli.FormatAmount(p.Amount),
					cli.FormatRemaining(p.Remaining()))
			}
			return w.Flush()
		},
	}
}

func showPaycheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <paycheck-id>",
		Short: "Show a paycheck budget and its expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			p, err := m.Paycheck(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			return printPaycheck(cmd.OutOrStdout(), p)
		},
	}
}

func createPaycheckCmd(a *app) *cobra.Command {
	var opts budget.PaycheckOptions
	var amount, kind string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty paycheck or business budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.Amount, err = parseAmount("amount", amount); err != nil {
				return err
			}
			switch model.PaycheckKind(kind) {
			case model.KindPaycheck, model.KindBusiness:
				opts.Kind = model.PaycheckKind(kind)
			default:
				return fmt.Errorf("invalid --kind %q: want paycheck or business", kind)
			}
			opts.Name = args[0]

			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			p, err := m.CreatePaycheck(cmd.Context(), owner, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.FormatSuccess(fmt.Sprintf("Created %s budget %s", p.Kind(), p.Name)), cli.InfoStyle.Render(p.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "0", "Paycheck or engagement amount")
	cmd.Flags().StringVar(&kind, "kind", string(model.KindPaycheck), "Budget kind (paycheck, business)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "Date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.Client, "client", "", "Client name for business budgets")

	return cmd
}

func deletePaycheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <paycheck-id>",
		Short: "Delete a paycheck budget and its expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.DeletePaycheck(cmd.Context(), owner, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted paycheck budget "+args[0]))
			return nil
		},
	}
}

func paycheckItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage the expenses of a paycheck budget",
	}

	cmd.AddCommand(addExpenseCmd(a))
	cmd.AddCommand(editExpenseCmd(a))
	cmd.AddCommand(removeExpenseCmd(a))
	cmd.AddCommand(toggleExpenseCmd(a))
	cmd.AddCommand(attachExpenseCmd(a))
	cmd.AddCommand(imageExpenseCmd(a))

	return cmd
}

func addExpenseCmd(a *app) *cobra.Command {
	var in model.NewExpenseItem
	var amount string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add <paycheck-id>",
		Short: "Add an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if in.Amount, err = parseAmount("amount", amount); err != nil {
				return err
			}
			if inactive {
				active := false
				in.IsActive = &active
			}

			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			p, item, err := m.AddExpense(cmd.Context(), owner, args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.FormatSuccess("Added expense to "+p.Name), cli.InfoStyle.Render(item.ID))
			fmt.Fprintln(cmd.OutOrStdout(), cli.Gauge(p.TotalSpent(), p.Amount))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Expense amount")
	cmd.Flags().StringVar(&in.Category, "category", "", "Category name")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.Date, "date", "", "Date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Add the expense without counting it")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func editExpenseCmd(a *app) *cobra.Command {
	var amount, category, description, date string
	var active bool

	cmd := &cobra.Command{
		Use:   "edit <paycheck-id> <item-id>",
		Short: "Change fields of an expense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.ExpenseItemPatch
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
			if flags.Changed("active") {
				patch.IsActive = &active
			}

			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			p, err := m.EditExpense(cmd.Context(), owner, args[0], args[1], patch)
			if err != nil {
				return err
			}
			if _, ok := p.Expense(args[1]); !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No expense "+args[1]+" in "+p.Name))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated expense "+args[1]))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "New amount")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&date, "date", "", "New date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&active, "active", true, "Set whether the expense counts")

	return cmd
}

func removeExpenseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <paycheck-id> <item-id>",
		Short: "Remove an expense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := m.RemoveExpense(cmd.Context(), owner, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Removed expense "+args[1]))
			return nil
		},
	}
}

func toggleExpenseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <paycheck-id> <item-id>",
		Short: "Flip whether an expense counts toward the spent total",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			p, err := m.ToggleActive(cmd.Context(), owner, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.Gauge(p.TotalSpent(), p.Amount))
			return nil
		},
	}
}

func attachExpenseCmd(a *app) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "attach <paycheck-id> <item-id> [image]",
		Short: "Attach a receipt image to an expense",
		Long: `Attach a PNG or JPEG image to an expense. The image is scaled down to
attachments.max_width pixels and stored as JPEG. Use --remove to drop it.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remove == (len(args) == 3) {
				return fmt.Errorf("pass either an image path or --remove")
			}

			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}

			if remove {
				if _, err := m.DetachImage(cmd.Context(), owner, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Removed image from expense "+args[1]))
				return nil
			}

			// #nosec G304 - user-supplied image path
			f, err := os.Open(args[2])
			if err != nil {
				return fmt.Errorf("failed to open image: %w", err)
			}
			defer func() { _ = f.Close() }()

			att, err := newCompressor().Compress(f)
			if err != nil {
				return err
			}
			if _, err := m.AttachImage(cmd.Context(), owner, args[0], args[1], att); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n",
				cli.FormatSuccess("Attached image to expense "+args[1]),
				formatFileSize(int64(len(att.Data))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the attached image")

	return cmd
}

func imageExpenseCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "image <paycheck-id> <item-id>",
		Short: "Write the image attached to an expense to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, owner, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			p, err := m.Paycheck(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			item, ok := p.Expense(args[1])
			if !ok {
				return fmt.Errorf("expense %s: %w", args[1], common.ErrNotFound)
			}
			if item.Image == "" {
				return fmt.Errorf("expense %s has no image", args[1])
			}

			data, err := attachment.Decode(model.Attachment{Data: item.Image, FileType: item.FileType})
			if err != nil {
				return err
			}
			if output == "" {
				output = item.ID + ".jpg"
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("failed to write image: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n",
				cli.FormatSuccess("Saved image to "+output), item.FileType, formatFileSize(int64(len(data))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <item-id>.jpg)")

	return cmd
}

func printPaycheck(out io.Writer, p *model.PaycheckBudget) error {
	fmt.Fprintln(out, cli.FormatTitle(p.Name))
	fmt.Fprintf(out, "ID:        %s\n", p.ID)
	fmt.Fprintf(out, "Kind:      %s\n", p.Kind())
	fmt.Fprintf(out, "Date:      %s\n", p.Date)
	if p.Client != "" {
		fmt.Fprintf(out, "Client:    %s\n", p.Client)
	}
	fmt.Fprintf(out, "Remaining: %s\n", cli.FormatRemaining(p.Remaining()))
	fmt.Fprintln(out, cli.Gauge(p.TotalSpent(), p.Amount))
	if len(p.Items) == 0 {
		fmt.Fprintln(out, cli.SubtleStyle.Render("No expenses."))
		return nil
	}
	fmt.Fprintf(out, "Categories: %s\n", strings.Join(p.Categories(), ", "))

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header("ID", "DATE", "CATEGORY", "DESCRIPTION", "AMOUNT", "ACTIVE", "IMAGE"))
	for _, item := range p.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.Date, item.Category, item.Description,
			cli.FormatAmount(item.Amount), yesNo(item.IsActive), yesNo(item.Image != ""))
	}
	return w.Flush()
}
