package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// entry is one row of the overview: either a generic or a paycheck budget.
type entry struct {
	budget   *model.Budget
	paycheck *model.PaycheckBudget
}

func (e entry) id() string {
	if e.budget != nil {
		return e.budget.ID
	}
	return e.paycheck.ID
}

func (e entry) name() string {
	if e.budget != nil {
		return e.budget.Name
	}
	return e.paycheck.Name
}

func (e entry) kind() string {
	if e.budget != nil {
		return string(e.budget.Type)
	}
	return string(e.paycheck.Kind())
}

func (e entry) spent() decimal.Decimal {
	if e.budget != nil {
		return e.budget.TotalSpent()
	}
	return e.paycheck.TotalSpent()
}

func (e entry) total() decimal.Decimal {
	if e.budget != nil {
		return e.budget.TotalBudget
	}
	return e.paycheck.Amount
}

func (e entry) remaining() decimal.Decimal {
	if e.budget != nil {
		return e.budget.Remaining()
	}
	return e.paycheck.Remaining()
}

func (e entry) row() table.Row {
	return table.Row{
		e.name(),
		e.kind(),
		cli.FormatAmount(e.spent()),
		cli.FormatAmount(e.total()),
		cli.FormatAmount(e.remaining()),
	}
}

// itemIDs returns item ids in display order.
func (e entry) itemIDs() []string {
	var ids []string
	if e.budget != nil {
		for _, item := range e.budget.Items {
			ids = append(ids, item.ID)
		}
		return ids
	}
	for _, item := range e.paycheck.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e entry) itemRows() []table.Row {
	var rows []table.Row
	if e.budget != nil {
		for _, item := range e.budget.Items {
			rows = append(rows, table.Row{item.Date, item.Category, item.Description, cli.FormatAmount(item.Amount), check(item.IsCommitted)})
		}
		return rows
	}
	for _, item := range e.paycheck.Items {
		rows = append(rows, table.Row{item.Date, item.Category, item.Description, cli.FormatAmount(item.Amount), check(item.IsActive)})
	}
	return rows
}

func check(v bool) string {
	if v {
		return cli.SuccessIcon
	}
	return ""
}

func entriesFrom(budgets []model.Budget, paychecks []model.PaycheckBudget) []entry {
	entries := make([]entry, 0, len(budgets)+len(paychecks))
	for i := range budgets {
		entries = append(entries, entry{budget: &budgets[i]})
	}
	for i := range paychecks {
		entries = append(entries, entry{paycheck: &paychecks[i]})
	}
	return entries
}
