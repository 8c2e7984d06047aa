package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
)

func listColumns() []table.Column {
	return []table.Column{
		{Title: "Name", Width: 24},
		{Title: "Type", Width: 10},
		{Title: "Spent", Width: 12},
		{Title: "Total", Width: 12},
		{Title: "Remaining", Width: 12},
	}
}

func itemColumns() []table.Column {
	return []table.Column{
		{Title: "Date", Width: 10},
		{Title: "Category", Width: 14},
		{Title: "Description", Width: 24},
		{Title: "Amount", Width: 12},
		{Title: "✓", Width: 3},
	}
}

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	switch m.state {
	case StateLoading:
		b.WriteString(cli.SubtleStyle.Render("Loading budgets..."))
	case StateList:
		b.WriteString(cli.FormatTitle("Budgets"))
		b.WriteString("\n")
		if len(m.entries) == 0 {
			b.WriteString(cli.SubtleStyle.Render("No budgets yet. Create one with 'budget budgets create'."))
		} else {
			b.WriteString(m.list.View())
		}
	case StateDetail:
		e := m.entries[m.selected]
		b.WriteString(cli.FormatTitle(e.name()))
		b.WriteString("\n")
		b.WriteString(cli.Gauge(e.spent(), e.total()))
		b.WriteString("\n")
		b.WriteString("Remaining: " + cli.FormatRemaining(e.remaining()))
		b.WriteString("\n\n")
		if len(e.itemIDs()) == 0 {
			b.WriteString(cli.SubtleStyle.Render("No items."))
		} else {
			b.WriteString(m.items.View())
		}
	}

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(cli.FormatError(m.lastErr.Error()))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keymap))
	return b.String()
}
