// Package tui provides an interactive terminal browser for budgets.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// BudgetService is the part of the budget manager the browser needs.
type BudgetService interface {
	Budgets(ctx context.Context, ownerID string) ([]model.Budget, error)
	Paychecks(ctx context.Context, ownerID string) ([]model.PaycheckBudget, error)
	ToggleCommitted(ctx context.Context, ownerID, budgetID, itemID string) (*model.Budget, error)
	ToggleActive(ctx context.Context, ownerID, paycheckID, itemID string) (*model.PaycheckBudget, error)
}

// State represents the current screen of the browser.
type State int

const (
	StateLoading State = iota
	StateList
	StateDetail
)

const defaultTableHeight = 12

// Model holds the browser state.
type Model struct {
	ctx      context.Context
	service  BudgetService
	lastErr  error
	owner    string
	entries  []entry
	list     table.Model
	items    table.Model
	help     help.Model
	keymap   KeyMap
	selected int
	width    int
	height   int
	state    State
	quitting bool
}

// NewModel creates a browser for ownerID's budgets.
func NewModel(ctx context.Context, service BudgetService, ownerID string) Model {
	return Model{
		ctx:     ctx,
		service: service,
		owner:   ownerID,
		state:   StateLoading,
		keymap:  DefaultKeyMap(),
		help:    help.New(),
		list: table.New(
			table.WithColumns(listColumns()),
			table.WithFocused(true),
			table.WithHeight(defaultTableHeight),
		),
		items: table.New(
			table.WithColumns(itemColumns()),
			table.WithFocused(true),
			table.WithHeight(defaultTableHeight),
		),
	}
}

// Init loads the budgets.
func (m Model) Init() tea.Cmd {
	return m.loadBudgets()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if h := msg.Height - 8; h > 3 {
			m.list.SetHeight(h)
			m.items.SetHeight(h)
		}
		return m, nil

	case budgetsLoadedMsg:
		m.entries = entriesFrom(msg.budgets, msg.paychecks)
		m.lastErr = nil
		m.refreshList()
		if m.state == StateLoading {
			m.state = StateList
		}
		if m.state == StateDetail {
			if m.selected >= len(m.entries) {
				m.state = StateList
			} else {
				m.refreshItems()
			}
		}
		return m, nil

	case budgetSavedMsg:
		m.replace(entry{budget: msg.budget})
		return m, nil

	case paycheckSavedMsg:
		m.replace(entry{paycheck: msg.paycheck})
		return m, nil

	case errorMsg:
		m.lastErr = msg.err
		if m.state == StateLoading {
			m.state = StateList
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keymap.Refresh):
		return m, m.loadBudgets()
	}

	var cmd tea.Cmd
	switch m.state {
	case StateList:
		if key.Matches(msg, m.keymap.Select) && len(m.entries) > 0 {
			m.selected = m.list.Cursor()
			m.state = StateDetail
			m.refreshItems()
			m.items.SetCursor(0)
			return m, nil
		}
		m.list, cmd = m.list.Update(msg)
	case StateDetail:
		switch {
		case key.Matches(msg, m.keymap.Back):
			m.state = StateList
			return m, nil
		case key.Matches(msg, m.keymap.Toggle):
			return m, m.toggleSelectedItem()
		}
		m.items, cmd = m.items.Update(msg)
	case StateLoading:
	}
	return m, cmd
}

func (m *Model) refreshList() {
	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		rows = append(rows, e.row())
	}
	m.list.SetRows(rows)
}

// refreshItems reloads the detail table. The table clamps its cursor to -1
// while empty, so it is moved back onto the first row once rows exist.
func (m *Model) refreshItems() {
	if m.selected >= len(m.entries) {
		m.items.SetRows(nil)
		return
	}
	rows := m.entries[m.selected].itemRows()
	m.items.SetRows(rows)
	if m.items.Cursor() < 0 && len(rows) > 0 {
		m.items.SetCursor(0)
	}
}

// replace swaps in a freshly saved budget.
func (m *Model) replace(saved entry) {
	for i, e := range m.entries {
		if e.id() == saved.id() {
			m.entries[i] = saved
		}
	}
	m.lastErr = nil
	m.refreshList()
	m.refreshItems()
}

func (m Model) loadBudgets() tea.Cmd {
	return func() tea.Msg {
		budgets, err := m.service.Budgets(m.ctx, m.owner)
		if err != nil {
			return errorMsg{err: err}
		}
		paychecks, err := m.service.Paychecks(m.ctx, m.owner)
		if err != nil {
			return errorMsg{err: err}
		}
		return budgetsLoadedMsg{budgets: budgets, paychecks: paychecks}
	}
}

func (m Model) toggleSelectedItem() tea.Cmd {
	if m.selected >= len(m.entries) {
		return nil
	}
	e := m.entries[m.selected]
	ids := e.itemIDs()
	cursor := m.items.Cursor()
	if cursor < 0 || cursor >= len(ids) {
		return nil
	}
	itemID := ids[cursor]

	return func() tea.Msg {
		if e.budget != nil {
			b, err := m.service.ToggleCommitted(m.ctx, m.owner, e.budget.ID, itemID)
			if err != nil {
				return errorMsg{err: err}
			}
			return budgetSavedMsg{budget: b}
		}
		p, err := m.service.ToggleActive(m.ctx, m.owner, e.paycheck.ID, itemID)
		if err != nil {
			return errorMsg{err: err}
		}
		return paycheckSavedMsg{paycheck: p}
	}
}

// State returns the current screen.
func (m Model) State() State {
	return m.state
}
