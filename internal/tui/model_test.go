package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	err       error
	budgets   []model.Budget
	paychecks []model.PaycheckBudget
	toggled   []string
}

func (f *fakeService) Budgets(context.Context, string) ([]model.Budget, error) {
	return f.budgets, f.err
}

func (f *fakeService) Paychecks(context.Context, string) ([]model.PaycheckBudget, error) {
	return f.paychecks, f.err
}

func (f *fakeService) ToggleCommitted(_ context.Context, _, budgetID, itemID string) (*model.Budget, error) {
	f.toggled = append(f.toggled, budgetID+"/"+itemID)
	for i := range f.budgets {
		if f.budgets[i].ID == budgetID {
			b := f.budgets[i]
			b.Items = append([]model.BudgetItem(nil), b.Items...)
			b.ToggleCommitted(itemID)
			f.budgets[i] = b
			return &b, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeService) ToggleActive(_ context.Context, _, paycheckID, itemID string) (*model.PaycheckBudget, error) {
	f.toggled = append(f.toggled, paycheckID+"/"+itemID)
	for i := range f.paychecks {
		if f.paychecks[i].ID == paycheckID {
			p := f.paychecks[i]
			p.Items = append([]model.ExpenseItem(nil), p.Items...)
			p.ToggleActive(itemID, testNow)
			f.paychecks[i] = p
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

func newFakeService() *fakeService {
	b := model.NewBudget("u1", "Groceries", model.BudgetTypeMonthly, decimal.NewFromInt(100), testNow)
	b.AddItem(model.NewBudgetItem{Amount: decimal.NewFromInt(70), Category: "Food", IsCommitted: true}, testNow)
	p := model.NewPaycheckBudget("u1", "March 15", model.KindPaycheck, "2024-03-15", decimal.NewFromInt(2000), testNow)
	p.AddExpense(model.NewExpenseItem{Amount: decimal.NewFromInt(500), Category: "Housing"}, testNow)
	return &fakeService{budgets: []model.Budget{*b}, paychecks: []model.PaycheckBudget{*p}}
}

// step applies msg and runs any returned command once, feeding its result back.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func load(t *testing.T, svc BudgetService) Model {
	t.Helper()
	m := NewModel(context.Background(), svc, "u1")
	require.Equal(t, StateLoading, m.State())
	msg := m.Init()()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_LoadsBudgets(t *testing.T) {
	m := load(t, newFakeService())

	assert.Equal(t, StateList, m.State())
	require.Len(t, m.entries, 2)
	view := m.View()
	assert.Contains(t, view, "Groceries")
	assert.Contains(t, view, "March 15")
	assert.Contains(t, view, "$30.00")
}

func TestModel_LoadError(t *testing.T) {
	m := load(t, &fakeService{err: errors.New("database locked")})

	assert.Equal(t, StateList, m.State())
	assert.Contains(t, m.View(), "database locked")
}

func TestModel_ToggleCommitted(t *testing.T) {
	svc := newFakeService()
	m := load(t, svc)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateDetail, m.State())
	assert.Contains(t, m.View(), "$70.00 / $100.00")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	require.Len(t, svc.toggled, 1)
	assert.Contains(t, m.View(), "$0.00 / $100.00")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateList, m.State())
}

func TestModel_ToggleActiveOnPaycheck(t *testing.T) {
	svc := newFakeService()
	m := load(t, svc)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateDetail, m.State())
	assert.Contains(t, m.View(), "March 15")
	assert.Contains(t, m.View(), "$500.00 / $2000.00")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	assert.Equal(t, []string{svc.paychecks[0].ID + "/" + svc.paychecks[0].Items[0].ID}, svc.toggled)
	assert.Contains(t, m.View(), "$0.00 / $2000.00")
}

func TestModel_EmptyAndQuit(t *testing.T) {
	m := load(t, &fakeService{})
	assert.Contains(t, m.View(), "No budgets yet")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateList, m.State(), "nothing to open")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.(Model).View())
}

func TestModel_WindowResize(t *testing.T) {
	m := load(t, newFakeService())
	m = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Equal(t, 100, m.width)
	assert.Equal(t, 30, m.height)
}

func TestRun_RequiresService(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, "u1"))
}

func TestModel_ToggleAfterViewingEmptyBudget(t *testing.T) {
	svc := newFakeService()
	empty := model.NewBudget("u1", "Vacation", model.BudgetTypeVacation, decimal.NewFromInt(800), testNow)
	svc.budgets = append([]model.Budget{*empty}, svc.budgets...)
	m := load(t, svc)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateDetail, m.State())
	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	assert.Empty(t, svc.toggled, "no item to toggle")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateDetail, m.State())
	assert.Equal(t, 0, m.items.Cursor())

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	assert.Equal(t, []string{svc.budgets[1].ID + "/" + svc.budgets[1].Items[0].ID}, svc.toggled)
	assert.Contains(t, m.View(), "$0.00 / $100.00")
}
