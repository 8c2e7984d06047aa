package tui

import "github.com/Veraticus/the-budget-must-balance/internal/model"

type budgetsLoadedMsg struct {
	budgets   []model.Budget
	paychecks []model.PaycheckBudget
}

type budgetSavedMsg struct {
	budget *model.Budget
}

type paycheckSavedMsg struct {
	paycheck *model.PaycheckBudget
}

type errorMsg struct {
	err error
}
