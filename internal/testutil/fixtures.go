package testutil

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
)

// Fixture is the data written by SeedOwner.
type Fixture struct {
	Budget   *model.Budget
	Paycheck *model.PaycheckBudget
}

// SeedOwner stores one monthly budget with a committed Food item and one
// paycheck budget with a Housing expense for owner.
func SeedOwner(t *testing.T, store service.RecordStore, owner string) Fixture {
	t.Helper()
	ctx := context.Background()

	b := model.NewBudget(owner, "Groceries", model.BudgetTypeMonthly, decimal.NewFromInt(500), Now)
	b.AddItem(model.NewBudgetItem{Category: "Food", Amount: decimal.NewFromInt(120), IsCommitted: true}, Now)
	if err := store.InsertBudget(ctx, b); err != nil {
		t.Fatalf("failed to seed budget: %v", err)
	}

	p := model.NewPaycheckBudget(owner, "March", model.KindPaycheck, "2024-03-01", decimal.NewFromInt(2000), Now)
	p.AddExpense(model.NewExpenseItem{Category: "Housing", Amount: decimal.NewFromInt(900)}, Now)
	if err := store.InsertPaycheckBudget(ctx, p); err != nil {
		t.Fatalf("failed to seed paycheck budget: %v", err)
	}

	return Fixture{Budget: b, Paycheck: p}
}
