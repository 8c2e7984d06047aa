package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBudget_GroceriesScenario(t *testing.T) {
	b := NewBudget("u1", "Groceries", BudgetTypeMonthly, dec("500"), testNow)
	require.Empty(t, b.Items)

	b.AddItem(NewBudgetItem{Category: "Food", Amount: dec("120"), IsCommitted: true}, testNow)

	assert.True(t, b.TotalSpent().Equal(dec("120")), "spent = %s", b.TotalSpent())
	assert.True(t, b.Remaining().Equal(dec("380")), "remaining = %s", b.Remaining())
}

func TestBudget_AddItemDefaults(t *testing.T) {
	b := NewBudget("u1", "Trip", BudgetTypeVacation, dec("1000"), testNow)

	first := b.AddItem(NewBudgetItem{Category: "Travel", Amount: dec("300")}, testNow)
	second := b.AddItem(NewBudgetItem{Category: "Food", Amount: dec("50"), Date: "2024-03-01"}, testNow)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.IsCommitted)
	assert.Equal(t, "2024-03-15", first.Date)
	assert.Equal(t, "2024-03-01", second.Date)

	require.Len(t, b.Items, 2)
	assert.Equal(t, first.ID, b.Items[0].ID, "insertion order must be preserved")
	assert.Equal(t, second.ID, b.Items[1].ID)
	assert.True(t, b.TotalSpent().IsZero(), "drafts do not count toward spent")
}

func TestBudget_EditItem(t *testing.T) {
	b := NewBudget("u1", "Home", BudgetTypeMonthly, dec("900"), testNow)
	item := b.AddItem(NewBudgetItem{Category: "Housing", Amount: dec("700"), Description: "rent"}, testNow)

	amount := dec("750")
	desc := "rent (new lease)"
	ok := b.EditItem(item.ID, BudgetItemPatch{Amount: &amount, Description: &desc})
	require.True(t, ok)

	got, found := b.Item(item.ID)
	require.True(t, found)
	assert.True(t, got.Amount.Equal(amount))
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, "Housing", got.Category, "untouched fields are kept")

	before := append([]BudgetItem(nil), b.Items...)
	assert.False(t, b.EditItem("missing", BudgetItemPatch{Amount: &amount}))
	assert.Equal(t, before, b.Items)
}

func TestBudget_RemoveItemIsIdempotent(t *testing.T) {
	b := NewBudget("u1", "Event", BudgetTypeEvent, dec("200"), testNow)
	a := b.AddItem(NewBudgetItem{Category: "Food", Amount: dec("10"), IsCommitted: true}, testNow)
	c := b.AddItem(NewBudgetItem{Category: "Other", Amount: dec("20"), IsCommitted: true}, testNow)

	b.RemoveItem(a.ID)
	b.RemoveItem(a.ID)
	b.RemoveItem("never-existed")

	require.Len(t, b.Items, 1)
	assert.Equal(t, c.ID, b.Items[0].ID)
	assert.True(t, b.TotalSpent().Equal(dec("20")))
}

func TestBudget_TotalsFollowItems(t *testing.T) {
	b := NewBudget("u1", "Weekly", BudgetTypeWeekly, dec("100"), testNow)
	x := b.AddItem(NewBudgetItem{Category: "Food", Amount: dec("12.50")}, testNow)
	y := b.AddItem(NewBudgetItem{Category: "Food", Amount: dec("7.25")}, testNow)
	z := b.AddItem(NewBudgetItem{Category: "Other", Amount: dec("30")}, testNow)

	steps := []struct {
		apply func()
		name  string
		spent string
	}{
		{name: "nothing committed", apply: func() {}, spent: "0"},
		{name: "commit x", apply: func() { b.CommitItem(x.ID) }, spent: "12.50"},
		{name: "toggle y on", apply: func() { b.ToggleCommitted(y.ID) }, spent: "19.75"},
		{name: "edit committed amount", apply: func() {
			amt := dec("10")
			b.EditItem(x.ID, BudgetItemPatch{Amount: &amt})
		}, spent: "17.25"},
		{name: "toggle y off", apply: func() { b.ToggleCommitted(y.ID) }, spent: "10"},
		{name: "commit z", apply: func() { b.CommitItem(z.ID) }, spent: "40"},
		{name: "remove x", apply: func() { b.RemoveItem(x.ID) }, spent: "30"},
	}

	for _, step := range steps {
		step.apply()

		want := decimal.Zero
		for _, item := range b.Items {
			if item.IsCommitted {
				want = want.Add(item.Amount)
			}
		}
		assert.True(t, b.TotalSpent().Equal(want), "%s: spent %s, recomputed %s", step.name, b.TotalSpent(), want)
		assert.True(t, b.TotalSpent().Equal(dec(step.spent)), "%s: spent %s, want %s", step.name, b.TotalSpent(), step.spent)
		assert.True(t, b.Remaining().Equal(dec("100").Sub(want)), step.name)
	}
}

func TestBudget_Validate(t *testing.T) {
	valid := func() *Budget {
		b := NewBudget("u1", "Groceries", BudgetTypeMonthly, dec("500"), testNow)
		b.AddItem(NewBudgetItem{Category: "Food", Amount: dec("10")}, testNow)
		return b
	}

	tests := []struct {
		mutate  func(*Budget)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*Budget) {}},
		{name: "missing name", mutate: func(b *Budget) { b.Name = " " }, wantErr: true},
		{name: "missing owner", mutate: func(b *Budget) { b.OwnerID = "" }, wantErr: true},
		{name: "missing type", mutate: func(b *Budget) { b.Type = "" }, wantErr: true},
		{name: "custom type accepted", mutate: func(b *Budget) { b.Type = "semester" }},
		{name: "negative total", mutate: func(b *Budget) { b.TotalBudget = dec("-1") }, wantErr: true},
		{name: "negative item", mutate: func(b *Budget) { b.Items[0].Amount = dec("-5") }, wantErr: true},
		{name: "bad date", mutate: func(b *Budget) { b.Items[0].Date = "15/03/2024" }, wantErr: true},
		{name: "item without category", mutate: func(b *Budget) { b.Items[0].Category = "" }, wantErr: true},
		{name: "duplicate item id", mutate: func(b *Budget) { b.Items = append(b.Items, b.Items[0]) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(b)
			err := b.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBudget_JSONShape(t *testing.T) {
	b := NewBudget("u1", "Groceries", BudgetTypeMonthly, dec("500"), testNow)
	b.AddItem(NewBudgetItem{Category: "Food", Amount: dec("120.5"), IsCommitted: true}, testNow)
	b.Revision = 7

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"id", "name", "type", "totalBudget", "items", "createdAt", "updatedAt", "ownerId"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "Revision")
	assert.Equal(t, 500.0, raw["totalBudget"], "amounts are plain JSON numbers")

	items, ok := raw["items"].([]any)
	require.True(t, ok)
	first, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, first["isCommitted"])
	assert.Equal(t, 120.5, first["amount"])
}

func TestBudget_Categories(t *testing.T) {
	b := NewBudget("u1", "Mixed", BudgetTypeOther, dec("10"), testNow)
	b.AddItem(NewBudgetItem{Category: "Food"}, testNow)
	b.AddItem(NewBudgetItem{Category: "Travel"}, testNow)
	b.AddItem(NewBudgetItem{Category: "Food"}, testNow)

	assert.Equal(t, []string{"Food", "Travel"}, b.Categories())
}
