package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaycheckBudget_Defaults(t *testing.T) {
	p := NewPaycheckBudget("u1", "March 1st paycheck", "", "2024-03-01", dec("2400"), testNow)

	assert.Equal(t, KindPaycheck, p.Kind())
	assert.Equal(t, KindPaycheck, p.BudgetType)

	var untagged PaycheckBudget
	assert.Equal(t, KindPaycheck, untagged.Kind(), "records without a tag are paychecks")

	item := p.AddExpense(NewExpenseItem{Category: "Housing", Amount: dec("1200")}, testNow)
	assert.True(t, item.IsActive)
	assert.Equal(t, testNow, item.CreatedAt)
	assert.Equal(t, testNow, item.UpdatedAt)

	inactive := false
	draft := p.AddExpense(NewExpenseItem{Category: "Shopping", Amount: dec("80"), IsActive: &inactive}, testNow)
	assert.False(t, draft.IsActive)

	assert.True(t, p.TotalSpent().Equal(dec("1200")))
	assert.True(t, p.Remaining().Equal(dec("1200")))
}

func TestPaycheckBudget_EditAndToggle(t *testing.T) {
	p := NewPaycheckBudget("u1", "Consulting", KindBusiness, "2024-03-01", dec("5000"), testNow)
	p.Client = "Acme"
	item := p.AddExpense(NewExpenseItem{Category: "Travel", Amount: dec("450")}, testNow)

	later := testNow.Add(time.Hour)
	desc := "flight to client site"
	require.True(t, p.EditExpense(item.ID, ExpenseItemPatch{Description: &desc}, later))

	got, ok := p.Expense(item.ID)
	require.True(t, ok)
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, testNow, got.CreatedAt)

	assert.False(t, p.EditExpense("missing", ExpenseItemPatch{Description: &desc}, later))

	require.True(t, p.ToggleActive(item.ID, later))
	assert.True(t, p.TotalSpent().IsZero())
	require.True(t, p.ToggleActive(item.ID, later))
	assert.True(t, p.TotalSpent().Equal(dec("450")))

	p.RemoveExpense(item.ID)
	p.RemoveExpense(item.ID)
	assert.Empty(t, p.Items)
}

func TestPaycheckBudget_Attachment(t *testing.T) {
	p := NewPaycheckBudget("u1", "Business trip", KindBusiness, "", dec("900"), testNow)
	item := p.AddExpense(NewExpenseItem{Category: "Food", Amount: dec("42")}, testNow)

	require.True(t, p.AttachImage(item.ID, Attachment{Data: "aGVsbG8=", FileType: "image/jpeg"}, testNow))
	require.True(t, p.AttachImage(item.ID, Attachment{Data: "d29ybGQ=", FileType: "image/jpeg"}, testNow))

	got, _ := p.Expense(item.ID)
	assert.Equal(t, "d29ybGQ=", got.Image, "a second image replaces the first")
	assert.Equal(t, "image/jpeg", got.FileType)
	require.NoError(t, p.Validate())

	require.True(t, p.DetachImage(item.ID, testNow))
	got, _ = p.Expense(item.ID)
	assert.Empty(t, got.Image)
	assert.Empty(t, got.FileType)

	assert.False(t, p.AttachImage("missing", Attachment{Data: "x", FileType: "image/png"}, testNow))
}

func TestPaycheckBudget_Validate(t *testing.T) {
	tests := []struct {
		mutate  func(*PaycheckBudget)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*PaycheckBudget) {}},
		{name: "untagged", mutate: func(p *PaycheckBudget) { p.BudgetType = "" }},
		{name: "unknown tag", mutate: func(p *PaycheckBudget) { p.BudgetType = "stipend" }, wantErr: true},
		{name: "bad date", mutate: func(p *PaycheckBudget) { p.Date = "March" }, wantErr: true},
		{name: "image without type", mutate: func(p *PaycheckBudget) { p.Items[0].Image = "abc" }, wantErr: true},
		{name: "missing id", mutate: func(p *PaycheckBudget) { p.ID = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaycheckBudget("u1", "Pay", KindPaycheck, "2024-03-01", dec("100"), testNow)
			p.AddExpense(NewExpenseItem{Category: "Food", Amount: dec("1")}, testNow)
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPaycheckBudget_UntaggedJSON(t *testing.T) {
	const doc = `{"id":"p1","name":"Pay","date":"2024-03-01","amount":2000,"items":[],"ownerId":"u1",
		"createdAt":"2024-03-01T00:00:00Z","updatedAt":"2024-03-01T00:00:00Z"}`

	var p PaycheckBudget
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "u1", p.OwnerID)
	assert.Equal(t, KindPaycheck, p.Kind())
	assert.True(t, p.Amount.Equal(dec("2000")))
}
