package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// jsonAmount renders d as an unquoted JSON number. decimal.MarshalJSONWithoutQuotes
// is process-wide and stays untouched.
func jsonAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// MarshalJSON encodes the budget with its total as a JSON number.
func (b Budget) MarshalJSON() ([]byte, error) {
	type plain Budget
	return json.Marshal(struct {
		TotalBudget json.Number `json:"totalBudget"`
		plain
	}{jsonAmount(b.TotalBudget), plain(b)})
}

// MarshalJSON encodes the item with its amount as a JSON number.
func (i BudgetItem) MarshalJSON() ([]byte, error) {
	type plain BudgetItem
	return json.Marshal(struct {
		Amount json.Number `json:"amount"`
		plain
	}{jsonAmount(i.Amount), plain(i)})
}

// MarshalJSON encodes the paycheck budget with its amount as a JSON number.
func (p PaycheckBudget) MarshalJSON() ([]byte, error) {
	type plain PaycheckBudget
	return json.Marshal(struct {
		Amount json.Number `json:"amount"`
		plain
	}{jsonAmount(p.Amount), plain(p)})
}

// MarshalJSON encodes the expense with its amount as a JSON number.
func (e ExpenseItem) MarshalJSON() ([]byte, error) {
	type plain ExpenseItem
	return json.Marshal(struct {
		Amount json.Number `json:"amount"`
		plain
	}{jsonAmount(e.Amount), plain(e)})
}
