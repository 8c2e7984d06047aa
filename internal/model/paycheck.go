package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaycheckKind discriminates the two budgets stored in the paycheck collection.
type PaycheckKind string

const (
	// KindPaycheck is a budget planned against a single paycheck.
	KindPaycheck PaycheckKind = "paycheck"
	// KindBusiness tracks reimbursable business expenses for a client.
	KindBusiness PaycheckKind = "business"
)

// PaycheckBudget is a budget funded by one paycheck or business engagement.
type PaycheckBudget struct {
	Amount     decimal.Decimal `json:"amount"`
	BudgetType PaycheckKind    `json:"budgetType,omitempty"`
	Date       string          `json:"date"`
	Client     string          `json:"client,omitempty"`
	Items      []ExpenseItem   `json:"items"`
	BudgetBase
}

// ExpenseItem is a line of a paycheck or business budget. Only active items
// count toward the spent total.
type ExpenseItem struct {
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Amount      decimal.Decimal `json:"amount"`
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Image       string          `json:"image,omitempty"`
	FileType    string          `json:"fileType,omitempty"`
	IsActive    bool            `json:"isActive"`
}

// NewExpenseItem holds the caller-supplied fields of an expense being added.
// A nil IsActive means active.
type NewExpenseItem struct {
	Amount      decimal.Decimal
	IsActive    *bool
	Category    string
	Description string
	Date        string
}

// ExpenseItemPatch lists the fields to change on an existing expense.
type ExpenseItemPatch struct {
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	Date        *string
	IsActive    *bool
}

// Attachment is an encoded image ready to be stored on an expense item.
type Attachment struct {
	Data     string
	FileType string
}

// NewPaycheckBudget creates an empty paycheck budget. An empty kind means paycheck.
func NewPaycheckBudget(ownerID, name string, kind PaycheckKind, date string, amount decimal.Decimal, now time.Time) *PaycheckBudget {
	if kind == "" {
		kind = KindPaycheck
	}
	return &PaycheckBudget{
		BudgetBase: BudgetBase{
			ID:        uuid.NewString(),
			Name:      name,
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		BudgetType: kind,
		Date:       date,
		Amount:     amount,
		Items:      []ExpenseItem{},
	}
}

// Kind returns the budget's variant, treating an untagged record as a paycheck.
func (p *PaycheckBudget) Kind() PaycheckKind {
	if p.BudgetType == "" {
		return KindPaycheck
	}
	return p.BudgetType
}

// AddExpense appends a new expense with a fresh id and returns it.
func (p *PaycheckBudget) AddExpense(in NewExpenseItem, now time.Time) ExpenseItem {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	item := ExpenseItem{
		ID:          uuid.NewString(),
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		Amount:      in.Amount,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.Date == "" {
		item.Date = now.Format(DateLayout)
	}
	p.Items = append(p.Items, item)
	return item
}

// EditExpense applies patch to the expense with the given id and refreshes
// its updatedAt. It reports whether an expense matched.
func (p *PaycheckBudget) EditExpense(id string, patch ExpenseItemPatch, now time.Time) bool {
	i := p.expenseIndex(id)
	if i < 0 {
		return false
	}
	item := &p.Items[i]
	if patch.Amount != nil {
		item.Amount = *patch.Amount
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Date != nil {
		item.Date = *patch.Date
	}
	if patch.IsActive != nil {
		item.IsActive = *patch.IsActive
	}
	item.UpdatedAt = now
	return true
}

// RemoveExpense drops the expense with the given id, if present.
func (p *PaycheckBudget) RemoveExpense(id string) {
	i := p.expenseIndex(id)
	if i < 0 {
		return
	}
	p.Items = append(p.Items[:i], p.Items[i+1:]...)
}

// ToggleActive flips whether an expense counts toward the spent total.
func (p *PaycheckBudget) ToggleActive(id string, now time.Time) bool {
	i := p.expenseIndex(id)
	if i < 0 {
		return false
	}
	p.Items[i].IsActive = !p.Items[i].IsActive
	p.Items[i].UpdatedAt = now
	return true
}

// AttachImage stores an image on an expense, replacing any previous one.
func (p *PaycheckBudget) AttachImage(id string, att Attachment, now time.Time) bool {
	i := p.expenseIndex(id)
	if i < 0 {
		return false
	}
	p.Items[i].Image = att.Data
	p.Items[i].FileType = att.FileType
	p.Items[i].UpdatedAt = now
	return true
}

// DetachImage removes the image from an expense.
func (p *PaycheckBudget) DetachImage(id string, now time.Time) bool {
	return p.AttachImage(id, Attachment{}, now)
}

// Expense returns the expense with the given id.
func (p *PaycheckBudget) Expense(id string) (ExpenseItem, bool) {
	i := p.expenseIndex(id)
	if i < 0 {
		return ExpenseItem{}, false
	}
	return p.Items[i], true
}

// TotalSpent sums the amounts of active expenses.
func (p *PaycheckBudget) TotalSpent() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Items {
		if item.IsActive {
			total = total.Add(item.Amount)
		}
	}
	return total
}

// Remaining is the paycheck amount minus what has been spent.
func (p *PaycheckBudget) Remaining() decimal.Decimal {
	return p.Amount.Sub(p.TotalSpent())
}

// Categories returns the distinct category names referenced by expenses.
func (p *PaycheckBudget) Categories() []string {
	names := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		names = append(names, item.Category)
	}
	return distinct(names)
}

// Validate checks the budget and all of its expenses.
func (p *PaycheckBudget) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	switch p.BudgetType {
	case "", KindPaycheck, KindBusiness:
	default:
		return fmt.Errorf("%w: unknown budget type %q", ErrInvalidBudget, p.BudgetType)
	}
	if p.Date != "" {
		if _, err := time.Parse(DateLayout, p.Date); err != nil {
			return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidBudget, p.Date)
		}
	}
	seen := make(map[string]struct{}, len(p.Items))
	for i, item := range p.Items {
		if err := validateItemFields(item.ID, item.Category, item.Date, item.Amount); err != nil {
			return fmt.Errorf("expense at index %d: %w", i, err)
		}
		if item.Image != "" && strings.TrimSpace(item.FileType) == "" {
			return fmt.Errorf("expense at index %d: %w: image without file type", i, ErrInvalidItem)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("expense at index %d: %w: duplicate id %s", i, ErrInvalidItem, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

func (p *PaycheckBudget) expenseIndex(id string) int {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return i
		}
	}
	return -1
}
