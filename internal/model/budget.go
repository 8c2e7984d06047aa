// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used by items and paycheck budgets.
const DateLayout = "2006-01-02"

// BudgetType classifies a generic budget.
type BudgetType string

// Known budget types. Any non-empty type is accepted so that files written by
// other versions still restore.
const (
	BudgetTypeWeekly   BudgetType = "weekly"
	BudgetTypeMonthly  BudgetType = "monthly"
	BudgetTypeYearly   BudgetType = "yearly"
	BudgetTypeVacation BudgetType = "vacation"
	BudgetTypeEvent    BudgetType = "event"
	BudgetTypeOther    BudgetType = "other"
)

// Validation errors for budgets and their items.
var (
	ErrInvalidBudget = errors.New("invalid budget")
	ErrInvalidItem   = errors.New("invalid budget item")
)

// BudgetBase is the shape shared by every budget variant.
type BudgetBase struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	// Revision is the optimistic concurrency counter. It lives only in the
	// database and is never written to backup files.
	Revision int64 `json:"-"`
}

func (b *BudgetBase) validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidBudget)
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidBudget)
	}
	if strings.TrimSpace(b.OwnerID) == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidBudget)
	}
	return nil
}

// Budget is a generic spending budget with a fixed total.
type Budget struct {
	TotalBudget decimal.Decimal `json:"totalBudget"`
	Type        BudgetType      `json:"type"`
	Items       []BudgetItem    `json:"items"`
	BudgetBase
}

// BudgetItem is a single line of a generic budget. Committed items count
// toward the spent total; uncommitted items are drafts.
type BudgetItem struct {
	Amount      decimal.Decimal `json:"amount"`
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	IsCommitted bool            `json:"isCommitted"`
}

// NewBudgetItem holds the caller-supplied fields of an item being added.
type NewBudgetItem struct {
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        string
	IsCommitted bool
}

// BudgetItemPatch lists the fields to change on an existing item. Nil fields
// are left untouched.
type BudgetItemPatch struct {
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	Date        *string
	IsCommitted *bool
}

// NewBudget creates an empty budget owned by ownerID.
func NewBudget(ownerID, name string, budgetType BudgetType, total decimal.Decimal, now time.Time) *Budget {
	return &Budget{
		BudgetBase: BudgetBase{
			ID:        uuid.NewString(),
			Name:      name,
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Type:        budgetType,
		TotalBudget: total,
		Items:       []BudgetItem{},
	}
}

// AddItem appends a new item with a fresh id and returns it.
func (b *Budget) AddItem(in NewBudgetItem, now time.Time) BudgetItem {
	item := BudgetItem{
		ID:          uuid.NewString(),
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		Amount:      in.Amount,
		IsCommitted: in.IsCommitted,
	}
	if item.Date == "" {
		item.Date = now.Format(DateLayout)
	}
	b.Items = append(b.Items, item)
	return item
}

// EditItem applies patch to the item with the given id. It reports whether
// an item matched; an unknown id leaves the budget unchanged.
func (b *Budget) EditItem(id string, patch BudgetItemPatch) bool {
	i := b.itemIndex(id)
	if i < 0 {
		return false
	}
	item := &b.Items[i]
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
	if patch.IsCommitted != nil {
		item.IsCommitted = *patch.IsCommitted
	}
	return true
}

// RemoveItem drops the item with the given id, if present.
func (b *Budget) RemoveItem(id string) {
	i := b.itemIndex(id)
	if i < 0 {
		return
	}
	b.Items = append(b.Items[:i], b.Items[i+1:]...)
}

// CommitItem marks an item as committed.
func (b *Budget) CommitItem(id string) bool {
	committed := true
	return b.EditItem(id, BudgetItemPatch{IsCommitted: &committed})
}

// ToggleCommitted flips the committed flag of an item.
func (b *Budget) ToggleCommitted(id string) bool {
	i := b.itemIndex(id)
	if i < 0 {
		return false
	}
	b.Items[i].IsCommitted = !b.Items[i].IsCommitted
	return true
}

// Item returns the item with the given id.
func (b *Budget) Item(id string) (BudgetItem, bool) {
	i := b.itemIndex(id)
	if i < 0 {
		return BudgetItem{}, false
	}
	return b.Items[i], true
}

// TotalSpent sums the amounts of committed items.
func (b *Budget) TotalSpent() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.Items {
		if item.IsCommitted {
			total = total.Add(item.Amount)
		}
	}
	return total
}

// Remaining is the total budget minus what has been spent.
func (b *Budget) Remaining() decimal.Decimal {
	return b.TotalBudget.Sub(b.TotalSpent())
}

// Categories returns the distinct category names referenced by items.
func (b *Budget) Categories() []string {
	names := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		names = append(names, item.Category)
	}
	return distinct(names)
}

// Validate checks the budget and all of its items.
func (b *Budget) Validate() error {
	if err := b.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(string(b.Type)) == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidBudget)
	}
	if b.TotalBudget.IsNegative() {
		return fmt.Errorf("%w: total budget cannot be negative", ErrInvalidBudget)
	}
	seen := make(map[string]struct{}, len(b.Items))
	for i, item := range b.Items {
		if err := validateItemFields(item.ID, item.Category, item.Date, item.Amount); err != nil {
			return fmt.Errorf("item at index %d: %w", i, err)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("item at index %d: %w: duplicate id %s", i, ErrInvalidItem, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

func (b *Budget) itemIndex(id string) int {
	for i := range b.Items {
		if b.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func validateItemFields(id, category, date string, amount decimal.Decimal) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidItem)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount cannot be negative", ErrInvalidItem)
	}
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidItem, date)
		}
	}
	return nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
