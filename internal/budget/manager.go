// Package budget applies item-level changes to stored budgets. Every change
// loads the aggregate, mutates it in memory and writes it back under the
// store's revision guard.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
)

// Manager orchestrates budget changes against a record store.
type Manager struct {
	store service.RecordStore
	now   func() time.Time
}

// New creates a manager over store.
func New(store service.RecordStore) *Manager {
	return &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for new records and items.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// CreateBudget stores a new, empty generic budget.
func (m *Manager) CreateBudget(ctx context.Context, ownerID, name string, budgetType model.BudgetType, total decimal.Decimal) (*model.Budget, error) {
	b := model.NewBudget(ownerID, name, budgetType, total, m.now())
	if err := m.store.InsertBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create budget: %w", err)
	}
	slog.Info("created budget", "id", b.ID, "owner", ownerID, "type", budgetType)
	return b, nil
}

// Budget loads one budget.
func (m *Manager) Budget(ctx context.Context, ownerID, id string) (*model.Budget, error) {
	return m.store.GetBudget(ctx, ownerID, id)
}

// Budgets lists the owner's budgets, newest first.
func (m *Manager) Budgets(ctx context.Context, ownerID string) ([]model.Budget, error) {
	return m.store.GetBudgetsByOwner(ctx, ownerID)
}

// DeleteBudget removes a budget together with its items.
func (m *Manager) DeleteBudget(ctx context.Context, ownerID, id string) error {
	return m.store.DeleteBudget(ctx, ownerID, id)
}

// UpdateBudget runs mutate on the stored budget and persists the result when
// mutate reports a change. A concurrent write between load and save fails
// with common.ErrStaleRevision.
func (m *Manager) UpdateBudget(ctx context.Context, ownerID, id string, mutate func(*model.Budget) (bool, error)) (*model.Budget, error) {
	b, err := m.store.GetBudget(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	changed, err := mutate(b)
	if err != nil {
		return nil, err
	}
	if !changed {
		slog.Debug("budget unchanged, skipping write", "id", id)
		return b, nil
	}

	if err := m.store.PutBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save budget %s: %w", id, err)
	}
	return b, nil
}

// AddItem appends an item to a budget. The category must exist.
func (m *Manager) AddItem(ctx context.Context, ownerID, budgetID string, in model.NewBudgetItem) (*model.Budget, model.BudgetItem, error) {
	var added model.BudgetItem
	if err := m.requireCategory(ctx, in.Category); err != nil {
		return nil, added, err
	}

	b, err := m.UpdateBudget(ctx, ownerID, budgetID, func(b *model.Budget) (bool, error) {
		added = b.AddItem(in, m.now())
		return true, b.Validate()
	})
	return b, added, err
}

// EditItem changes fields of an item. An unknown item id is a no-op.
func (m *Manager) EditItem(ctx context.Context, ownerID, budgetID, itemID string, patch model.BudgetItemPatch) (*model.Budget, error) {
	if patch.Category != nil {
		if err := m.requireCategory(ctx, *patch.Category); err != nil {
			return nil, err
		}
	}
	return m.UpdateBudget(ctx, ownerID, budgetID, func(b *model.Budget) (bool, error) {
		if !b.EditItem(itemID, patch) {
			return false, nil
		}
		return true, b.Validate()
	})
}

// RemoveItem drops an item. Removing an absent item is a no-op.
func (m *Manager) RemoveItem(ctx context.Context, ownerID, budgetID, itemID string) (*model.Budget, error) {
	return m.UpdateBudget(ctx, ownerID, budgetID, func(b *model.Budget) (bool, error) {
		if _, ok := b.Item(itemID); !ok {
			return false, nil
		}
		b.RemoveItem(itemID)
		return true, nil
	})
}

// CommitItem marks an item as committed.
func (m *Manager) CommitItem(ctx context.Context, ownerID, budgetID, itemID string) (*model.Budget, error) {
	return m.UpdateBudget(ctx, ownerID, budgetID, func(b *model.Budget) (bool, error) {
		return b.CommitItem(itemID), nil
	})
}

// ToggleCommitted flips the committed flag of an item.
func (m *Manager) ToggleCommitted(ctx context.Context, ownerID, budgetID, itemID string) (*model.Budget, error) {
	return m.UpdateBudget(ctx, ownerID, budgetID, func(b *model.Budget) (bool, error) {
		return b.ToggleCommitted(itemID), nil
	})
}

// PaycheckOptions holds the fields of a new paycheck or business budget.
type PaycheckOptions struct {
	Amount decimal.Decimal
	Name   string
	Kind   model.PaycheckKind
	Date   string
	Client string
}

// CreatePaycheck stores a new, empty paycheck or business budget.
func (m *Manager) CreatePaycheck(ctx context.Context, ownerID string, opts PaycheckOptions) (*model.PaycheckBudget, error) {
	now := m.now()
	date := opts.Date
	if date == "" {
		date = now.Format(model.DateLayout)
	}

	p := model.NewPaycheckBudget(ownerID, opts.Name, opts.Kind, date, opts.Amount, now)
	p.Client = strings.TrimSpace(opts.Client)
	if err := m.store.InsertPaycheckBudget(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create paycheck budget: %w", err)
	}
	slog.Info("created paycheck budget", "id", p.ID, "owner", ownerID, "kind", p.Kind())
	return p, nil
}

// Paycheck loads one paycheck budget.
func (m *Manager) Paycheck(ctx context.Context, ownerID, id string) (*model.PaycheckBudget, error) {
	return m.store.GetPaycheckBudget(ctx, ownerID, id)
}

// Paychecks lists the owner's paycheck and business budgets, newest first.
func (m *Manager) Paychecks(ctx context.Context, ownerID string) ([]model.PaycheckBudget, error) {
	return m.store.GetPaycheckBudgetsByOwner(ctx, ownerID)
}

// DeletePaycheck removes a paycheck budget together with its expenses.
func (m *Manager) DeletePaycheck(ctx context.Context, ownerID, id string) error {
	return m.store.DeletePaycheckBudget(ctx, ownerID, id)
}

// UpdatePaycheck is the paycheck counterpart of UpdateBudget.
func (m *Manager) UpdatePaycheck(ctx context.Context, ownerID, id string, mutate func(*model.PaycheckBudget) (bool, error)) (*model.PaycheckBudget, error) {
	p, err := m.store.GetPaycheckBudget(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	changed, err := mutate(p)
	if err != nil {
		return nil, err
	}
	if !changed {
		slog.Debug("paycheck budget unchanged, skipping write", "id", id)
		return p, nil
	}

	if err := m.store.PutPaycheckBudget(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save paycheck budget %s: %w", id, err)
	}
	return p, nil
}

// AddExpense appends an expense to a paycheck budget.
func (m *Manager) AddExpense(ctx context.Context, ownerID, paycheckID string, in model.NewExpenseItem) (*model.PaycheckBudget, model.ExpenseItem, error) {
	var added model.ExpenseItem
	if err := m.requireCategory(ctx, in.Category); err != nil {
		return nil, added, err
	}

	p, err := m.UpdatePaycheck(ctx, ownerID, paycheckID, func(p *model.PaycheckBudget) (bool, error) {
		added = p.AddExpense(in, m.now())
		return true, p.Validate()
	})
	return p, added, err
}

// EditExpense changes fields of an expense. An unknown expense id is a no-op.
func (m *Manager) EditExpense(ctx context.Context, ownerID, paycheckID, itemID string, patch model.ExpenseItemPatch) (*model.PaycheckBudget, error) {
	if patch.Category != nil {
		if err := m.requireCategory(ctx, *patch.Category); err != nil {
			return nil, err
		}
	}
	return m.UpdatePaycheck(ctx, ownerID, paycheckID, func(p *model.PaycheckBudget) (bool, error) {
		if !p.EditExpense(itemID, patch, m.now()) {
			return false, nil
		}
		return true, p.Validate()
	})
}

// RemoveExpense drops an expense. Removing an absent expense is a no-op.
func (m *Manager) RemoveExpense(ctx context.Context, ownerID, paycheckID, itemID string) (*model.PaycheckBudget, error) {
	return m.UpdatePaycheck(ctx, ownerID, paycheckID, func(p *model.PaycheckBudget) (bool, error) {
		if _, ok := p.Expense(itemID); !ok {
			return false, nil
		}
		p.RemoveExpense(itemID)
		return true, nil
	})
}

// ToggleActive flips whether an expense counts toward the spent total.
func (m *Manager) ToggleActive(ctx context.Context, ownerID, paycheckID, itemID string) (*model.PaycheckBudget, error) {
	return m.UpdatePaycheck(ctx, ownerID, paycheckID, func(p *model.PaycheckBudget) (bool, error) {
		return p.ToggleActive(itemID, m.now()), nil
	})
}

// AttachImage stores an encoded image on an expense, replacing any previous one.
func (m *Manager) AttachImage(ctx context.Context, ownerID, paycheckID, itemID string, att model.Attachment) (*model.PaycheckBudget, error) {
	return m.UpdatePaycheck(ctx, ownerID, paycheckID, func(p *model.PaycheckBudget) (bool, error) {
		if !p.AttachImage(itemID, att, m.now()) {
			return false, fmt.Errorf("expense %s: %w", itemID, common.ErrNotFound)
		}
		return true, p.Validate()
	})
}

// DetachImage removes the image from an expense.
func (m *Manager) DetachImage(ctx context.Context, ownerID, paycheckID, itemID string) (*model.PaycheckBudget, error) {
	return m.UpdatePaycheck(ctx, ownerID, paycheckID, func(p *model.PaycheckBudget) (bool, error) {
		return p.DetachImage(itemID, m.now()), nil
	})
}

// Categories lists every category.
func (m *Manager) Categories(ctx context.Context) ([]model.Category, error) {
	return m.store.GetCategories(ctx)
}

// AddCategory creates a category. Names must not collide exactly with an
// existing one.
func (m *Manager) AddCategory(ctx context.Context, name string) (*model.Category, error) {
	return m.store.CreateCategory(ctx, name)
}

func (m *Manager) requireCategory(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: missing category", model.ErrInvalidItem)
	}
	_, err := m.store.GetCategoryByName(ctx, name)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: %q", common.ErrUnknownCategory, name)
	}
	return err
}
